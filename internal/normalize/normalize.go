// Package normalize turns a raw shell command string into word lists and
// filesystem paths using a real shell parser, so later tiers never have to
// guess where one word ends and the next begins.
package normalize

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Segment is one simple command found anywhere in the parsed input,
// including inside pipelines, subshells and command substitutions.
type Segment struct {
	Words      []string // literal words with quoting removed
	Executable string   // base name of the first word
	Args       []string // Words[1:]
	// Paths holds every argument that could name a file, resolved against
	// the cwd and home directory given to Normalize. Parse leaves it nil.
	Paths []string
}

// Normalize parses command like Parse and fills in each segment's Paths.
// When the parser rejects the input the error is returned together with a
// single whitespace-split segment, for callers that want a best-effort view.
func Normalize(command, cwd, homeDir string) ([]Segment, error) {
	segments, err := Parse(command)
	if err != nil {
		segments = nil
		if words := strings.Fields(command); len(words) > 0 {
			segments = []Segment{newSegment(words)}
		}
	}
	for i := range segments {
		for _, arg := range segments[i].Args {
			if p, ok := pathArgument(arg); ok {
				segments[i].Paths = append(segments[i].Paths, ExpandPath(p, cwd, homeDir))
			}
		}
	}
	return segments, err
}

// pathArgument returns the part of arg that the command could open as a
// file. Any bare word counts, since a relative name resolves against the
// cwd. Flags and URLs do not; "--flag=value" yields value.
func pathArgument(arg string) (string, bool) {
	if strings.HasPrefix(arg, "-") && !strings.Contains(arg, "=") {
		return "", false
	}
	if strings.Contains(arg, "://") {
		return "", false
	}
	if i := strings.Index(arg, "="); i > 0 && !strings.ContainsAny(arg[:i], "/~") {
		arg = arg[i+1:]
	}
	return arg, arg != ""
}

// Parse returns every simple command in command, in source order.
func Parse(command string) ([]Segment, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, err
	}

	var segments []Segment
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		words := make([]string, 0, len(call.Args))
		for _, w := range call.Args {
			words = append(words, WordLiteral(w))
		}
		segments = append(segments, newSegment(words))
		return true
	})
	return segments, nil
}

// WordLiteral renders a word the way the shell would see it after quote
// removal. Expansions that cannot be resolved statically ($VAR, $(...))
// are kept in their printed source form.
func WordLiteral(word *syntax.Word) string {
	var sb strings.Builder
	writeParts(&sb, word.Parts, false)
	return sb.String()
}

func writeParts(sb *strings.Builder, parts []syntax.WordPart, quoted bool) {
	for _, part := range parts {
		switch p := part.(type) {
		case *syntax.Lit:
			if quoted {
				sb.WriteString(p.Value)
			} else {
				sb.WriteString(unescape(p.Value))
			}
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			writeParts(sb, p.Parts, true)
		default:
			printer := syntax.NewPrinter()
			_ = printer.Print(sb, part)
		}
	}
}

// unescape drops shell backslash escapes from an unquoted literal.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Dequote removes quote characters and backslash escapes from the whole
// string without interpreting anything else. It is used to match signatures
// against obfuscated spellings such as r""m or \rm.
func Dequote(command string) string {
	var sb strings.Builder
	for i := 0; i < len(command); i++ {
		switch command[i] {
		case '\'', '"':
			continue
		case '\\':
			if i+1 < len(command) && command[i+1] != '\n' {
				i++
				sb.WriteByte(command[i])
			}
			continue
		}
		sb.WriteByte(command[i])
	}
	return sb.String()
}

func newSegment(words []string) Segment {
	seg := Segment{Words: words}
	if len(words) > 0 {
		seg.Executable = filepath.Base(words[0])
		seg.Args = words[1:]
	}
	return seg
}

// ExpandPath resolves ~, $HOME and relative paths against cwd.
func ExpandPath(path, cwd, homeDir string) string {
	if homeDir != "" {
		switch {
		case path == "~" || path == "$HOME" || path == "${HOME}":
			return homeDir
		case strings.HasPrefix(path, "~/"):
			path = filepath.Join(homeDir, path[2:])
		case strings.HasPrefix(path, "$HOME/"):
			path = filepath.Join(homeDir, path[len("$HOME/"):])
		case strings.HasPrefix(path, "${HOME}/"):
			path = filepath.Join(homeDir, path[len("${HOME}/"):])
		}
	}

	if !filepath.IsAbs(path) && cwd != "" {
		path = filepath.Join(cwd, path)
	}

	return filepath.Clean(path)
}

// Package filecontext loads the script a command is about to run so the LLM
// tier can judge the command by what it will actually execute. The file is
// confined to the working directory, read up to a fixed size and sanitized
// before it goes anywhere near a prompt.
package filecontext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gzhole/gatekeeper/internal/normalize"
	"github.com/gzhole/gatekeeper/internal/redact"
)

// DefaultMaxBytes bounds how much of a script is read.
const DefaultMaxBytes = 16 * 1024

var (
	// ErrOutsideWorkdir is returned for paths that resolve outside cwd.
	ErrOutsideWorkdir = errors.New("script path is outside the working directory")
	// ErrNoScript is returned when the command does not reference a script.
	ErrNoScript = errors.New("command does not reference a script")
	// ErrBinary is returned for files that contain NUL bytes.
	ErrBinary = errors.New("script looks binary")
)

// FileContext is the sanitized content of one referenced script.
type FileContext struct {
	Path      string
	Content   string
	Truncated bool
	// Redacted lists the kinds of credential removed from Content.
	Redacted []string
}

// Render wraps the content between the boundary markers.
func (fc *FileContext) Render() string {
	if fc == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s", fc.Path)
	if fc.Truncated {
		sb.WriteString(" (truncated)")
	}
	sb.WriteString("\n")
	sb.WriteString(BeginMarker)
	sb.WriteString("\n")
	sb.WriteString(fc.Content)
	if !strings.HasSuffix(fc.Content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(EndMarker)
	return sb.String()
}

// Extractor finds and loads scripts referenced by commands.
type Extractor struct {
	maxBytes int64
}

// NewExtractor returns an Extractor reading at most maxBytes per file.
// Non-positive values use DefaultMaxBytes.
func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

// Extract loads the first script command references. Any error means the
// context is absent; callers are expected to carry on without it.
func (e *Extractor) Extract(command, cwd string) (*FileContext, error) {
	ref, ok := ScriptReference(command)
	if !ok {
		return nil, ErrNoScript
	}

	path, root, err := confine(ref, cwd)
	if err != nil {
		return nil, err
	}

	content, truncated, err := e.read(path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = ref
	}
	return &FileContext{
		Path:      rel,
		Content:   Sanitize(content),
		Truncated: truncated,
		Redacted:  redact.Kinds(content),
	}, nil
}

// confine resolves ref against cwd, following symlinks, and rejects any
// result that is not inside cwd. It returns the resolved file and the
// resolved cwd.
func confine(ref, cwd string) (path, root string, err error) {
	if cwd == "" {
		return "", "", fmt.Errorf("%w: no working directory", ErrOutsideWorkdir)
	}
	root, err = filepath.EvalSymlinks(cwd)
	if err != nil {
		return "", "", fmt.Errorf("resolve cwd: %w", err)
	}

	candidate := ref
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(cwd, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !within(filepath.Clean(cwd), candidate) && !within(root, candidate) {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideWorkdir, ref)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	if !within(root, resolved) {
		return "", "", fmt.Errorf("%w: %s links to %s", ErrOutsideWorkdir, ref, resolved)
	}
	return resolved, root, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (e *Extractor) read(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", false, err
	}
	if !info.Mode().IsRegular() {
		return "", false, fmt.Errorf("%s is not a regular file", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, e.maxBytes+1))
	if err != nil {
		return "", false, err
	}
	truncated := int64(len(data)) > e.maxBytes
	if truncated {
		data = data[:e.maxBytes]
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", false, ErrBinary
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), truncated, nil
}

// interpreters maps an executable to how many leading non-flag words to skip
// before the script argument (deno run FILE skips "run").
var interpreters = map[string]int{
	"python": 0, "python2": 0, "python3": 0, "pypy": 0, "pypy3": 0,
	"node": 0, "nodejs": 0, "tsx": 0, "ts-node": 0,
	"bash": 0, "sh": 0, "zsh": 0, "dash": 0, "ksh": 0, "fish": 0,
	"ruby": 0, "perl": 0, "php": 0, "lua": 0, "Rscript": 0,
	"deno": 1, "bun": 1,
	"source": 0, ".": 0,
}

// inlineFlags take code or a module instead of a file.
var inlineFlags = map[string]bool{
	"-c": true, "-e": true, "-m": true, "-p": true, "--eval": true, "--print": true, "-E": true, "-r": true,
}

var scriptExts = map[string]bool{
	".sh": true, ".bash": true, ".zsh": true, ".py": true, ".js": true,
	".mjs": true, ".cjs": true, ".ts": true, ".mts": true, ".rb": true,
	".pl": true, ".php": true, ".lua": true, ".r": true, ".R": true,
}

// ScriptReference returns the script path a command runs, if any: the file
// argument of an interpreter ("python3 tools/gen.py") or an executable given
// by path ("./deploy.sh", "scripts/check.py").
func ScriptReference(command string) (string, bool) {
	segments, err := normalize.Parse(command)
	if err != nil {
		return "", false
	}
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			continue
		}
		first := seg.Words[0]
		if strings.Contains(first, "/") && (strings.HasPrefix(first, ".") || scriptExts[filepath.Ext(first)]) {
			return first, true
		}

		skip, ok := interpreters[seg.Executable]
		if !ok {
			continue
		}
		if ref, ok := interpreterScript(seg.Args, skip); ok {
			return ref, true
		}
	}
	return "", false
}

func interpreterScript(args []string, skip int) (string, bool) {
	for _, a := range args {
		if inlineFlags[a] {
			return "", false
		}
		if strings.HasPrefix(a, "-") {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		return a, true
	}
	return "", false
}

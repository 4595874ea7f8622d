// Package compound splits a command at shell composition metacharacters and
// decides whether the composition is simple enough for local approval.
//
// Only && and || chains are eligible: each part runs as its own process and
// the chain is safe exactly when every part is. Pipes, sequencing, command
// substitution, background jobs, redirection and newlines can all move data
// or effects between parts, so any of them makes the command ambiguous.
package compound

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Connector is the operator that joins a sub-command to the one before it.
type Connector string

const (
	None       Connector = "NONE"
	And        Connector = "AND"
	Or         Connector = "OR"
	Pipe       Connector = "PIPE"
	Seq        Connector = "SEQ"
	Subshell   Connector = "SUBSHELL"
	Background Connector = "BACKGROUND"
)

// SubCommand is one piece of a decomposed command, in source order.
// The first sub-command always has Connector None.
type SubCommand struct {
	Text      string
	Connector Connector
}

// Class is the composition verdict.
type Class int

const (
	// Simple: no metacharacters at all.
	Simple Class = iota
	// SafeCompound: only && and || connectors.
	SafeCompound
	// Ambiguous: anything else, including malformed input.
	Ambiguous
)

func (c Class) String() string {
	switch c {
	case Simple:
		return "simple"
	case SafeCompound:
		return "safe-compound"
	default:
		return "ambiguous"
	}
}

// Analysis is the result of decomposing one command.
type Analysis struct {
	Class       Class
	SubCommands []SubCommand
	// Metachars lists the ambiguous metacharacters found, in order of first
	// appearance ("|", ";", "&", "`", "$(", "(", ">", "<", "newline").
	Metachars []string
	// Reason explains an Ambiguous class; empty otherwise.
	Reason string
}

// LocalEligible reports whether the local allowlist may decide this command.
func (a Analysis) LocalEligible() bool {
	return a.Class == Simple || a.Class == SafeCompound
}

type state int

const (
	stNormal state = iota
	stSingle
	stDouble
	// stANSI is bash $'...' quoting, where a backslash escapes the next
	// byte, including a single quote.
	stANSI
)

type tokenizer struct {
	src       string
	subs      []SubCommand
	cur       strings.Builder
	next      Connector
	metachars []string
	seen      map[string]bool
	malformed string
}

// Analyze decomposes command. It never fails: anything it cannot classify
// with certainty is reported as Ambiguous.
func Analyze(command string) Analysis {
	t := &tokenizer{src: command, next: None, seen: make(map[string]bool)}
	t.run()

	a := Analysis{SubCommands: t.subs, Metachars: t.metachars}
	logical := 0
	for _, s := range t.subs {
		if s.Connector == And || s.Connector == Or {
			logical++
		}
	}

	switch {
	case t.malformed != "":
		a.Class = Ambiguous
		a.Reason = t.malformed
	case len(t.metachars) > 0:
		a.Class = Ambiguous
		a.Reason = "contains " + strings.Join(t.metachars, ", ")
	case logical > 0:
		a.Class = SafeCompound
	default:
		a.Class = Simple
	}

	if a.Class != Ambiguous {
		if err := crossCheck(command, logical); err != nil {
			a.Class = Ambiguous
			a.Reason = fmt.Sprintf("shell parser disagrees: %v", err)
		}
	}
	return a
}

func (t *tokenizer) run() {
	st := stNormal
	s := t.src
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch st {
		case stSingle:
			t.cur.WriteByte(ch)
			if ch == '\'' {
				st = stNormal
			}

		case stANSI:
			t.cur.WriteByte(ch)
			switch {
			case ch == '\\' && i+1 < len(s):
				i++
				t.cur.WriteByte(s[i])
			case ch == '\'':
				st = stNormal
			}

		case stDouble:
			switch {
			case ch == '\\' && i+1 < len(s):
				t.cur.WriteByte(ch)
				i++
				t.cur.WriteByte(s[i])
				continue
			case ch == '"':
				st = stNormal
			case ch == '`':
				t.meta("`")
			case ch == '$' && i+1 < len(s) && s[i+1] == '(':
				t.meta("$(")
			}
			t.cur.WriteByte(ch)

		case stNormal:
			i = t.normal(s, i, &st)
		}
	}

	if st != stNormal && t.malformed == "" {
		t.malformed = "unterminated quote"
	}
	t.flush()
}

// normal handles one byte outside quotes and returns the index of the last
// byte consumed.
func (t *tokenizer) normal(s string, i int, st *state) int {
	ch := s[i]
	peek := byte(0)
	if i+1 < len(s) {
		peek = s[i+1]
	}

	switch ch {
	case '\\':
		if i+1 >= len(s) {
			t.malformed = "trailing backslash"
			return i
		}
		if peek == '\n' {
			// line continuation
			t.cur.WriteByte(' ')
			return i + 1
		}
		t.cur.WriteByte(ch)
		t.cur.WriteByte(peek)
		return i + 1
	case '\'':
		*st = stSingle
	case '"':
		*st = stDouble
	case '&':
		if i > 0 && (s[i-1] == '>' || s[i-1] == '<') {
			// fd duplication such as 2>&1; the redirect is already recorded
			break
		}
		switch peek {
		case '&':
			t.split(And, i)
			return i + 1
		case '>':
			t.meta(">")
		default:
			t.meta("&")
			t.split(Background, i)
			return i
		}
	case '|':
		if peek == '|' {
			t.split(Or, i)
			return i + 1
		}
		t.meta("|")
		t.split(Pipe, i)
		if peek == '&' {
			return i + 1
		}
		return i
	case ';':
		t.meta(";")
		t.split(Seq, i)
		return i
	case '\n', '\r':
		t.meta("newline")
		t.split(Seq, i)
		return i
	case '`':
		t.meta("`")
	case '$':
		switch peek {
		case '(':
			t.meta("$(")
		case '\'':
			*st = stANSI
			t.cur.WriteString("$'")
			return i + 1
		}
	case '(', ')':
		if ch == '(' && (i == 0 || s[i-1] != '$') {
			if i > 0 && (s[i-1] == '<' || s[i-1] == '>') {
				break
			}
			t.meta("(")
			t.split(Subshell, i)
			return i
		}
	case '>', '<':
		t.meta(string(ch))
	}
	t.cur.WriteByte(ch)
	return i
}

func (t *tokenizer) meta(m string) {
	if !t.seen[m] {
		t.seen[m] = true
		t.metachars = append(t.metachars, m)
	}
}

// split closes the current sub-command; the next one is joined by c.
func (t *tokenizer) split(c Connector, pos int) {
	text := strings.TrimSpace(t.cur.String())
	t.cur.Reset()
	if text == "" {
		// Leading connector, doubled connector ("a && && b") or a bare
		// subshell opener. Only the logical operators make this malformed;
		// the others are already ambiguous.
		if (c == And || c == Or) && t.malformed == "" {
			t.malformed = fmt.Sprintf("empty command before %s at byte %d", c, pos)
		}
		if c == Subshell {
			t.next = Subshell
		}
		return
	}
	t.subs = append(t.subs, SubCommand{Text: text, Connector: t.next})
	t.next = c
}

func (t *tokenizer) flush() {
	text := strings.TrimSpace(t.cur.String())
	t.cur.Reset()
	if text == "" {
		if (t.next == And || t.next == Or || t.next == Pipe) && t.malformed == "" {
			t.malformed = fmt.Sprintf("trailing %s connector", t.next)
		}
		return
	}
	t.subs = append(t.subs, SubCommand{Text: text, Connector: t.next})
}

// crossCheck confirms with a real shell parser that the input is well formed
// and that our view of it as a plain && / || list holds: the parser must find
// exactly as many && and || operators as the tokenizer split on.
func crossCheck(command string, logical int) error {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return err
	}
	if len(file.Stmts) > 1 {
		return fmt.Errorf("%d statements", len(file.Stmts))
	}

	var bad error
	binaries := 0
	syntax.Walk(file, func(node syntax.Node) bool {
		if bad != nil {
			return false
		}
		switch n := node.(type) {
		case *syntax.Stmt:
			if n.Background || n.Coprocess || len(n.Redirs) > 0 {
				bad = fmt.Errorf("statement uses background, coprocess or redirection")
			}
		case *syntax.BinaryCmd:
			binaries++
			if n.Op != syntax.AndStmt && n.Op != syntax.OrStmt {
				bad = fmt.Errorf("operator %s", n.Op)
			}
		case *syntax.CmdSubst, *syntax.ProcSubst, *syntax.Subshell:
			bad = fmt.Errorf("substitution or subshell")
		}
		return true
	})
	if bad == nil && binaries != logical {
		bad = fmt.Errorf("found %d && / || operators, tokenizer split on %d", binaries, logical)
	}
	return bad
}

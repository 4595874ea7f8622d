// Package approval asks the person at the terminal to settle an ASK_USER
// decision.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Answer is what came back from the prompt. Only Approved lets the command run.
type Answer int

const (
	Denied Answer = iota
	Approved
	NoTerminal
	NoAnswer
)

func (a Answer) String() string {
	switch a {
	case Approved:
		return "approved"
	case Denied:
		return "denied"
	case NoTerminal:
		return "no terminal"
	default:
		return "no answer"
	}
}

// Prompt carries the decision being put to the user.
type Prompt struct {
	Command string
	Tier    string
	Reason  string
}

var answers = map[string]Answer{
	"a": Approved, "approve": Approved, "y": Approved, "yes": Approved,
	"d": Denied, "deny": Denied, "n": Denied, "no": Denied,
}

// Ask prompts on stderr and reads the answer from stdin. Without a terminal
// on stdin it returns NoTerminal without prompting.
func Ask(p Prompt) Answer {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return NoTerminal
	}
	return AskFrom(p, os.Stdin, os.Stderr)
}

// AskFrom runs the prompt over the given streams, re-asking on unrecognised
// input until the stream ends.
func AskFrom(p Prompt, in io.Reader, out io.Writer) Answer {
	fmt.Fprintf(out, "\n=== APPROVAL REQUIRED ===\nCommand: %s\n", p.Command)
	if p.Reason != "" {
		fmt.Fprintf(out, "Why:     %s (%s)\n", p.Reason, p.Tier)
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Run it? [a]pprove / [d]eny: ")
		if !sc.Scan() {
			return NoAnswer
		}
		if a, ok := answers[strings.ToLower(strings.TrimSpace(sc.Text()))]; ok {
			return a
		}
		fmt.Fprintln(out, "Please answer a or d.")
	}
}

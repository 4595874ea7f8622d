// Package allowlist implements the local approval tier. It can approve a
// command whose every part is a known-safe invocation; it never denies.
package allowlist

import (
	"strings"

	"github.com/gzhole/gatekeeper/internal/compound"
	"github.com/gzhole/gatekeeper/internal/normalize"
	"github.com/gzhole/gatekeeper/internal/patterns"
)

// Outcome is the tagged result of a lookup. The zero value is NoMatch so an
// uninitialized result can never read as approval.
type Outcome int

const (
	NoMatch Outcome = iota
	MatchedSafe
)

func (o Outcome) String() string {
	if o == MatchedSafe {
		return "matched-safe"
	}
	return "no-match"
}

// Result carries the outcome and, for NoMatch, the first sub-command that
// was not covered.
type Result struct {
	Outcome   Outcome
	Matched   []string // entry that covered each sub-command, in order
	Unmatched string
}

// Matcher checks sub-commands against the compiled allowlist.
type Matcher struct {
	entries []patterns.CompiledAllow
}

// NewMatcher returns a Matcher over table's allowlist.
func NewMatcher(table *patterns.Compiled) *Matcher {
	if table == nil {
		table = patterns.Builtin()
	}
	return &Matcher{entries: table.Allowlist}
}

// Check returns MatchedSafe only when every sub-command matches an entry.
// An empty sequence is NoMatch.
func (m *Matcher) Check(subs []compound.SubCommand) Result {
	if len(subs) == 0 {
		return Result{Outcome: NoMatch}
	}
	matched := make([]string, 0, len(subs))
	for _, sub := range subs {
		entry, ok := m.lookup(sub.Text)
		if !ok {
			return Result{Outcome: NoMatch, Unmatched: sub.Text}
		}
		matched = append(matched, entry)
	}
	return Result{Outcome: MatchedSafe, Matched: matched}
}

func (m *Matcher) lookup(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	words := commandWords(text)
	if len(words) == 0 {
		return "", false
	}
	line := strings.Join(words, " ")

	for _, e := range m.entries {
		var hit bool
		if e.Re == nil {
			hit = hasWordPrefix(words, strings.Fields(e.PrefixOrPattern))
		} else {
			hit = e.Re.MatchString(line)
		}
		if !hit {
			continue
		}
		if e.Exclude != nil && e.Exclude.MatchString(line) {
			continue
		}
		return e.PrefixOrPattern, true
	}
	return "", false
}

// commandWords splits a sub-command with quotes removed. Leading variable
// assignments ("FOO=1 cmd") keep the command out of the allowlist: they can
// change what a tool does (GIT_DIR, LD_PRELOAD, PAGER).
func commandWords(text string) []string {
	segs, err := normalize.Parse(text)
	if err != nil || len(segs) != 1 {
		return nil
	}
	words := segs[0].Words
	if len(words) == 0 || strings.Contains(strings.Fields(text)[0], "=") {
		return nil
	}
	return words
}

func hasWordPrefix(words, prefix []string) bool {
	if len(prefix) == 0 || len(words) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if words[i] != p {
			return false
		}
	}
	return true
}

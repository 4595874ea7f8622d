// Package permission implements the second tier: commands the user has
// already approved. Rules are loaded once into a read-only Snapshot that is
// passed into every evaluation; the matcher itself holds no state.
package permission

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gzhole/gatekeeper/internal/compound"
	"github.com/gzhole/gatekeeper/internal/normalize"
)

// Kind is how a rule pattern is interpreted.
type Kind int

const (
	// Exact matches the whole command text.
	Exact Kind = iota
	// Prefix is the "cmd:*" form: the command is the prefix itself or the
	// prefix followed by a space and anything else.
	Prefix
	// Glob treats '*' as any run of characters.
	Glob
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Prefix:
		return "prefix"
	default:
		return "glob"
	}
}

// Rule is one approved command pattern, optionally limited to a directory
// tree.
type Rule struct {
	Pattern string
	Scope   string // absolute directory, empty for everywhere
	Source  string // file the rule came from

	kind   Kind
	prefix string
	glob   *regexp.Regexp
}

// NewRule classifies pattern. It returns false for an empty pattern.
func NewRule(pattern, scope, source string) (Rule, bool) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Rule{}, false
	}
	r := Rule{Pattern: pattern, Scope: scope, Source: source}
	switch {
	case strings.HasSuffix(pattern, ":*"):
		r.kind = Prefix
		r.prefix = strings.TrimSpace(strings.TrimSuffix(pattern, ":*"))
		if r.prefix == "" {
			// "Bash(:*)" approves everything, same as a bare "*".
			r.kind = Glob
			r.glob = regexp.MustCompile(`^.*$`)
		}
	case strings.Contains(pattern, "*"):
		r.kind = Glob
		r.glob = compileGlob(pattern)
	default:
		r.kind = Exact
	}
	return r, true
}

// Kind reports how the pattern is matched.
func (r Rule) Kind() Kind { return r.kind }

func compileGlob(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`^` + strings.Join(parts, `.*`) + `$`)
}

// Snapshot is the rule set for one evaluation. It is never modified after
// loading and may be shared by concurrent evaluations.
type Snapshot struct {
	Rules []Rule
	// Warnings lists sources or entries that were skipped.
	Warnings []string
}

// Len returns the number of usable rules.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Match returns the first rule approving command in cwd. Wildcard rules
// never approve a command that contains any compound metacharacter; such a
// command is only approved by an exact rule with the same text.
func (s *Snapshot) Match(command, cwd string) (Rule, bool) {
	if s == nil || len(s.Rules) == 0 {
		return Rule{}, false
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Rule{}, false
	}

	plain := isPlain(command)
	for _, r := range s.Rules {
		if !inScope(r.Scope, cwd) {
			continue
		}
		if r.matches(command, plain) {
			return r, true
		}
	}
	return Rule{}, false
}

// isPlain reports whether command is a single simple command according to
// both the compound tokenizer and the shell parser.
func isPlain(command string) bool {
	if compound.Analyze(command).Class != compound.Simple {
		return false
	}
	segs, err := normalize.Parse(command)
	return err == nil && len(segs) == 1
}

func (r Rule) matches(command string, plain bool) bool {
	switch r.kind {
	case Exact:
		return command == r.Pattern
	case Prefix:
		if !plain {
			return false
		}
		return command == r.prefix || strings.HasPrefix(command, r.prefix+" ")
	case Glob:
		if !plain || r.glob == nil {
			return false
		}
		return r.glob.MatchString(command)
	}
	return false
}

func inScope(scope, cwd string) bool {
	if scope == "" {
		return true
	}
	if cwd == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(scope), filepath.Clean(cwd))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Package deny implements the first tier: fixed, high-confidence signatures
// for actions that are never acceptable to run unattended. It performs no
// I/O and never allows anything; it either names a match or stays silent.
package deny

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gzhole/gatekeeper/internal/normalize"
	"github.com/gzhole/gatekeeper/internal/patterns"
	"github.com/gzhole/gatekeeper/internal/unicode"
)

// maxInlineDepth bounds recursion into bash -c '<inner>' payloads.
const maxInlineDepth = 3

// Match describes the signature that fired.
type Match struct {
	ID       string
	Category patterns.Category
	Reason   string
}

// String renders the match for decision reasons and audit lines.
func (m Match) String() string {
	return fmt.Sprintf("%s: %s [%s]", m.Category, m.Reason, m.ID)
}

// Matcher evaluates commands against a compiled signature table.
// It is safe for concurrent use.
type Matcher struct {
	table   *patterns.Compiled
	homeDir string
}

// NewMatcher returns a Matcher over table. homeDir is used to expand ~ in
// protected paths and in command arguments; it may be empty.
func NewMatcher(table *patterns.Compiled, homeDir string) *Matcher {
	if table == nil {
		table = patterns.Builtin()
	}
	return &Matcher{table: table, homeDir: homeDir}
}

// Match reports the first signature that command trips.
func (m *Matcher) Match(command, cwd string) (Match, bool) {
	return m.match(command, cwd, 0)
}

func (m *Matcher) match(command, cwd string, depth int) (Match, bool) {
	if strings.TrimSpace(command) == "" {
		return Match{}, false
	}

	if blocking := unicode.Scan(command).Blocking(); len(blocking) > 0 {
		f := blocking[0]
		return Match{
			ID:       "unicode-" + string(f.Kind),
			Category: patterns.CategoryUnicodeSmuggling,
			Reason:   "hidden or control character: " + f.String(),
		}, true
	}

	views := []string{command}
	if dq := normalize.Dequote(command); dq != command {
		views = append(views, dq)
	}
	for _, sig := range m.table.Deny {
		for _, v := range views {
			if sig.Re.MatchString(v) {
				return Match{ID: sig.ID, Category: sig.Category, Reason: sig.Reason}, true
			}
		}
	}

	segments, err := normalize.Normalize(command, cwd, m.homeDir)
	if err != nil {
		segments = nil
	}
	for _, seg := range segments {
		if hit, ok := checkSegment(seg); ok {
			return hit, true
		}
		if depth < maxInlineDepth {
			if inner := inlineScript(seg); inner != "" {
				if hit, ok := m.match(inner, cwd, depth+1); ok {
					hit.Reason += " (inside " + seg.Executable + " -c)"
					return hit, true
				}
			}
		}
		if hit, ok := m.checkProtected(seg); ok {
			return hit, true
		}
	}

	return Match{}, false
}

func (m *Matcher) checkProtected(seg normalize.Segment) (Match, bool) {
	for _, path := range seg.Paths {
		for _, pattern := range m.table.ProtectedPaths {
			if matchGlob(path, m.expand(pattern)) {
				return Match{
					ID:       "protected-path",
					Category: patterns.CategoryCredentialAccess,
					Reason:   fmt.Sprintf("%s touches protected path %s", seg.Executable, pattern),
				}, true
			}
		}
	}
	return Match{}, false
}

func (m *Matcher) expand(pattern string) string {
	if m.homeDir != "" && strings.HasPrefix(pattern, "~/") {
		return filepath.Join(m.homeDir, pattern[2:])
	}
	return pattern
}

// matchGlob supports "/**" (any depth), "/*" (one level) and filepath.Match
// syntax for everything else.
func matchGlob(path, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(path, prefix+"/") || path == prefix
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if !strings.HasPrefix(path, prefix+"/") {
			return false
		}
		return !strings.Contains(strings.TrimPrefix(path, prefix+"/"), "/")
	}

	matched, _ := filepath.Match(pattern, path)
	return matched
}

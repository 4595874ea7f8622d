// Package patterns holds the static, versioned signature data the
// deterministic tiers match against. It contains no matching logic of its
// own beyond compiling the expressions once.
package patterns

import (
	"fmt"
	"regexp"
	"sync"
)

// Version identifies the signature set shipped with this build. It is
// logged with every evaluation so audit lines can be tied to the data that
// produced them.
const Version = "2026.10.1"

// Category groups deny signatures by the kind of harm they prevent.
type Category string

const (
	CategoryPrivilegeEscalation Category = "privilege-escalation"
	CategoryRecursiveDelete     Category = "recursive-force-delete"
	CategoryDiskWipe            Category = "disk-wipe"
	CategoryReverseShell        Category = "reverse-shell"
	CategoryDestructiveSQL      Category = "destructive-database"
	CategoryEncodedPayload      Category = "encoded-payload"
	CategoryUnsafePermissions   Category = "unsafe-permissions"
	CategoryKillAll             Category = "process-kill-all"
	CategoryCrontab             Category = "crontab-tampering"
	CategoryCredentialAccess    Category = "credential-access"
	CategoryUnicodeSmuggling    Category = "unicode-smuggling"
)

// DenySignature is one high-confidence dangerous pattern.
type DenySignature struct {
	ID       string
	Category Category
	Reason   string
	Regex    string
}

// AllowlistEntry describes a sub-command that is safe to run unattended.
//
// When RequiresExactSubcommand is true, PrefixOrPattern is a word sequence
// ("git status") that must equal the leading words of the sub-command.
// Otherwise it is a regular expression matched against the whole trimmed
// sub-command. Exclude, when set, vetoes an otherwise matching sub-command.
type AllowlistEntry struct {
	PrefixOrPattern         string
	RequiresExactSubcommand bool
	Exclude                 string
}

// Table is the full signature set.
type Table struct {
	Version        string
	Deny           []DenySignature
	Allowlist      []AllowlistEntry
	ProtectedPaths []string
}

// CompiledDeny is a DenySignature with its expression compiled.
type CompiledDeny struct {
	DenySignature
	Re *regexp.Regexp
}

// CompiledAllow is an AllowlistEntry with its expressions compiled.
// Re is nil for word-prefix entries; Exclude is nil when unset.
type CompiledAllow struct {
	AllowlistEntry
	Re      *regexp.Regexp
	Exclude *regexp.Regexp
}

// Compiled is the ready-to-match form of a Table. It is immutable once built
// and safe for concurrent use.
type Compiled struct {
	Version        string
	Deny           []CompiledDeny
	Allowlist      []CompiledAllow
	ProtectedPaths []string
}

// Compile validates and compiles every expression in the table.
func (t *Table) Compile() (*Compiled, error) {
	c := &Compiled{
		Version:        t.Version,
		ProtectedPaths: append([]string(nil), t.ProtectedPaths...),
	}

	seen := make(map[string]bool)
	for _, sig := range t.Deny {
		if seen[sig.ID] {
			return nil, fmt.Errorf("duplicate deny signature id %q", sig.ID)
		}
		seen[sig.ID] = true
		re, err := regexp.Compile(sig.Regex)
		if err != nil {
			return nil, fmt.Errorf("deny signature %s: %w", sig.ID, err)
		}
		c.Deny = append(c.Deny, CompiledDeny{DenySignature: sig, Re: re})
	}

	for _, entry := range t.Allowlist {
		ca := CompiledAllow{AllowlistEntry: entry}
		if !entry.RequiresExactSubcommand {
			re, err := regexp.Compile(entry.PrefixOrPattern)
			if err != nil {
				return nil, fmt.Errorf("allowlist pattern %q: %w", entry.PrefixOrPattern, err)
			}
			ca.Re = re
		}
		if entry.Exclude != "" {
			re, err := regexp.Compile(entry.Exclude)
			if err != nil {
				return nil, fmt.Errorf("allowlist exclude %q: %w", entry.Exclude, err)
			}
			ca.Exclude = re
		}
		c.Allowlist = append(c.Allowlist, ca)
	}

	return c, nil
}

var (
	builtinOnce     sync.Once
	builtinCompiled *Compiled
)

// Builtin returns the compiled default table. The built-in expressions are
// covered by tests, so a compile failure here is a programming error.
func Builtin() *Compiled {
	builtinOnce.Do(func() {
		c, err := Default().Compile()
		if err != nil {
			panic("patterns: builtin table: " + err.Error())
		}
		builtinCompiled = c
	})
	return builtinCompiled
}

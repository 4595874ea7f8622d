package allowlist

import (
	"testing"

	"github.com/gzhole/gatekeeper/internal/compound"
	"github.com/gzhole/gatekeeper/internal/patterns"
)

func subs(texts ...string) []compound.SubCommand {
	out := make([]compound.SubCommand, len(texts))
	for i, text := range texts {
		c := compound.And
		if i == 0 {
			c = compound.None
		}
		out[i] = compound.SubCommand{Text: text, Connector: c}
	}
	return out
}

func TestCheck_Safe(t *testing.T) {
	m := NewMatcher(patterns.Builtin())

	for _, command := range []string{
		"ls -la /tmp",
		"pwd",
		"git status",
		"git diff --stat HEAD~1",
		"git log --oneline -n 20",
		"git branch",
		"git branch -a",
		"git stash list",
		"go test ./...",
		"go vet ./internal/...",
		"npm test",
		"cargo clippy --all-targets",
		"pytest -q tests/",
		"python3 -m pytest",
		"make test",
		"grep -rn TODO internal/",
		"find . -name '*.go'",
		"cat README.md",
		"kubectl get pods -A",
		"gh pr view 12",
		"eslint src/",
		"node --version",
		"rg -n TODO internal/",
		"tree -L 2",
		"sort -u names.txt",
		"git fetch origin main",
		"less README.md",
		"file go.mod",
	} {
		if r := m.Check(subs(command)); r.Outcome != MatchedSafe {
			t.Errorf("%q: outcome = %s, want matched-safe", command, r.Outcome)
		}
	}
}

func TestCheck_NoMatch(t *testing.T) {
	m := NewMatcher(patterns.Builtin())

	for _, command := range []string{
		"curl https://example.com",
		"git push --force",
		"git branch -D main",
		"git branch --delete feature",
		"git tag v1.0.0",
		"git remote add origin git@example.com:x.git",
		"git diff --output=/tmp/x",
		"git statusx",
		"find . -name '*.tmp' -delete",
		"find . -exec touch {} ;",
		"eslint --fix src/",
		"cargo clippy --fix",
		"sort -o out.txt in.txt",
		"npm install left-pad",
		"GIT_DIR=/tmp/x git status",
		"python script.py",
		"kubectl config view --raw",
		"rg --pre ./evil.sh TODO",
		"rg --pre-glob '*.pdf' --pre ./evil.sh x",
		"sort --compress-program=./evil.sh big.txt",
		"git fetch --upload-pack='touch /tmp/pwned' origin",
		"git fetch 'ext::sh -c touch% /tmp/pwned'",
		"tree -o notes.txt",
		"tree -R -H . .",
		"ag --pager ./evil.sh TODO",
		"ack --output='$&' TODO",
		"less -o copy.txt README.md",
		"file -C -m magic",
		"",
	} {
		r := m.Check(subs(command))
		if r.Outcome != NoMatch {
			t.Errorf("%q: outcome = %s, want no-match", command, r.Outcome)
		}
	}
}

func TestCheck_EverySubCommandMustMatch(t *testing.T) {
	m := NewMatcher(patterns.Builtin())

	r := m.Check(subs("git status", "git diff"))
	if r.Outcome != MatchedSafe {
		t.Fatalf("git status && git diff: outcome = %s", r.Outcome)
	}
	if len(r.Matched) != 2 || r.Matched[0] != "git status" || r.Matched[1] != "git diff" {
		t.Errorf("matched entries = %v", r.Matched)
	}

	r = m.Check(subs("git status", "npm publish", "git diff"))
	if r.Outcome != NoMatch {
		t.Fatalf("outcome = %s, want no-match", r.Outcome)
	}
	if r.Unmatched != "npm publish" {
		t.Errorf("unmatched = %q, want %q", r.Unmatched, "npm publish")
	}
}

func TestCheck_EmptySequence(t *testing.T) {
	if r := NewMatcher(nil).Check(nil); r.Outcome != NoMatch {
		t.Errorf("empty sequence: outcome = %s, want no-match", r.Outcome)
	}
}

func TestOutcome_ZeroValueIsNoMatch(t *testing.T) {
	var r Result
	if r.Outcome != NoMatch || r.Outcome.String() != "no-match" {
		t.Errorf("zero Result must be no-match, got %s", r.Outcome)
	}
}

func TestCheck_QuotedWords(t *testing.T) {
	m := NewMatcher(patterns.Builtin())
	if r := m.Check(subs(`'git' "status"`)); r.Outcome != MatchedSafe {
		t.Errorf("quoted git status should match after quote removal, got %s", r.Outcome)
	}
}

// Package redact scrubs credentials out of text before it is written to the
// audit log or shown to the LLM evaluator.
package redact

import "regexp"

// rule replaces matches of re with repl. When repl is empty the whole match
// becomes the kind placeholder.
type rule struct {
	kind string
	re   *regexp.Regexp
	repl string
}

func placeholder(kind string) string {
	return "[REDACTED:" + kind + "]"
}

// assignment keeps the variable name and separator and redacts the value.
func assignment(kind, names, value string) rule {
	return rule{
		kind: kind,
		re:   regexp.MustCompile(`(?i)\b(` + names + `)(\s*[=:]\s*)['"]?` + value + `['"]?`),
		repl: "${1}${2}" + placeholder(kind),
	}
}

func token(kind, expr string) rule {
	return rule{kind: kind, re: regexp.MustCompile(expr)}
}

// Order matters: assignments run before bare token shapes so the variable
// name survives in the output.
var rules = []rule{
	assignment("aws", `aws_access_key_id|aws_secret_access_key|aws_session_token`, `[A-Za-z0-9/+=]{16,}`),
	assignment("github", `github_token|gh_token|github_pat`, `[A-Za-z0-9_-]{20,}`),
	assignment("anthropic", `anthropic_api_key|gatekeeper_api_key`, `[A-Za-z0-9_-]{16,}`),
	assignment("api-key", `api_key|apikey|api-key|secret_key|secretkey|access_token|auth_token`, `[A-Za-z0-9_.-]{16,}`),
	assignment("password", `password|passwd|pwd|secret`, `[^\s'"]{8,}`),

	{
		kind: "url-credentials",
		re:   regexp.MustCompile(`\b([a-z][a-z0-9+.-]*://[^:/@\s]+):[^@/\s]+@`),
		repl: "${1}:" + placeholder("url-credentials") + "@",
	},
	{
		kind: "bearer",
		re:   regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9._~+/-]{20,}=*`),
		repl: "${1}" + placeholder("bearer"),
	},

	token("private-key", `(?s)-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----.*?(?:-----END (?:[A-Z]+ )?PRIVATE KEY-----|$)`),
	token("aws", `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
	token("github", `\bgh[pousr]_[A-Za-z0-9]{36}\b`),
	token("github", `\bgithub_pat_[A-Za-z0-9_]{40,}`),
	token("anthropic", `\bsk-ant-[A-Za-z0-9_-]{20,}`),
	token("openai", `\bsk-[A-Za-z0-9]{32,}`),
	token("slack", `\bxox[baprs]-[0-9]{10,13}-[0-9]{10,13}[A-Za-z0-9-]*`),
	token("stripe", `\b[rs]k_live_[0-9A-Za-z]{24,}`),
}

// Redact replaces every secret-looking substring with a placeholder naming
// the kind of credential that was removed.
func Redact(input string) string {
	out := input
	for _, r := range rules {
		repl := r.repl
		if repl == "" {
			repl = placeholder(r.kind)
		}
		out = r.re.ReplaceAllString(out, repl)
	}
	return out
}

// Contains reports whether input holds anything Redact would replace.
func Contains(input string) bool {
	return len(Kinds(input)) > 0
}

// Kinds lists the distinct credential kinds found in input, in rule order.
func Kinds(input string) []string {
	var kinds []string
	seen := make(map[string]bool)
	rest := input
	for _, r := range rules {
		if !r.re.MatchString(rest) {
			continue
		}
		if !seen[r.kind] {
			seen[r.kind] = true
			kinds = append(kinds, r.kind)
		}
		// Consume the match so a later, looser rule does not report the
		// same secret a second time.
		rest = r.re.ReplaceAllString(rest, " ")
	}
	return kinds
}

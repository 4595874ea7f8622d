package filecontext

import (
	"regexp"
	"strings"

	"github.com/gzhole/gatekeeper/internal/redact"
	"github.com/gzhole/gatekeeper/internal/unicode"
)

const (
	// BeginMarker and EndMarker delimit file content inside the prompt.
	BeginMarker = "<<<BEGIN UNTRUSTED FILE CONTENT>>>"
	EndMarker   = "<<<END UNTRUSTED FILE CONTENT>>>"

	removedLine   = "[line removed: addressed to the reviewer]"
	removedMarker = "[marker removed]"
)

// markerLike matches anything a reader could take for one of our boundary
// markers, with or without the angle brackets.
var markerLike = regexp.MustCompile(`(?i)<{3,}|>{3,}|\b(?:begin|end)[\s_-]*(?:of[\s_-]*)?untrusted\b|\b(?:begin|end)[\s_-]*(?:of[\s_-]*)?file[\s_-]*(?:content|context)\b`)

// reviewerDirected are lines that talk to whoever is classifying the script
// instead of doing anything a script does.
var reviewerDirected = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
	`(?i)override\s+(all\s+)?(safety|security)\s+(rules?|protocols?|guidelines?)`,
	`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
	`(?i)new\s+instructions?:`,
	`(?i)system\s*:\s*(you\s+are|ignore|forget|override)`,
	`(?i)\[INST\]|<\|im_start\|>|<\|system\|>`,
	`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
	`(?i)IMPORTANT:\s*(ignore|disregard|override)`,
	`(?i)\b(AI|assistant|LLM|model|classifier|reviewer|evaluator|gatekeeper)\b.{0,40}\b(must|should|shall|will|can)\s+(approve|allow|mark|classify|consider|treat|respond|answer|return|say)`,
	`(?i)\b(this|the)\s+(script|file|command|code)\s+(is|has\s+been)\s+(safe|harmless|approved|verified|audited|pre-?approved)`,
	`(?i)\b(mark|classify|treat|consider|rate)\s+(this|it|the\s+(script|command|file))\s+as\s+(safe|harmless|benign)`,
	`(?i)"safe"\s*:\s*true`,
	`(?i)\brespond\s+(only\s+)?with\b`,
})

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Sanitize makes untrusted file content safe to embed between the boundary
// markers. It drops invisible and look-alike characters, defuses marker
// look-alikes, blanks lines addressed to the reviewer and redacts secrets.
// The input is not modified; a new string is returned.
func Sanitize(content string) string {
	content = unicode.Scan(content).Sanitized

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if matchesAny(line, reviewerDirected) {
			out = append(out, indentOf(line)+removedLine)
			continue
		}
		out = append(out, markerLike.ReplaceAllString(line, removedMarker))
	}

	return redact.Redact(strings.Join(out, "\n"))
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

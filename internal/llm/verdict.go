package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when a model reply holds no usable verdict.
var ErrParse = errors.New("unparseable verdict")

// Verdict is the classifier's answer.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
}

// ParseVerdict extracts the first JSON object from a model reply. Models like
// to wrap JSON in prose or code fences, so only the braces are trusted.
func ParseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in %q", ErrParse, truncate(text, 120))
	}

	var raw struct {
		Safe   *bool  `json:"safe"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if raw.Safe == nil {
		return Verdict{}, fmt.Errorf("%w: missing \"safe\"", ErrParse)
	}
	return Verdict{Safe: *raw.Safe, Reason: strings.TrimSpace(raw.Reason)}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

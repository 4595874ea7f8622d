package llm

import "context"

// Source names used in the audit log.
const (
	SourceAPI   = "CLAUDE-API"
	SourceLocal = "CLAUDE-LOCAL"
)

// Classifier sends a rendered prompt to a model and returns its verdict.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, prompt string) (Verdict, error)
}

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/victorarias/claude-agent-sdk-go/sdk"
	"github.com/victorarias/claude-agent-sdk-go/types"
)

const DefaultLocalModel = "claude-haiku-4-5"

// LocalClassifier asks the locally installed claude CLI through the agent SDK.
type LocalClassifier struct {
	model string
}

func NewLocalClassifier(model string) *LocalClassifier {
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalClassifier{model: model}
}

func (c *LocalClassifier) Name() string { return SourceLocal }

func (c *LocalClassifier) Classify(ctx context.Context, prompt string) (Verdict, error) {
	messages, err := sdk.RunQuery(ctx, prompt,
		types.WithModel(c.model),
		types.WithMaxTurns(1),
		types.WithSystemPrompt(systemPrompt),
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("claude local query: %w", err)
	}

	for _, msg := range messages {
		if m, ok := msg.(*types.AssistantMessage); ok {
			return ParseVerdict(m.Text())
		}
	}
	return Verdict{}, errors.New("claude local query: empty response")
}

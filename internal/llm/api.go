package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultAPIBaseURL = "https://api.anthropic.com"
	DefaultAPIModel   = "claude-haiku-4-5"
	apiVersion        = "2023-06-01"
	apiMaxTokens      = 256
)

const systemPrompt = "You are a command-safety reviewer. Reply with a single JSON object and nothing else."

// APIClassifier talks to the Anthropic Messages API.
type APIClassifier struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type APIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// NewAPIClassifier creates an API transport. The request deadline comes from
// the context passed to Classify.
func NewAPIClassifier(cfg APIConfig) *APIClassifier {
	if cfg.Model == "" {
		cfg.Model = DefaultAPIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &APIClassifier{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

func (c *APIClassifier) Name() string { return SourceAPI }

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *APIClassifier) Classify(ctx context.Context, prompt string) (Verdict, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: apiMaxTokens,
		System:    systemPrompt,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("claude api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("claude api %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("decode: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	c.logger.Debug("claude api reply", "model", c.model, "stop_reason", out.StopReason, "bytes", text.Len())
	return ParseVerdict(text.String())
}

// Package genai provides LLM completion using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// completionService is the minimal surface of the OpenAI SDK this package
// depends on; tests substitute a fake.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	completions completionService
	model       openai.ChatModel
}

// NewClient initializes a new GenAI client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewClient invoked", "api_key_set", cfg.APIKey != "", "model", cfg.Model)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.ChatModelGPT4oMini
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{completions: &cli.Chat.Completions, model: model}, nil
}

// GenerateReply produces a completion for the given system and user prompts.
func (c *Client) GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	slog.Debug("GenAI GenerateReply", "system_len", len(systemPrompt), "user_len", len(userPrompt))
	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("GenAI GenerateReply failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateReply returned no choices")
		return "", fmt.Errorf("no choices returned")
	}
	slog.Debug("GenAI GenerateReply succeeded", "response_len", len(resp.Choices[0].Message.Content))
	return resp.Choices[0].Message.Content, nil
}

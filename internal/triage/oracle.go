package triage

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// ErrEmptyCompletion is returned when the oracle answers without any content.
var ErrEmptyCompletion = errors.New("oracle returned no completion choices")

// Oracle produces a raw text answer for a prompt.
type Oracle interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, p Prompt) (string, error)

// Complete calls f.
func (f OracleFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// OpenAIOracle talks to any OpenAI-compatible chat completion API.
type OpenAIOracle struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIOracle creates an oracle from an explicit credential.
func NewOpenAIOracle(cfg OpenAIConfig) *OpenAIOracle {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIOracle{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model name.
func (o *OpenAIOracle) Model() string {
	return o.model
}

// Complete sends the prompt and returns the first choice's content.
func (o *OpenAIOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

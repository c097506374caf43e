package generation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"ReckonAssist/internal/rag/interfaces"
)

// OpenAI is the LLM adapter for OpenAI-compatible chat completion APIs.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI generation client.
func NewOpenAI(model, apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	config := openai.DefaultConfig(apiKey)
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// ModelName returns the configured model identifier.
func (o *OpenAI) ModelName() string {
	return o.model
}

// Generate sends a single-turn prompt and returns the response text.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	// The fork declares Temperature as a pointer so the zero value can be
	// sent explicitly.
	temperature := float32(0.7)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:      &temperature,
		MaxTokens:        800,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	})
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ interfaces.LLM = (*OpenAI)(nil)

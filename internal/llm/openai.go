package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"api-path-tester/internal/config"
)

// OpenAIClient implements Completer using OpenAI's chat completion API
type OpenAIClient struct {
	client *openai.Client
	config *config.LLMConfig
}

// NewOpenAIClient creates a new OpenAI client. A non-empty BaseURL points it at
// any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *config.LLMConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Complete implements Completer
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: float32(c.config.Temperature),
			MaxTokens:   c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI: %w", ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

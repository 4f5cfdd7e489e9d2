package llm

import (
	"fmt"

	"api-path-tester/internal/config"
)

// NewClient creates a Completer for the configured provider
func NewClient(cfg *config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

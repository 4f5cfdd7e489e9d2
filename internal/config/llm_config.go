package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LLMConfig holds configuration for the LLM fixture author
type LLMConfig struct {
	Provider    string  `json:"provider"` // e.g., "openai"
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`    // e.g., "gpt-4o-mini"
	BaseURL     string  `json:"base_url"` // Optional, for custom endpoints
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// LoadLLMConfig loads LLM configuration from a file
func LoadLLMConfig(path string) (*LLMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read LLM config file: %w", err)
	}

	var config LLMConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse LLM config: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.APIKey == "" {
		config.APIKey = key
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}

	// Validate required fields
	if config.Provider == "" {
		return nil, fmt.Errorf("LLM provider is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &config, nil
}

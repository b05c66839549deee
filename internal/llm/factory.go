package llm

import (
	"fmt"
	"strings"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "groq":
		if config.BaseURL == "" {
			config.BaseURL = groqBaseURL
		}
		return newOpenAICompatible("groq", config)

	case "gemini", "google":
		if config.BaseURL == "" {
			config.BaseURL = geminiBaseURL
		}
		return newOpenAICompatible("gemini", config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, groq, gemini, anthropic, ollama)", config.Provider)
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/safeguard/internal/model"
)

// ChatModel is the base model whose answers are gated
type ChatModel struct {
	provider Provider
	config   model.ProviderConfig
}

// NewChatModel wraps a provider with the chat role settings
func NewChatModel(provider Provider, cfg model.ProviderConfig) *ChatModel {
	return &ChatModel{provider: provider, config: cfg}
}

// Reply generates the base model's answer to a user message
func (c *ChatModel) Reply(ctx context.Context, message string) (*GenerateResponse, error) {
	if c == nil || c.provider == nil {
		return nil, fmt.Errorf("chat model not configured")
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.provider.Generate(ctx, GenerateRequest{
		System:      c.config.SystemPrompt,
		Prompt:      message,
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat generation: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, fmt.Errorf("chat generation: empty response from %s", c.provider.Name())
	}
	return resp, nil
}

package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/safeguard/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces a single completion for the request
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one completion
type GenerateRequest struct {
	// System is the system prompt (optional)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured temperature when non-zero
	Temperature float32
}

// GenerateResponse contains a completion
type GenerateResponse struct {
	// Text is the generated text, trimmed
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "groq", "gemini", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30 * time.Second,
		MaxTokens: 1000,
	}
}

// ConfigFromModel builds a provider config for one LLM role
func ConfigFromModel(role model.ProviderConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    role.Provider,
		Model:       role.Model,
		APIKey:      role.APIKey,
		BaseURL:     role.BaseURL,
		Timeout:     role.Timeout,
		MaxTokens:   role.MaxTokens,
		Temperature: role.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}

const defaultTimeout = 30 * time.Second

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

// resolve fills request fields from the provider config
func (c Config) resolve(req GenerateRequest, defaultModel string) GenerateRequest {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1000
	}
	if req.Temperature == 0 {
		req.Temperature = c.Temperature
	}
	return req
}

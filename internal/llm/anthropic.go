package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicModel   = "claude-3-5-haiku-20241022"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider talks to the Anthropic Messages API
type AnthropicProvider struct {
	api    *jsonEndpoint
	config Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

// NewAnthropicProvider creates an Anthropic provider; an API key is required
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	header := http.Header{}
	header.Set("x-api-key", config.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	return &AnthropicProvider{
		api: &jsonEndpoint{
			provider:     "anthropic",
			baseURL:      strings.TrimSuffix(baseURL, "/"),
			client:       newHTTPClient(config, defaultTimeout),
			header:       header,
			errorMessage: anthropicErrorMessage,
		},
		config: config,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable lists one model, which checks the key without spending tokens
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	if err := p.api.call(ctx, http.MethodGet, "/v1/models?limit=1", nil, nil); err != nil {
		p.config.logger().WarnContext(ctx, "LLM availability check failed", "provider", p.Name(), "error", err)
		return false
	}
	return true
}

func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req = p.config.resolve(req, anthropicModel)

	var resp anthropicResponse
	err := p.api.call(ctx, http.MethodPost, "/v1/messages", anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: float64(req.Temperature),
	}, &resp)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" || c.Type == "" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("no text content in anthropic response")
	}

	return &GenerateResponse{
		Text:       strings.TrimSpace(text.String()),
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func anthropicErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Type + ": " + e.Error.Message
}

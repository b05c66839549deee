package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaBaseURL = "http://localhost:11434"

// OllamaProvider runs completions on a local Ollama server
type OllamaProvider struct {
	api    *jsonEndpoint
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaProvider creates an Ollama provider; no key is needed
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}

	return &OllamaProvider{
		api: &jsonEndpoint{
			provider: "ollama",
			baseURL:  strings.TrimSuffix(baseURL, "/"),
			// cold model loads are slow
			client:       newHTTPClient(config, 60*time.Second),
			errorMessage: ollamaErrorMessage,
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks the server answers and, when a model is configured,
// that it has been pulled.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	logger := p.config.logger()

	var tags ollamaTags
	if err := p.api.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		logger.WarnContext(ctx, "ollama availability check failed", "base_url", p.api.baseURL, "error", err)
		return false
	}
	if p.config.Model == "" {
		return true
	}
	for _, m := range tags.Models {
		if m.Name == p.config.Model || strings.TrimSuffix(m.Name, ":latest") == p.config.Model {
			return true
		}
	}
	logger.WarnContext(ctx, "ollama model not pulled", "model", p.config.Model)
	return false
}

// Generate runs a non-streaming completion
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req = p.config.resolve(req, "")
	if req.Model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	var resp ollamaResponse
	err := p.api.call(ctx, http.MethodPost, "/api/generate", ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: float64(req.Temperature),
			NumPredict:  req.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Done {
		return nil, fmt.Errorf("ollama returned an unfinished response for %s", req.Model)
	}

	text := strings.TrimSpace(resp.Response)
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		// rough estimate; some models omit eval counts
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &GenerateResponse{Text: text, Model: resp.Model, TokensUsed: tokens}, nil
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

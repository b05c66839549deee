package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/safeguard/internal/llm"
	"github.com/ppiankov/safeguard/internal/model"
)

const claimPrompt = `List the checkable medical or health claims made in the text below.
Return ONLY a JSON array of strings, one claim per element, at most %d elements.
Copy each claim as a short standalone sentence. Return [] if there are none.

Text:
%s`

// LLMExtractor asks a provider for claims and falls back to a heuristic
// extractor on any error
type LLMExtractor struct {
	provider  llm.Provider
	fallback  Extractor
	config    model.ProviderConfig
	maxClaims int
	logger    *slog.Logger
}

// NewLLMExtractor creates an LLM-backed extractor
func NewLLMExtractor(provider llm.Provider, cfg model.ProviderConfig, fallback Extractor, maxClaims int, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxClaims <= 0 {
		maxClaims = 3
	}
	return &LLMExtractor{
		provider:  provider,
		fallback:  fallback,
		config:    cfg,
		maxClaims: maxClaims,
		logger:    logger.With("component", "llm-extractor"),
	}
}

// Extract extracts claims via the provider
func (e *LLMExtractor) Extract(ctx context.Context, content string) ([]model.Claim, error) {
	claims, err := e.extract(ctx, content)
	if err != nil {
		e.logger.WarnContext(ctx, "LLM claim extraction failed, using heuristics", "error", err)
		return e.fallback.Extract(ctx, content)
	}
	return claims, nil
}

func (e *LLMExtractor) extract(ctx context.Context, content string) ([]model.Claim, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no provider configured")
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	resp, err := e.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:      fmt.Sprintf(claimPrompt, e.maxClaims, content),
		Model:       e.config.Model,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
	})
	if err != nil {
		return nil, err
	}

	texts, err := parseClaimArray(resp.Text)
	if err != nil {
		return nil, err
	}

	claims := make([]model.Claim, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			claims = append(claims, model.Claim{Text: t, Heuristic: "llm:" + e.provider.Name()})
		}
	}
	return finalizeClaims(claims, e.maxClaims), nil
}

// parseClaimArray reads a JSON string array, tolerating code fences and
// surrounding prose
func parseClaimArray(text string) ([]string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var out []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return out, nil
}

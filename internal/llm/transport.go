package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/safeguard/internal/util"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from a provider endpoint
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// Temporary reports whether retrying later may succeed
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func newHTTPClient(cfg Config, fallback time.Duration) *http.Client {
	return util.NewHTTPClient(cfg.timeout(fallback), cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
}

// jsonEndpoint is a JSON-over-HTTP API with a provider-specific error body
type jsonEndpoint struct {
	provider string
	baseURL  string
	client   *http.Client
	header   http.Header
	// errorMessage pulls a readable message out of an error body
	errorMessage func(body []byte) string
}

// call sends in (nil for no body) to path and decodes the reply into out
func (e *jsonEndpoint) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range e.header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if e.errorMessage != nil {
			msg = e.errorMessage(raw)
		}
		if msg == "" {
			msg = string(bytes.TrimSpace(raw))
		}
		return &APIError{Provider: e.provider, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

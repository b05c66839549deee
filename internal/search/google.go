package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ppiankov/safeguard/internal/model"
)

const (
	googleName       = "google"
	googleMaxResults = 10 // Custom Search caps num at 10
)

// GoogleSearcher queries the Google Custom Search JSON API
type GoogleSearcher struct {
	baseURL    string
	creds      []googleCreds
	num        int
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

type googleCreds struct {
	key string
	cx  string
}

type googleResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGoogleSearcher creates a Custom Search client. A backup key pair, when
// configured, is tried once after the primary pair is rate limited.
func NewGoogleSearcher(cfg model.GoogleConfig, num int, userAgent string, client *http.Client, logger *slog.Logger) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, fmt.Errorf("google: %w", ErrNotConfigured)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if num <= 0 || num > googleMaxResults {
		num = googleMaxResults
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/customsearch/v1"
	}

	creds := []googleCreds{{key: cfg.APIKey, cx: cfg.CX}}
	if cfg.BackupAPIKey != "" && cfg.BackupCX != "" {
		creds = append(creds, googleCreds{key: cfg.BackupAPIKey, cx: cfg.BackupCX})
	}

	return &GoogleSearcher{
		baseURL:    baseURL,
		creds:      creds,
		num:        num,
		userAgent:  userAgent,
		httpClient: client,
		logger:     logger.With("component", "search", "provider", googleName),
	}, nil
}

// Name returns the provider name
func (g *GoogleSearcher) Name() string {
	return googleName
}

// Search runs the query, switching to the backup credentials on HTTP 429
func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	for i, c := range g.creds {
		results, status, err := g.search(ctx, query, c)
		if status == http.StatusTooManyRequests {
			g.logger.WarnContext(ctx, "google quota exceeded", "credentials", i)
			continue
		}
		return results, err
	}
	return nil, fmt.Errorf("google: %w", ErrQuotaExceeded)
}

func (g *GoogleSearcher) search(ctx context.Context, query string, c googleCreds) ([]Result, int, error) {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("cx", c.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(g.num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("google request: %w", g.redact(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("google API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, resp.StatusCode, fmt.Errorf("google API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
	}
	if len(results) == 0 {
		return nil, resp.StatusCode, ErrNoResults
	}

	return rankResults(results, g.num), resp.StatusCode, nil
}

// redact drops the query string, which carries the API key, from
// transport errors before they reach a log line
func (g *GoogleSearcher) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: g.baseURL, Err: urlErr.Err}
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

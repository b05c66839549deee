package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/util"
)

const fetchAttempts = 3

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher retrieves page content to evaluate
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
}

// NewFetcher creates a Fetcher from outbound HTTP settings
func NewFetcher(cfg model.HTTPConfig, respectRobots bool) *Fetcher {
	client := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}
	return f
}

// FetchResult is a fetched page
type FetchResult struct {
	Content     string
	ContentType string
	Subject     string
	FinalURL    string
}

// Fetch retrieves content from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
		Subject:     extractSubject(finalURL),
		FinalURL:    finalURL,
	}, nil
}

// FetchWithRetry retries transient failures with linear backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchAttempts {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Transport failures from the client; parse failures are permanent
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Op != "parse"
}

// extractSubject derives a readable label from the URL path
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")

	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}

package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	robotsTTL      = time.Hour
	robotsMaxBytes = 512 << 10
)

// RobotsChecker answers whether a URL may be fetched under the origin's
// robots.txt. Policies are cached per origin for an hour.
type RobotsChecker struct {
	policies  *gocache.Cache
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewRobotsChecker creates a checker that identifies itself as userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		policies:  gocache.New(robotsTTL, 10*time.Minute),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    slog.Default().With("component", "robots"),
	}
}

// CanFetch reports whether rawURL is allowed and the crawl delay the
// origin asks for. An origin whose robots.txt cannot be read is allowed.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	policy, err := r.policy(ctx, origin)
	if err != nil {
		r.logger.DebugContext(ctx, "robots.txt unavailable", "origin", origin, "error", err)
		return true, 0, nil
	}

	group := policy.FindGroup(r.userAgent)
	if group == nil {
		return true, 0, nil
	}
	return group.Test(u.EscapedPath()), group.CrawlDelay, nil
}

// IsAllowed is CanFetch without the delay and error
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) bool {
	ok, _, _ := r.CanFetch(ctx, rawURL)
	return ok
}

// Clear drops every cached policy
func (r *RobotsChecker) Clear() {
	r.policies.Flush()
}

func (r *RobotsChecker) policy(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if v, ok := r.policies.Get(origin); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 5xx is an outage, not a policy; don't cache it
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots.txt status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	policy, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	r.policies.Set(origin, policy, gocache.DefaultExpiration)
	return policy, nil
}

package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/safeguard/internal/cache"
)

// CachedSearcher memoises successful responses. Errors and empty result
// sets are never cached so a later call can still reach the provider.
type CachedSearcher struct {
	next   Searcher
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSearcher wraps next with c
func NewCachedSearcher(next Searcher, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSearcher{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "search-cache"),
	}
}

// Name returns the wrapped provider name
func (c *CachedSearcher) Name() string {
	return c.next.Name()
}

// Search serves from the cache when possible
func (c *CachedSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	key := cache.CacheKey(c.next.Name(), query)

	if data, ok := c.cache.Get(key); ok {
		var results []Result
		if err := json.Unmarshal(data, &results); err == nil {
			c.logger.DebugContext(ctx, "cache hit", "provider", c.next.Name())
			return results, nil
		}
		_ = c.cache.Delete(key)
	}

	results, err := c.next.Search(ctx, query)
	if err != nil || len(results) == 0 {
		return results, err
	}

	data, err := json.Marshal(results)
	if err == nil {
		err = c.cache.Set(key, data, c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "provider", c.next.Name(), "error", err)
	}

	return results, nil
}

package search

import (
	"context"
	"fmt"

	"github.com/ppiankov/safeguard/internal/worker"
)

// LimitedSearcher throttles a searcher with a per-provider token bucket
type LimitedSearcher struct {
	next    Searcher
	limiter *worker.Limiter
}

// NewLimitedSearcher wraps next. The limiter may be shared between
// providers; buckets are keyed by provider name.
func NewLimitedSearcher(next Searcher, limiter *worker.Limiter) *LimitedSearcher {
	return &LimitedSearcher{next: next, limiter: limiter}
}

// Name returns the wrapped provider name
func (l *LimitedSearcher) Name() string {
	return l.next.Name()
}

// Search waits for a token, then delegates
func (l *LimitedSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	if err := l.limiter.Wait(ctx, l.next.Name()); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", l.next.Name(), err)
	}
	return l.next.Search(ctx, query)
}

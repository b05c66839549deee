// Package search queries web search providers for evidence about claims.
package search

import (
	"context"
	"errors"
)

var (
	// ErrNoResults is returned when a provider answers but finds nothing
	ErrNoResults = errors.New("no search results")
	// ErrNotConfigured is returned when a provider lacks credentials
	ErrNotConfigured = errors.New("search provider not configured")
	// ErrQuotaExceeded is returned when every credential set is rate limited
	ErrQuotaExceeded = errors.New("search quota exceeded")
)

// Result is one organic search hit
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"` // 1-based position in the provider's list
}

// Searcher runs a web query
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

func rankResults(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

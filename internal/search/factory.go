package search

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/safeguard/internal/cache"
	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/util"
	"github.com/ppiankov/safeguard/internal/worker"
)

// NewSearcher creates a bare provider by name. An empty name returns nil.
func NewSearcher(name string, cfg *model.SearchConfig, httpCfg model.HTTPConfig, logger *slog.Logger) (Searcher, error) {
	client := util.NewHTTPClient(httpCfg.Timeout, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy)

	switch strings.ToLower(name) {
	case "":
		return nil, nil
	case googleName:
		return NewGoogleSearcher(cfg.Google, cfg.ResultsPerQuery, httpCfg.UserAgent, client, logger)
	case duckDuckGoName, "ddg":
		opts := DuckDuckGoOptions{
			BaseURL:      cfg.DuckDuckGo.BaseURL,
			Results:      cfg.ResultsPerQuery,
			UserAgent:    httpCfg.UserAgent,
			MaxBodyBytes: httpCfg.MaxBodyBytes,
			Client:       client,
			Logger:       logger,
		}
		if cfg.DuckDuckGo.RespectRobots {
			opts.Robots = util.NewRobotsChecker(httpCfg.UserAgent, httpCfg.Timeout)
		}
		return NewDuckDuckGoSearcher(opts), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s (supported: google, duckduckgo)", name)
	}
}

// NewFromConfig builds the primary and fallback chains: cache, then rate
// limiter, then provider. A provider without credentials is skipped with a
// warning; either return value may be nil.
func NewFromConfig(cfg *model.SearchConfig, httpCfg model.HTTPConfig, logger *slog.Logger) (primary, fallback Searcher, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	store := cache.New(cfg.CacheTTL, cfg.CacheDir)

	build := func(name string) (Searcher, error) {
		s, err := NewSearcher(name, cfg, httpCfg, logger)
		if errors.Is(err, ErrNotConfigured) {
			logger.Warn("search provider disabled", "provider", name, "error", err)
			return nil, nil
		}
		if err != nil || s == nil {
			return nil, err
		}

		s = NewLimitedSearcher(s, limiter)
		if store != nil {
			s = NewCachedSearcher(s, store, cfg.CacheTTL, logger)
		}
		return s, nil
	}

	if primary, err = build(cfg.Primary); err != nil {
		return nil, nil, fmt.Errorf("primary search: %w", err)
	}
	if fallback, err = build(cfg.Fallback); err != nil {
		return nil, nil, fmt.Errorf("fallback search: %w", err)
	}

	return primary, fallback, nil
}

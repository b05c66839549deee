// Package evidence searches the web for each extracted claim and grades the
// claim by the credibility tier of the sources that back or negate it.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/safeguard/internal/extract"
	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/search"
)

const defaultSearchTimeout = 5 * time.Second

// Options wires an Aggregator
type Options struct {
	Extractor     extract.Extractor
	Primary       search.Searcher // may be nil
	Fallback      search.Searcher // may be nil
	Classifier    *TierClassifier
	Config        model.EvidenceConfig
	SearchTimeout time.Duration
	Workers       int
	Logger        *slog.Logger
	// OnFallback is called each time the fallback provider is queried
	OnFallback func(ctx context.Context, provider string)
}

// Aggregator gathers per-claim evidence with bounded concurrency
type Aggregator struct {
	extractor  extract.Extractor
	primary    search.Searcher
	fallback   search.Searcher
	classifier *TierClassifier
	negations  []*regexp.Regexp
	cfg        model.EvidenceConfig
	timeout    time.Duration
	workers    int
	logger     *slog.Logger
	onFallback func(ctx context.Context, provider string)
}

// NewAggregator validates options and compiles negation patterns
func NewAggregator(opts Options) (*Aggregator, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("evidence: extractor is required")
	}
	if opts.Classifier == nil {
		opts.Classifier = NewTierClassifier(nil)
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnFallback == nil {
		opts.OnFallback = func(context.Context, string) {}
	}

	negations := make([]*regexp.Regexp, 0, len(opts.Config.NegationPatterns))
	for i, p := range opts.Config.NegationPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("evidence: invalid negation pattern at index %d: %w", i, err)
		}
		negations = append(negations, re)
	}

	return &Aggregator{
		extractor:  opts.Extractor,
		primary:    opts.Primary,
		fallback:   opts.Fallback,
		classifier: opts.Classifier,
		negations:  negations,
		cfg:        opts.Config,
		timeout:    opts.SearchTimeout,
		workers:    opts.Workers,
		logger:     opts.Logger.With("component", "evidence"),
		onFallback: opts.OnFallback,
	}, nil
}

// Gather extracts claims from text and returns one verdict per claim in
// claim order. It never fails: provider errors degrade to NO_EVIDENCE.
func (a *Aggregator) Gather(ctx context.Context, text string, flags model.RuleFlags) model.EvidenceSummary {
	if a.cfg.SkipOnHardBlock && flags.HardBlock() {
		a.logger.DebugContext(ctx, "skipping evidence search for hard block",
			"categories", flags.HardBlockCategories())
		return model.EvidenceSummary{}
	}

	claims, err := a.extractor.Extract(ctx, text)
	if err != nil {
		a.logger.WarnContext(ctx, "claim extraction failed", "error", err)
		return model.EvidenceSummary{}
	}

	summary := make(model.EvidenceSummary, len(claims))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, a.workers)

	for i, claim := range claims {
		wg.Add(1)
		go func(idx int, c model.Claim) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			summary[idx] = a.verify(ctx, c)
		}(i, claim)
	}

	wg.Wait()

	return summary
}

// verify searches one claim and grades the results
func (a *Aggregator) verify(ctx context.Context, claim model.Claim) model.EvidenceVerdict {
	results, provider, ok := a.search(ctx, claim.Text)
	if !ok {
		return model.EvidenceVerdict{
			ClaimID:         claim.ID,
			Claim:           claim.Text,
			Status:          model.StatusNoEvidence,
			ConfidenceLevel: model.ConfidenceUnknown,
			Tier1Sources:    []model.Source{},
			Tier2Sources:    []model.Source{},
			FallbackApplied: true,
		}
	}

	v := a.assess(claim, results)
	v.Provider = provider
	return v
}

// search tries the primary provider, then the fallback exactly once
func (a *Aggregator) search(ctx context.Context, query string) ([]search.Result, string, bool) {
	if a.primary != nil {
		results, err := a.query(ctx, a.primary, query)
		if err == nil && len(results) > 0 {
			return results, a.primary.Name(), true
		}
		a.logger.WarnContext(ctx, "primary search failed", "provider", a.primary.Name(), "error", err)
	}

	if a.fallback != nil {
		a.onFallback(ctx, a.fallback.Name())
		results, err := a.query(ctx, a.fallback, query)
		if err == nil && len(results) > 0 {
			return results, a.fallback.Name(), true
		}
		a.logger.WarnContext(ctx, "fallback search failed", "provider", a.fallback.Name(), "error", err)
	}

	return nil, "", false
}

// query runs a single search with its own deadline. Caller cancellation
// does not abort it; only the per-call timeout does.
func (a *Aggregator) query(ctx context.Context, s search.Searcher, query string) ([]search.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	results, err := s.Search(callCtx, query)
	if err == nil && len(results) == 0 {
		err = search.ErrNoResults
	}
	return results, err
}

// assess classifies results and derives status and confidence
func (a *Aggregator) assess(claim model.Claim, results []search.Result) model.EvidenceVerdict {
	v := model.EvidenceVerdict{
		ClaimID:      claim.ID,
		Claim:        claim.Text,
		TotalResults: len(results),
	}

	var sources []model.Source
	for i, r := range results {
		tier, confidence := a.classifier.Classify(r.URL)
		v.TierBreakdown.Add(tier)
		if tier == model.TierUntiered {
			continue
		}

		rank := r.Rank
		if rank == 0 {
			rank = i + 1
		}
		sources = append(sources, model.Source{
			URL:        r.URL,
			Title:      r.Title,
			Snippet:    r.Snippet,
			Domain:     Host(r.URL),
			Tier:       tier,
			Confidence: confidence,
			Stance:     a.stance(r),
			Rank:       rank,
		})
	}
	v.TrustedCount = v.TierBreakdown.Trusted()

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Tier != sources[j].Tier {
			return sources[i].Tier < sources[j].Tier
		}
		if sources[i].Confidence != sources[j].Confidence {
			return sources[i].Confidence > sources[j].Confidence
		}
		return sources[i].Rank < sources[j].Rank
	})

	var relevant []model.Source
	v.Status, relevant = a.status(sources)
	v.ConfidenceScore, v.ConfidenceLevel = a.confidence(relevant)

	a.group(&v, sources)
	return v
}

// stance reports whether a result's title or snippet negates the claim
func (a *Aggregator) stance(r search.Result) model.Stance {
	text := r.Title + " " + r.Snippet
	for _, re := range a.negations {
		if re.MatchString(text) {
			return model.StanceNegates
		}
	}
	return model.StanceSupports
}

// status applies the grading rules and returns the sources the confidence
// is computed from.
func (a *Aggregator) status(sources []model.Source) (model.EvidenceStatus, []model.Source) {
	var supporting, negating []model.Source
	var supportWeight, negateWeight int
	authoritativeNegation := false
	tier1, tier2 := 0, 0

	for _, s := range sources {
		w := a.cfg.TierWeights.For(s.Tier)
		if s.Stance == model.StanceNegates {
			negating = append(negating, s)
			negateWeight += w
			if s.Tier == model.Tier1 || s.Tier == model.Tier2 {
				authoritativeNegation = true
			}
			continue
		}
		supporting = append(supporting, s)
		supportWeight += w
		switch s.Tier {
		case model.Tier1:
			tier1++
		case model.Tier2:
			tier2++
		}
	}

	switch {
	case authoritativeNegation && negateWeight >= supportWeight:
		return model.StatusContradicted, negating
	case tier1 >= 1 || tier2 >= 2:
		return model.StatusStrongSupport, supporting
	case len(supporting) > 0:
		return model.StatusWeakSupport, supporting
	default:
		return model.StatusNoEvidence, negating
	}
}

// confidence is the tier-weighted mean confidence of sources
func (a *Aggregator) confidence(sources []model.Source) (float64, model.ConfidenceLevel) {
	var sum, weights float64
	for _, s := range sources {
		w := float64(a.cfg.TierWeights.For(s.Tier))
		sum += w * float64(s.Confidence)
		weights += w
	}
	if weights == 0 {
		return 0, model.ConfidenceUnknown
	}
	score := sum / weights
	return score, model.ConfidenceForScore(score)
}

// group fills the per-tier source lists, honouring the caps
func (a *Aggregator) group(v *model.EvidenceVerdict, sources []model.Source) {
	v.Tier1Sources = []model.Source{}
	v.Tier2Sources = []model.Source{}

	for _, s := range sources {
		var bucket *[]model.Source
		switch s.Tier {
		case model.Tier1:
			bucket = &v.Tier1Sources
		case model.Tier2:
			bucket = &v.Tier2Sources
		case model.Tier3:
			bucket = &v.Tier3Sources
		case model.Tier4:
			bucket = &v.Tier4Sources
		default:
			continue
		}
		if len(*bucket) < a.cfg.TierCaps.For(s.Tier) {
			*bucket = append(*bucket, s)
		}
	}
}

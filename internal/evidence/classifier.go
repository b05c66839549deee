package evidence

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/safeguard/internal/model"
)

// TierClassifier classifies sources into credibility tiers by host
type TierClassifier struct {
	domains   []domainTier // longest suffix first
	generic   []domainTier
	untrusted []domainTier
	fragments []string
}

type domainTier struct {
	suffix     string
	tier       model.Tier
	confidence int
}

// NewTierClassifier creates a classifier; nil config uses the defaults.
func NewTierClassifier(cfg *model.TierConfig) *TierClassifier {
	if cfg == nil {
		defaults := model.DefaultTiers()
		cfg = &defaults
	}

	c := &TierClassifier{}
	for _, def := range cfg.Tiers {
		for _, d := range def.Domains {
			c.domains = append(c.domains, domainTier{suffix: normalizeDomain(d), tier: def.Tier, confidence: def.Confidence})
		}
	}
	for _, d := range cfg.Generic.Domains {
		c.generic = append(c.generic, domainTier{suffix: normalizeDomain(d), tier: cfg.Generic.Tier, confidence: cfg.Generic.Confidence})
	}
	// Entries with a dot are domains; bare words match anywhere in the host
	for _, u := range cfg.Untrusted {
		u = normalizeDomain(u)
		switch {
		case u == "":
		case strings.Contains(u, "."):
			c.untrusted = append(c.untrusted, domainTier{suffix: u, tier: model.TierUntiered})
		default:
			c.fragments = append(c.fragments, u)
		}
	}

	// Longest suffix wins, so sub-domains with their own entry
	// (pubmed.ncbi.nlm.nih.gov) beat their parent (nih.gov).
	byLength := func(s []domainTier) {
		sort.SliceStable(s, func(i, j int) bool { return len(s[i].suffix) > len(s[j].suffix) })
	}
	byLength(c.domains)
	byLength(c.generic)

	return c
}

// Classify returns the tier and confidence for a URL. The result depends
// only on the host.
func (c *TierClassifier) Classify(rawURL string) (model.Tier, int) {
	host := Host(rawURL)
	if host == "" {
		return model.TierUntiered, 0
	}

	if dt, ok := match(c.domains, host); ok {
		return dt.tier, dt.confidence
	}

	if _, ok := match(c.untrusted, host); ok {
		return model.TierUntiered, 0
	}
	for _, f := range c.fragments {
		if strings.Contains(host, f) {
			return model.TierUntiered, 0
		}
	}

	if dt, ok := match(c.generic, host); ok {
		return dt.tier, dt.confidence
	}

	return model.TierUntiered, 0
}

func match(domains []domainTier, host string) (domainTier, bool) {
	for _, dt := range domains {
		if host == dt.suffix || strings.HasSuffix(host, "."+dt.suffix) {
			return dt, true
		}
	}
	return domainTier{}, false
}

// Host returns the lower-cased host of a URL without port or "www."
func Host(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeDomain(parsed.Hostname())
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

package model

import "fmt"

// Tier represents the credibility class of an evidence source
type Tier int

const (
	TierUntiered Tier = 0 // Not in the tier table; excluded from support
	Tier1        Tier = 1 // Government health authorities, WHO
	Tier2        Tier = 2 // Peer-reviewed research, major clinical institutions
	Tier3        Tier = 3 // Consumer health information
	Tier4        Tier = 4 // Generic educational / government domains
)

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "government_who"
	case Tier2:
		return "peer_reviewed_medical"
	case Tier3:
		return "credible_health_info"
	case Tier4:
		return "general_educational"
	default:
		return "untiered"
	}
}

// Valid reports whether t is a known tier value
func (t Tier) Valid() bool {
	return t >= TierUntiered && t <= Tier4
}

// Stance says whether a source backs or negates the claim
type Stance string

const (
	StanceSupports Stance = "supports"
	StanceNegates  Stance = "negates"
)

// Source is one search result after tier classification
type Source struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet,omitempty"`
	Domain     string `json:"domain"`
	Tier       Tier   `json:"tier"`
	Confidence int    `json:"confidence"`
	Stance     Stance `json:"stance,omitempty"`
	Rank       int    `json:"-"` // Position in the provider's result list
}

// EvidenceStatus is the per-claim aggregate verdict
type EvidenceStatus string

const (
	StatusStrongSupport EvidenceStatus = "STRONG_SUPPORT"
	StatusWeakSupport   EvidenceStatus = "WEAK_SUPPORT"
	StatusNoEvidence    EvidenceStatus = "NO_EVIDENCE"
	StatusContradicted  EvidenceStatus = "CONTRADICTED"
)

// Valid reports whether s is a known status
func (s EvidenceStatus) Valid() bool {
	switch s {
	case StatusStrongSupport, StatusWeakSupport, StatusNoEvidence, StatusContradicted:
		return true
	default:
		return false
	}
}

// ConfidenceLevel buckets the tier-weighted confidence of a verdict
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "HIGH"
	ConfidenceMedium  ConfidenceLevel = "MEDIUM"
	ConfidenceLow     ConfidenceLevel = "LOW"
	ConfidenceUnknown ConfidenceLevel = "UNKNOWN"
)

// Valid reports whether c is a known confidence level
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnknown:
		return true
	default:
		return false
	}
}

// ConfidenceForScore buckets a 0-100 confidence score
func ConfidenceForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 85:
		return ConfidenceHigh
	case score >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// TierBreakdown counts results per tier
type TierBreakdown struct {
	GovernmentWHO       int `json:"government_who"`
	PeerReviewedMedical int `json:"peer_reviewed_medical"`
	CredibleHealthInfo  int `json:"credible_health_info"`
	GeneralEducational  int `json:"general_educational"`
	Untiered            int `json:"untiered"`
}

// Add counts one source of the given tier
func (b *TierBreakdown) Add(t Tier) {
	switch t {
	case Tier1:
		b.GovernmentWHO++
	case Tier2:
		b.PeerReviewedMedical++
	case Tier3:
		b.CredibleHealthInfo++
	case Tier4:
		b.GeneralEducational++
	default:
		b.Untiered++
	}
}

// Trusted returns the number of tiered sources
func (b TierBreakdown) Trusted() int {
	return b.GovernmentWHO + b.PeerReviewedMedical + b.CredibleHealthInfo + b.GeneralEducational
}

// EvidenceVerdict is the aggregate evidence for one claim
type EvidenceVerdict struct {
	ClaimID         string          `json:"claim_id"`
	Claim           string          `json:"claim"`
	Status          EvidenceStatus  `json:"status"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore float64         `json:"confidence_score"`

	Tier1Sources []Source `json:"tier1_sources"`
	Tier2Sources []Source `json:"tier2_sources"`
	Tier3Sources []Source `json:"tier3_sources,omitempty"`
	Tier4Sources []Source `json:"tier4_sources,omitempty"`

	TierBreakdown   TierBreakdown `json:"tier_breakdown"`
	TrustedCount    int           `json:"trusted_count"`
	TotalResults    int           `json:"total_results"`
	Provider        string        `json:"provider,omitempty"`
	FallbackApplied bool          `json:"fallback_applied"`
}

// Sources returns the grouped sources in tier order
func (v EvidenceVerdict) Sources() []Source {
	var out []Source
	out = append(out, v.Tier1Sources...)
	out = append(out, v.Tier2Sources...)
	out = append(out, v.Tier3Sources...)
	out = append(out, v.Tier4Sources...)
	return out
}

// Validate checks the fields the decision engine requires
func (v EvidenceVerdict) Validate() error {
	if v.ClaimID == "" {
		return fmt.Errorf("verdict missing claim id")
	}
	if v.Claim == "" {
		return fmt.Errorf("verdict %s missing claim text", v.ClaimID)
	}
	if !v.Status.Valid() {
		return fmt.Errorf("verdict %s has unknown status %q", v.ClaimID, v.Status)
	}
	if !v.ConfidenceLevel.Valid() {
		return fmt.Errorf("verdict %s has unknown confidence level %q", v.ClaimID, v.ConfidenceLevel)
	}
	for _, s := range v.Sources() {
		if !s.Tier.Valid() {
			return fmt.Errorf("verdict %s has source with invalid tier %d", v.ClaimID, s.Tier)
		}
	}
	return nil
}

// EvidenceSummary is the set of verdicts for one evaluation
type EvidenceSummary []EvidenceVerdict

// Count returns how many verdicts have the given status
func (s EvidenceSummary) Count(status EvidenceStatus) int {
	n := 0
	for _, v := range s {
		if v.Status == status {
			n++
		}
	}
	return n
}

// Any reports whether at least one verdict has the given status
func (s EvidenceSummary) Any(status EvidenceStatus) bool {
	return s.Count(status) > 0
}

// All reports whether every verdict has the given status (true when empty)
func (s EvidenceSummary) All(status EvidenceStatus) bool {
	return s.Count(status) == len(s)
}

// Validate checks every verdict and rejects duplicate claim ids
func (s EvidenceSummary) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, v := range s {
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.ClaimID] {
			return fmt.Errorf("duplicate claim id %s", v.ClaimID)
		}
		seen[v.ClaimID] = true
	}
	return nil
}

package model

// Decision is the gate outcome for a piece of content
type Decision string

const (
	DecisionAllow            Decision = "ALLOW"
	DecisionAllowWithWarning Decision = "ALLOW_WITH_WARNING"
	DecisionRefuse           Decision = "REFUSE"
	DecisionEscalate         Decision = "ESCALATE"
	DecisionAskMoreInfo      Decision = "ASK_MORE_INFO"
)

// Safe reports whether content with this decision may be shown to the user
func (d Decision) Safe() bool {
	return d == DecisionAllow || d == DecisionAllowWithWarning
}

// Severity grades how risky the content is
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// SeverityForScore maps a 0-100 risk score to a severity bucket
func SeverityForScore(score int) Severity {
	switch {
	case score >= 60:
		return SeverityHigh
	case score >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Verdict is the output of the decision engine
type Verdict struct {
	Decision  Decision `json:"decision"`
	Severity  Severity `json:"severity"`
	RiskScore int      `json:"risk_score"`
	Rule      string   `json:"rule"`   // Precedence rule that fired
	Reason    string   `json:"reason"` // Human-readable reason
}

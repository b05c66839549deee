// Package decision turns rule flags, evidence and user context into a
// single gate verdict. It is pure: the same input always yields the same
// verdict.
package decision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/safeguard/internal/model"
)

// ErrMalformedInput is returned instead of guessing a verdict
var ErrMalformedInput = errors.New("malformed decision input")

// Rule names reported in Verdict.Rule
const (
	RuleHardBlock      = "hard_block"
	RuleContradicted   = "contradicted"
	RuleEmergency      = "emergency_no_evidence"
	RuleMixedSupport   = "mixed_support"
	RuleUnsupported    = "unsupported_claims"
	RuleMissingContext = "missing_context"
	RuleWeakSupport    = "weak_support"
	RuleAllow          = "allow"
)

// Input is everything the engine looks at
type Input struct {
	Flags    model.RuleFlags
	Evidence model.EvidenceSummary
	Context  model.UserContext
}

// Engine applies the precedence table
type Engine struct {
	cfg model.DecisionConfig
}

// NewEngine creates an engine; nil config uses the defaults
func NewEngine(cfg *model.DecisionConfig) *Engine {
	if cfg == nil {
		cfg = &model.DefaultConfig().Decision
	}
	return &Engine{cfg: *cfg}
}

// MissingContext returns the required context fields the user left blank
func (e *Engine) MissingContext(uc model.UserContext) []string {
	return uc.Missing(e.cfg.RequiredContext)
}

// Decide returns the verdict of the first precedence rule that matches
func (e *Engine) Decide(in Input) (model.Verdict, error) {
	if err := in.Flags.Validate(); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := in.Evidence.Validate(); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	subtotal := in.Flags.RiskSubtotal
	ev := in.Evidence
	strong := ev.Count(model.StatusStrongSupport)

	switch {
	case in.Flags.HardBlock():
		return verdict(model.DecisionRefuse, model.SeverityHigh, max(40, subtotal), RuleHardBlock,
			"Content contains prohibited medical instructions: "+joinCategories(in.Flags.HardBlockCategories())), nil

	case ev.Any(model.StatusContradicted):
		return verdict(model.DecisionRefuse, model.SeverityHigh, max(30, subtotal, e.meanClaimRisk(ev)), RuleContradicted,
			"Trusted sources contradict a claim in this content"), nil

	case in.Flags.ContainsEmergency && ev.All(model.StatusNoEvidence):
		return verdict(model.DecisionEscalate, model.SeverityHigh, max(60, subtotal), RuleEmergency,
			"Possible medical emergency without supporting evidence; requires professional review"), nil

	case strong > 0 && strong < len(ev):
		return verdict(model.DecisionAllowWithWarning, model.SeverityMedium, max(subtotal, e.meanClaimRisk(ev)), RuleMixedSupport,
			"Some claims are supported by trusted sources, others are not"), nil
	}

	if missing := e.MissingContext(in.Context); len(missing) > 0 && in.Flags.ContextDependent() {
		return verdict(model.DecisionAskMoreInfo, model.SeverityMedium, min(59, max(25, subtotal)), RuleMissingContext,
			"Medical claims require patient context ("+strings.Join(missing, ", ")+")"), nil
	}

	// Past this point there is no strong support to weigh against
	switch {
	case ev.Any(model.StatusNoEvidence):
		return verdict(model.DecisionRefuse, model.SeverityHigh, max(60, subtotal), RuleUnsupported,
			"Medical claim lacks supporting evidence from trusted sources"), nil

	case len(ev) > 0 && ev.All(model.StatusWeakSupport):
		return verdict(model.DecisionAllowWithWarning, model.SeverityMedium, max(subtotal, e.meanClaimRisk(ev)), RuleWeakSupport,
			"Limited evidence available - verify with a healthcare professional"), nil
	}

	reason := "No medical risk indicators found"
	switch {
	case strong > 0:
		reason = "General health information supported by trusted sources"
	case subtotal > 0:
		reason = "Low-risk general health information"
	}
	return verdict(model.DecisionAllow, model.SeverityLow, subtotal, RuleAllow, reason), nil
}

// meanClaimRisk is the average configured risk of the verdicts' statuses
func (e *Engine) meanClaimRisk(ev model.EvidenceSummary) int {
	if len(ev) == 0 {
		return 0
	}
	total := 0
	for _, v := range ev {
		total += e.cfg.ClaimRisk.For(v.Status)
	}
	return (total + len(ev)/2) / len(ev)
}

func verdict(d model.Decision, s model.Severity, score int, rule, reason string) model.Verdict {
	return model.Verdict{
		Decision:  d,
		Severity:  s,
		RiskScore: clamp(score),
		Rule:      rule,
		Reason:    reason,
	}
}

func clamp(score int) int {
	return min(100, max(0, score))
}

func joinCategories(cats []model.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

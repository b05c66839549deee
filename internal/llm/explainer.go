package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/ppiankov/safeguard/internal/model"
)

// ErrCitationLeak is returned when generated text cites a URL outside the evidence allowlist
var ErrCitationLeak = errors.New("citation leak")

// GeneratedByFallback marks explanations that did not come from a provider
const GeneratedByFallback = "fallback"

var fallbackExplanations = map[model.Decision]string{
	model.DecisionRefuse:           "This content contains medical instructions or claims that lack credible support. Please consult a qualified healthcare professional.",
	model.DecisionEscalate:         "This content requires professional review due to conflicting information or complexity.",
	model.DecisionAskMoreInfo:      "To properly evaluate this medical content, we need more context about your situation.",
	model.DecisionAllowWithWarning: "This appears to be general health information, but always verify with a healthcare professional.",
	model.DecisionAllow:            "This appears to be general health education content from trusted sources.",
}

// FallbackExplanation returns the static explanation for a decision
func FallbackExplanation(decision model.Decision) string {
	if text, ok := fallbackExplanations[decision]; ok {
		return text
	}
	return "Unable to evaluate this content safely."
}

const explainSystemPrompt = "You are a safety explanation system. Your ONLY job is to explain why a decision was made. Never provide medical advice."

// ExplainRequest is everything the explainer may describe
type ExplainRequest struct {
	Verdict  model.Verdict
	Flags    model.RuleFlags
	Evidence model.EvidenceSummary
}

// EvidenceURLs returns the allowlist of URLs an explanation may cite
func (r ExplainRequest) EvidenceURLs() []string {
	var urls []string
	for _, v := range r.Evidence {
		for _, s := range v.Sources() {
			if !slices.Contains(urls, s.URL) {
				urls = append(urls, s.URL)
			}
		}
	}
	return urls
}

// Explainer turns a verdict into user-facing text. It never changes the verdict.
type Explainer struct {
	provider Provider
	config   model.ProviderConfig
	logger   *slog.Logger
}

// NewExplainer creates an explainer. A nil provider always yields fallback text.
func NewExplainer(provider Provider, cfg model.ProviderConfig, logger *slog.Logger) *Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explainer{
		provider: provider,
		config:   cfg,
		logger:   logger.With("component", "explainer"),
	}
}

// Explain always returns usable text. A non-nil error reports why the
// fallback text was used instead of the provider's output.
func (e *Explainer) Explain(ctx context.Context, req ExplainRequest) (model.Explanation, error) {
	fallback := model.Explanation{
		Text:              FallbackExplanation(req.Verdict.Decision),
		ExplanationSource: model.ExplanationSource{GeneratedBy: GeneratedByFallback},
	}
	if e.provider == nil {
		return fallback, nil
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	allowed := req.EvidenceURLs()
	resp, err := e.provider.Generate(ctx, GenerateRequest{
		System:      explainSystemPrompt,
		Prompt:      BuildExplainPrompt(req, allowed),
		Model:       e.config.Model,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
	})
	if err != nil {
		return fallback, fmt.Errorf("generate explanation: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return fallback, fmt.Errorf("generate explanation: empty response from %s", e.provider.Name())
	}

	if e.config.StrictEvidence {
		if err := CheckCitations(resp.Text, allowed); err != nil {
			return fallback, err
		}
	}

	generatedBy := resp.Model
	if generatedBy == "" {
		generatedBy = e.provider.Name()
	}

	return model.Explanation{
		Text: resp.Text,
		ExplanationSource: model.ExplanationSource{
			GeneratedBy: generatedBy,
			Model:       resp.Model,
			TokensUsed:  resp.TokensUsed,
		},
	}, nil
}

// CheckCitations verifies every URL in text is in the allowlist
func CheckCitations(text string, allowed []string) error {
	for _, cited := range extractURLs(text) {
		if !slices.Contains(allowed, cited) {
			return fmt.Errorf("%w: cited disallowed URL %s", ErrCitationLeak, cited)
		}
	}
	return nil
}

// BuildExplainPrompt constructs the explanation prompt with the strict URL allowlist
func BuildExplainPrompt(req ExplainRequest, evidenceURLs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Explain why this content received the decision below.

DO NOT:
- Provide medical advice
- Diagnose conditions
- Recommend treatments
- Make medical claims

You MUST ONLY cite URLs from this allowed list:
%s

Decision: %s
Severity: %s
Reason: %s
Rule Flags: %s
Evidence Status: %s

Generate a clear, user-friendly explanation (2-3 sentences) that:
1. Explains the safety concern
2. References the evidence status if relevant
3. Recommends consulting a healthcare professional

Keep it concise and non-technical.`,
		joinURLs(evidenceURLs),
		req.Verdict.Decision,
		req.Verdict.Severity,
		req.Verdict.Reason,
		describeFlags(req.Flags),
		describeEvidence(req.Evidence),
	)

	return b.String()
}

func describeFlags(flags model.RuleFlags) string {
	var set []string
	for _, c := range model.Categories {
		if flags.Has(c) {
			set = append(set, string(c))
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ", ")
}

func describeEvidence(evidence model.EvidenceSummary) string {
	if len(evidence) == 0 {
		return "no claims checked"
	}
	statuses := make([]string, 0, len(evidence))
	for _, v := range evidence {
		statuses = append(statuses, string(v.Status))
	}
	return strings.Join(statuses, ", ")
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No evidence URLs available)"
	}
	var b strings.Builder
	for i, url := range urls {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", url)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"']+`)

// extractURLs returns the distinct URLs cited in text
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}

// Package rules flags hazardous medical content with a fixed pattern table.
package rules

import (
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/safeguard/internal/model"
)

// sentenceBoundary splits on terminal punctuation followed by whitespace, so
// decimals like "2.5 g" stay in one sentence.
var sentenceBoundary = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

type compiledPattern struct {
	source string
	re     *regexp.Regexp
}

type compiledRule struct {
	category   model.Category
	weight     int
	patterns   []compiledPattern
	contextual []compiledPattern
	context    []compiledPattern
}

// Filter evaluates text against the compiled pattern table.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	rules    []compiledRule
	maxScore int
}

// NewFilter compiles the pattern table once. A nil config uses the defaults.
func NewFilter(cfg *model.RulesConfig) (*Filter, error) {
	if cfg == nil {
		def := model.DefaultRules()
		cfg = &def
	}

	f := &Filter{
		rules:    make([]compiledRule, 0, len(cfg.Categories)),
		maxScore: cfg.MaxScore,
	}
	if f.maxScore <= 0 || f.maxScore > 100 {
		f.maxScore = 100
	}

	for _, rule := range cfg.Categories {
		if !knownCategory(rule.Category) {
			return nil, fmt.Errorf("unknown rule category %q", rule.Category)
		}
		if rule.Weight < 0 {
			return nil, fmt.Errorf("rule %s: negative weight %d", rule.Category, rule.Weight)
		}
		if len(rule.ContextualPatterns) > 0 && len(rule.ContextPatterns) == 0 {
			return nil, fmt.Errorf("rule %s: contextual patterns need at least one context pattern", rule.Category)
		}

		cr := compiledRule{category: rule.Category, weight: rule.Weight}
		var err error
		if cr.patterns, err = compileAll(rule.Category, "pattern", rule.Patterns); err != nil {
			return nil, err
		}
		if cr.contextual, err = compileAll(rule.Category, "contextual pattern", rule.ContextualPatterns); err != nil {
			return nil, err
		}
		if cr.context, err = compileAll(rule.Category, "context pattern", rule.ContextPatterns); err != nil {
			return nil, err
		}
		f.rules = append(f.rules, cr)
	}

	return f, nil
}

func compileAll(category model.Category, kind string, patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for i, p := range patterns {
		// Patterns go through the same normalisation as the input text
		re, err := regexp.Compile("(?i)" + norm.NFKC.String(p))
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid %s at index %d: %w", category, kind, i, err)
		}
		out = append(out, compiledPattern{source: p, re: re})
	}
	return out, nil
}

func knownCategory(c model.Category) bool {
	for _, known := range model.Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Evaluate runs every rule against text. It is pure and does no I/O.
func (f *Filter) Evaluate(text string) model.RuleFlags {
	var flags model.RuleFlags
	normalized := norm.NFKC.String(text)

	var sentences []string
	subtotal := 0

	for _, rule := range f.rules {
		matched := false

		for _, p := range rule.patterns {
			if m := p.re.FindString(normalized); m != "" {
				flags.Matches = append(flags.Matches, model.RuleMatch{Category: rule.category, Pattern: p.source, Text: m})
				matched = true
			}
		}

		if len(rule.contextual) > 0 {
			if sentences == nil {
				sentences = splitSentences(normalized)
			}
			for _, p := range rule.contextual {
				if m, ok := matchInContext(p, rule.context, sentences); ok {
					flags.Matches = append(flags.Matches, model.RuleMatch{Category: rule.category, Pattern: p.source, Text: m})
					matched = true
				}
			}
		}

		if matched {
			flags.Set(rule.category)
			subtotal += rule.weight
		}
	}

	if subtotal > f.maxScore {
		subtotal = f.maxScore
	}
	flags.RiskSubtotal = subtotal
	return flags
}

// matchInContext returns the first match of p in a sentence that also
// matches one of the context patterns.
func matchInContext(p compiledPattern, context []compiledPattern, sentences []string) (string, bool) {
	for _, s := range sentences {
		m := p.re.FindString(s)
		if m == "" {
			continue
		}
		for _, c := range context {
			if c.re.MatchString(s) {
				return m, true
			}
		}
	}
	return "", false
}

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

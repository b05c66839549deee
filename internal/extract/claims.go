// Package extract pulls checkable medical claims out of free text or HTML.
package extract

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/safeguard/internal/model"
)

// Extractor turns content into claims
type Extractor interface {
	Extract(ctx context.Context, content string) ([]model.Claim, error)
}

// HeuristicExtractor extracts claims by sentence splitting and keyword matching
type HeuristicExtractor struct {
	keywords  *regexp.Regexp
	minLength int
	maxLength int
	maxClaims int
}

// NewHeuristicExtractor creates a heuristic extractor. A nil config uses the defaults.
func NewHeuristicExtractor(cfg *model.EvidenceConfig) *HeuristicExtractor {
	if cfg == nil {
		cfg = &model.DefaultConfig().Evidence
	}

	quoted := make([]string, 0, len(cfg.ClaimKeywords))
	for _, kw := range cfg.ClaimKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(kw)))
		}
	}

	e := &HeuristicExtractor{
		minLength: cfg.MinClaimLength,
		maxLength: cfg.MaxClaimLength,
		maxClaims: cfg.MaxClaims,
	}
	if len(quoted) > 0 {
		e.keywords = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	if e.maxLength <= 0 {
		e.maxLength = 500
	}
	if e.maxClaims <= 0 {
		e.maxClaims = 3
	}
	return e
}

// Extract extracts claims from plain text or HTML content
func (e *HeuristicExtractor) Extract(ctx context.Context, content string) ([]model.Claim, error) {
	text, err := VisibleText(content)
	if err != nil {
		return nil, err
	}

	if e.keywords == nil {
		return nil, nil
	}

	sentences := splitSentences(text, e.minLength, e.maxLength)

	var claims []model.Claim
	for i, sentence := range sentences {
		if kw := e.keywords.FindString(sentence); kw != "" {
			claims = append(claims, model.Claim{
				Text:      strings.TrimSpace(sentence),
				Heuristic: "keyword:" + strings.ToLower(kw),
				Sentence:  i,
			})
		}
	}

	return finalizeClaims(claims, e.maxClaims), nil
}

// finalizeClaims dedupes, bounds and numbers claims
func finalizeClaims(claims []model.Claim, max int) []model.Claim {
	claims = dedupeClaims(claims)
	if len(claims) > max {
		claims = claims[:max]
	}
	for i := range claims {
		claims[i].ID = model.ClaimID(i)
	}
	return claims
}

// VisibleText returns the readable text of HTML content, or content
// unchanged when it is not markup.
func VisibleText(content string) (string, error) {
	if !looksLikeHTML(content) {
		return content, nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(extractVisibleText(doc)), nil
}

var htmlTag = regexp.MustCompile(`(?is)<\s*(?:html|body|p|div|span|article|section|h[1-6]|li|br|script|style)\b`)

func looksLikeHTML(content string) bool {
	return htmlTag.MatchString(content)
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip script, style, noscript tags
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// splitSentences splits text into sentences within [minLen, maxLen] bytes
func splitSentences(text string, minLen, maxLen int) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	keep := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= minLen && len(sentence) <= maxLen && sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Only split before whitespace, so "2.5" and "e.g.," stay intact
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				keep()
			}
		}
	}

	if current.Len() > 0 {
		keep()
	}

	return sentences
}

// dedupeClaims removes duplicate claims (case-insensitive)
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	var unique []model.Claim

	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

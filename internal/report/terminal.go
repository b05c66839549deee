package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/safeguard/internal/model"
)

// Terminal renders human-readable summaries
type Terminal struct {
	w io.Writer

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	neutral lipgloss.Style
}

// NewTerminal creates a renderer writing to w
func NewTerminal(w io.Writer, noColor bool) *Terminal {
	r := lipgloss.NewRenderer(w)
	t := &Terminal{
		w:       w,
		title:   r.NewStyle(),
		label:   r.NewStyle(),
		muted:   r.NewStyle(),
		box:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		good:    r.NewStyle(),
		warn:    r.NewStyle(),
		bad:     r.NewStyle(),
		neutral: r.NewStyle(),
	}
	if noColor {
		return t
	}

	t.title = t.title.Bold(true).Foreground(lipgloss.Color("12"))
	t.label = t.label.Bold(true)
	t.muted = t.muted.Foreground(lipgloss.Color("8"))
	t.box = t.box.BorderForeground(lipgloss.Color("8"))
	t.good = t.good.Bold(true).Foreground(lipgloss.Color("10"))
	t.warn = t.warn.Bold(true).Foreground(lipgloss.Color("11"))
	t.bad = t.bad.Bold(true).Foreground(lipgloss.Color("9"))
	t.neutral = t.neutral.Bold(true).Foreground(lipgloss.Color("14"))
	return t
}

func (t *Terminal) decisionStyle(d model.Decision) lipgloss.Style {
	switch d {
	case model.DecisionAllow:
		return t.good
	case model.DecisionAllowWithWarning, model.DecisionAskMoreInfo:
		return t.warn
	case model.DecisionRefuse:
		return t.bad
	default:
		return t.neutral
	}
}

func (t *Terminal) statusStyle(s model.EvidenceStatus) lipgloss.Style {
	switch s {
	case model.StatusStrongSupport:
		return t.good
	case model.StatusWeakSupport:
		return t.warn
	case model.StatusContradicted:
		return t.bad
	default:
		return t.muted
	}
}

// Evaluation writes a summary of one result
func (t *Terminal) Evaluation(res *model.EvaluationResult) error {
	_, err := fmt.Fprintln(t.w, t.RenderEvaluation(res))
	return err
}

// RenderEvaluation returns the summary of one result
func (t *Terminal) RenderEvaluation(res *model.EvaluationResult) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s  %s",
		t.title.Render("SAFEGUARD"),
		t.decisionStyle(res.Decision).Render(string(res.Decision)),
		t.label.Render(fmt.Sprintf("%s · risk %d/100", res.Severity, res.RiskScore)),
	)
	b.WriteString(header + "\n\n")

	fmt.Fprintf(&b, "%s %s\n", t.label.Render("Reason:"), res.Details.DecisionReason)
	if flags := flagNames(res.Details.RuleFlags); len(flags) > 0 {
		fmt.Fprintf(&b, "%s %s\n", t.label.Render("Flags:"), strings.Join(flags, ", "))
	}
	if len(res.Details.MissingContext) > 0 {
		fmt.Fprintf(&b, "%s %s\n", t.label.Render("Missing context:"), strings.Join(res.Details.MissingContext, ", "))
	}

	if len(res.Details.EvidenceSummary) > 0 {
		b.WriteString("\n" + t.label.Render("Claims") + "\n")
		for _, v := range res.Details.EvidenceSummary {
			fmt.Fprintf(&b, "  %s %s\n", t.statusStyle(v.Status).Render("["+string(v.Status)+"]"), v.Claim)
			meta := fmt.Sprintf("confidence %s · %d trusted of %d results", v.ConfidenceLevel, v.TrustedCount, v.TotalResults)
			if v.Provider != "" {
				meta += " · via " + v.Provider
			}
			if v.FallbackApplied {
				meta += " · search unavailable"
			}
			b.WriteString("    " + t.muted.Render(meta) + "\n")
			for _, s := range v.Sources() {
				fmt.Fprintf(&b, "    %s %s\n", t.muted.Render(s.Tier.String()+":"), s.URL)
			}
		}
	}

	b.WriteString("\n" + t.box.Render(res.Explanation) + "\n")
	for _, w := range res.Warnings {
		b.WriteString(t.warn.Render("! ") + w + "\n")
	}

	footer := fmt.Sprintf("request %s · %s · explanation by %s",
		res.RequestID, res.Timestamp.Format("2006-01-02 15:04:05Z07:00"), res.Details.ExplanationSource.GeneratedBy)
	b.WriteString(t.muted.Render(footer))

	return b.String()
}

// Chat writes the gated answer followed by the evaluation summary
func (t *Terminal) Chat(res *model.ChatResult) error {
	var b strings.Builder
	if res.Safe {
		b.WriteString(t.good.Render("Answer") + "\n")
		b.WriteString(res.AIResponse + "\n\n")
	} else {
		b.WriteString(t.bad.Render("Answer withheld") + "\n\n")
	}
	b.WriteString(t.RenderEvaluation(&res.EvaluationResult))
	_, err := fmt.Fprintln(t.w, b.String())
	return err
}

// BatchSummary writes totals for a batch run
func (t *Terminal) BatchSummary(counts map[model.Decision]int, failures int, outputDir string) error {
	var b strings.Builder
	total := failures
	for _, n := range counts {
		total += n
	}

	b.WriteString(t.title.Render("Batch complete") + "\n\n")
	fmt.Fprintf(&b, "  %-20s %d\n", "Total:", total)
	for _, d := range []model.Decision{
		model.DecisionAllow, model.DecisionAllowWithWarning, model.DecisionAskMoreInfo,
		model.DecisionEscalate, model.DecisionRefuse,
	} {
		if n := counts[d]; n > 0 {
			fmt.Fprintf(&b, "  %-20s %s\n", string(d)+":", t.decisionStyle(d).Render(fmt.Sprint(n)))
		}
	}
	if failures > 0 {
		fmt.Fprintf(&b, "  %-20s %s\n", "Failures:", t.bad.Render(fmt.Sprint(failures)))
	}
	if outputDir != "" {
		fmt.Fprintf(&b, "  %-20s %s\n", "Output:", outputDir)
	}

	_, err := fmt.Fprint(t.w, b.String())
	return err
}

func flagNames(f model.RuleFlags) []string {
	var out []string
	for _, c := range model.Categories {
		if f.Has(c) {
			out = append(out, string(c))
		}
	}
	return out
}

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/safeguard/internal/model"
)

func sampleResult() *model.EvaluationResult {
	flags := model.RuleFlags{}
	flags.Set(model.CategoryDosage)
	return &model.EvaluationResult{
		RequestID:   "req-42",
		Decision:    model.DecisionRefuse,
		Severity:    model.SeverityHigh,
		RiskScore:   80,
		Explanation: "This content contains specific dosage instructions.",
		Warnings:    []string{"Evidence search was unavailable"},
		Details: model.Details{
			ExplanationSource: model.ExplanationSource{GeneratedBy: "fallback"},
			RuleFlags:         flags,
			DecisionReason:    "Content contains prohibited medical instructions: dosage",
			DecisionRule:      "hard_block",
			EvidenceSummary: model.EvidenceSummary{{
				ClaimID:         "claim_1",
				Claim:           "Paracetamol reduces fever",
				Status:          model.StatusStrongSupport,
				ConfidenceLevel: model.ConfidenceHigh,
				Tier1Sources:    []model.Source{{URL: "https://www.who.int/fever", Tier: model.Tier1}},
				Tier2Sources:    []model.Source{},
				TrustedCount:    1,
				TotalResults:    5,
				Provider:        "google",
			}},
		},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteJSONFile(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "REFUSE", decoded["decision"])
	assert.Equal(t, "req-42", decoded["request_id"])
	assert.Equal(t, "This content contains specific dosage instructions.", decoded["explanation"])
	assert.Equal(t, []any{"Evidence search was unavailable"}, decoded["warnings"])
	assert.Contains(t, string(data), "\n  \"decision\"", "output should be indented")
}

func TestWriteJSON_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"q": "a<b & c>d"}))
	assert.Contains(t, buf.String(), "a<b & c>d")
}

func TestFilename(t *testing.T) {
	tests := []struct {
		index int
		label string
		want  string
	}{
		{0, "Take 500mg paracetamol!", "0001-take-500mg-paracetamol.json"},
		{9, "", "0010.json"},
		{2, "///", "0003.json"},
		{3, strings.Repeat("a", 80), "0004-" + strings.Repeat("a", 48) + ".json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Filename(tt.index, tt.label))
	}
}

func TestTerminal_Evaluation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf, true).Evaluation(sampleResult()))

	out := buf.String()
	for _, want := range []string{
		"SAFEGUARD", "REFUSE", "risk 80/100",
		"Content contains prohibited medical instructions: dosage",
		"Flags: dosage",
		"[STRONG_SUPPORT] Paracetamol reduces fever",
		"via google",
		"government_who: https://www.who.int/fever",
		"This content contains specific dosage instructions.",
		"Evidence search was unavailable",
		"request req-42",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTerminal_Chat(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	res := &model.ChatResult{EvaluationResult: *sampleResult(), UserMessage: "q"}
	require.NoError(t, term.Chat(res))
	assert.Contains(t, buf.String(), "Answer withheld")

	buf.Reset()
	res.Safe = true
	res.AIResponse = "Rest and fluids help."
	require.NoError(t, term.Chat(res))
	assert.Contains(t, buf.String(), "Rest and fluids help.")
	assert.NotContains(t, buf.String(), "withheld")
}

func TestTerminal_BatchSummary(t *testing.T) {
	var buf bytes.Buffer
	counts := map[model.Decision]int{model.DecisionAllow: 3, model.DecisionRefuse: 2}
	require.NoError(t, NewTerminal(&buf, true).BatchSummary(counts, 1, "out"))

	out := buf.String()
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "6")
	assert.Contains(t, out, "ALLOW:")
	assert.Contains(t, out, "REFUSE:")
	assert.Contains(t, out, "Failures:")
	assert.NotContains(t, out, "ESCALATE")
}

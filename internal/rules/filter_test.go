package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/safeguard/internal/model"
)

func newDefaultFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(nil)
	require.NoError(t, err)
	return f
}

func TestEvaluate_Categories(t *testing.T) {
	f := newDefaultFilter(t)

	tests := []struct {
		name     string
		text     string
		want     []model.Category
		notWant  []model.Category
		hardStop bool
	}{
		{
			name:     "dosage instruction",
			text:     "Take 500mg paracetamol for fever",
			want:     []model.Category{model.CategoryDosage, model.CategoryPrescription, model.CategoryMedication},
			hardStop: true,
		},
		{
			name:     "full width digits and units",
			text:     "Take ５００ｍｇ twice daily",
			want:     []model.Category{model.CategoryDosage},
			hardStop: true,
		},
		{
			name:    "bare grams without medication word",
			text:    "Mix 5 g of salt into the soup.",
			notWant: []model.Category{model.CategoryDosage},
		},
		{
			name:     "bare grams next to medication word",
			text:     "Take 2.5 g of the powdered medicine every morning.",
			want:     []model.Category{model.CategoryDosage},
			hardStop: true,
		},
		{
			name:    "medication word in another sentence",
			text:    "Add 5 g of sugar. Ask about medicine later.",
			notWant: []model.Category{model.CategoryDosage},
		},
		{
			name:     "definitive diagnosis",
			text:     "Based on that, you definitely have diabetes.",
			want:     []model.Category{model.CategoryDiagnosis},
			hardStop: true,
		},
		{
			name:    "treatment suggestion",
			text:    "You could try this remedy at home.",
			want:    []model.Category{model.CategoryTreatment},
			notWant: []model.Category{model.CategoryDosage, model.CategoryPrescription},
		},
		{
			name:     "prescription instruction",
			text:     "Stop your warfarin before the trip.",
			want:     []model.Category{model.CategoryPrescription, model.CategoryMedication},
			hardStop: true,
		},
		{
			name: "emergency vocabulary",
			text: "If you notice chest pain, call 911.",
			want: []model.Category{model.CategoryEmergency},
		},
		{
			name: "general health claim",
			text: "Regular exercise is good for heart health.",
			want: []model.Category{model.CategoryMedicalClaim},
		},
		{
			name:    "nutrition question",
			text:    "Does egg contain vitamin B12?",
			notWant: model.Categories,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := f.Evaluate(tt.text)
			for _, c := range tt.want {
				assert.True(t, flags.Has(c), "expected %s to be flagged", c)
			}
			for _, c := range tt.notWant {
				assert.False(t, flags.Has(c), "expected %s not to be flagged", c)
			}
			assert.Equal(t, tt.hardStop, flags.HardBlock())
		})
	}
}

func TestEvaluate_SubtotalSumsWeights(t *testing.T) {
	f := newDefaultFilter(t)

	flags := f.Evaluate("Take 500mg paracetamol for fever")

	// dosage 40 + prescription 40 + medication 10
	assert.Equal(t, 90, flags.RiskSubtotal)
}

func TestEvaluate_SubtotalCapped(t *testing.T) {
	f := newDefaultFilter(t)

	text := "You have diabetes. Take 500mg insulin and use this medicine for the chest pain your doctor noticed."
	flags := f.Evaluate(text)

	assert.True(t, flags.ContainsDosage)
	assert.True(t, flags.ContainsDiagnosis)
	assert.True(t, flags.ContainsTreatment)
	assert.True(t, flags.ContainsEmergency)
	assert.Equal(t, 100, flags.RiskSubtotal)
	require.NoError(t, flags.Validate())
}

func TestEvaluate_NoFlags(t *testing.T) {
	f := newDefaultFilter(t)

	flags := f.Evaluate("The museum opens at nine on weekdays.")

	assert.False(t, flags.Any())
	assert.Zero(t, flags.RiskSubtotal)
	assert.Empty(t, flags.Matches)
}

func TestEvaluate_RecordsMatches(t *testing.T) {
	f := newDefaultFilter(t)

	flags := f.Evaluate("Take 500mg paracetamol for fever")

	var dosage []model.RuleMatch
	for _, m := range flags.Matches {
		if m.Category == model.CategoryDosage {
			dosage = append(dosage, m)
		}
	}
	require.Len(t, dosage, 1)
	assert.Equal(t, "500mg", dosage[0].Text)
	assert.NotEmpty(t, dosage[0].Pattern)
}

func TestEvaluate_CaseInsensitive(t *testing.T) {
	f := newDefaultFilter(t)

	assert.True(t, f.Evaluate("TAKE 10 MG NOW").ContainsDosage)
	assert.True(t, f.Evaluate("CALL 911 immediately").ContainsEmergency)
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	cfg := &model.RulesConfig{Categories: []model.CategoryRule{
		{Category: model.CategoryDosage, Weight: 40, Patterns: []string{`(\d+`}},
	}}

	_, err := NewFilter(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dosage")
}

func TestNewFilter_UnknownCategory(t *testing.T) {
	cfg := &model.RulesConfig{Categories: []model.CategoryRule{
		{Category: "astrology", Weight: 5, Patterns: []string{`stars`}},
	}}

	_, err := NewFilter(cfg)
	require.Error(t, err)
}

func TestNewFilter_ContextualWithoutContext(t *testing.T) {
	cfg := &model.RulesConfig{Categories: []model.CategoryRule{
		{Category: model.CategoryDosage, Weight: 40, ContextualPatterns: []string{`\d+ g`}},
	}}

	_, err := NewFilter(cfg)
	require.Error(t, err)
}

func TestNewFilter_CustomWeights(t *testing.T) {
	cfg := &model.RulesConfig{
		MaxScore: 100,
		Categories: []model.CategoryRule{
			{Category: model.CategoryEmergency, Weight: 70, Patterns: []string{`\bseizure\b`}},
		},
	}
	f, err := NewFilter(cfg)
	require.NoError(t, err)

	flags := f.Evaluate("She had a seizure.")
	assert.True(t, flags.ContainsEmergency)
	assert.Equal(t, 70, flags.RiskSubtotal)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Take 2.5 g daily. Rest!\nDrink water")
	assert.Equal(t, []string{"Take 2.5 g daily", "Rest", "Drink water"}, got)
	assert.Empty(t, splitSentences(strings.Repeat(".", 3)))
}

package model

import "fmt"

// Category names a family of hazard patterns
type Category string

const (
	CategoryDosage       Category = "dosage"
	CategoryDiagnosis    Category = "diagnosis"
	CategoryTreatment    Category = "treatment"
	CategoryPrescription Category = "prescription"
	CategoryEmergency    Category = "emergency"
	CategoryMedication   Category = "medication"
	CategoryMedicalClaim Category = "medical_claim"
)

// Categories lists every category the rule filter knows, in report order
var Categories = []Category{
	CategoryDosage,
	CategoryDiagnosis,
	CategoryTreatment,
	CategoryPrescription,
	CategoryEmergency,
	CategoryMedication,
	CategoryMedicalClaim,
}

// IsHardBlock reports whether a match in this category forces refusal
func (c Category) IsHardBlock() bool {
	switch c {
	case CategoryDosage, CategoryPrescription, CategoryDiagnosis:
		return true
	default:
		return false
	}
}

// RuleMatch records which pattern fired and on what text
type RuleMatch struct {
	Category Category `json:"category"`
	Pattern  string   `json:"pattern"`
	Text     string   `json:"text"`
}

// RuleFlags is the fixed-schema output of the rule filter
type RuleFlags struct {
	ContainsDosage       bool `json:"contains_dosage"`
	ContainsDiagnosis    bool `json:"contains_diagnosis"`
	ContainsTreatment    bool `json:"contains_treatment"`
	ContainsPrescription bool `json:"contains_prescription"`
	ContainsEmergency    bool `json:"contains_emergency"`
	ContainsMedication   bool `json:"contains_medication"`
	ContainsMedicalClaim bool `json:"contains_medical_claim"`

	RiskSubtotal int         `json:"risk_subtotal"`
	Matches      []RuleMatch `json:"matches,omitempty"`
}

// Set marks a category as matched. Flags are never cleared.
func (f *RuleFlags) Set(c Category) {
	switch c {
	case CategoryDosage:
		f.ContainsDosage = true
	case CategoryDiagnosis:
		f.ContainsDiagnosis = true
	case CategoryTreatment:
		f.ContainsTreatment = true
	case CategoryPrescription:
		f.ContainsPrescription = true
	case CategoryEmergency:
		f.ContainsEmergency = true
	case CategoryMedication:
		f.ContainsMedication = true
	case CategoryMedicalClaim:
		f.ContainsMedicalClaim = true
	}
}

// Has reports whether a category is set
func (f RuleFlags) Has(c Category) bool {
	switch c {
	case CategoryDosage:
		return f.ContainsDosage
	case CategoryDiagnosis:
		return f.ContainsDiagnosis
	case CategoryTreatment:
		return f.ContainsTreatment
	case CategoryPrescription:
		return f.ContainsPrescription
	case CategoryEmergency:
		return f.ContainsEmergency
	case CategoryMedication:
		return f.ContainsMedication
	case CategoryMedicalClaim:
		return f.ContainsMedicalClaim
	default:
		return false
	}
}

// HardBlock reports whether any hard-block category is set
func (f RuleFlags) HardBlock() bool {
	return f.ContainsDosage || f.ContainsPrescription || f.ContainsDiagnosis
}

// HardBlockCategories returns the hard-block categories that are set
func (f RuleFlags) HardBlockCategories() []Category {
	var out []Category
	for _, c := range Categories {
		if c.IsHardBlock() && f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// ContextDependent reports content whose safety depends on who is asking:
// treatment or medication talk that is not itself a hard block.
func (f RuleFlags) ContextDependent() bool {
	return !f.HardBlock() && (f.ContainsTreatment || f.ContainsMedication)
}

// Any reports whether any flag is set
func (f RuleFlags) Any() bool {
	for _, c := range Categories {
		if f.Has(c) {
			return true
		}
	}
	return false
}

// Validate checks the invariants the decision engine relies on
func (f RuleFlags) Validate() error {
	if f.RiskSubtotal < 0 || f.RiskSubtotal > 100 {
		return fmt.Errorf("risk subtotal %d outside 0-100", f.RiskSubtotal)
	}
	return nil
}

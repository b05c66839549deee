package decision

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/safeguard/internal/model"
)

var statuses = []model.EvidenceStatus{
	model.StatusStrongSupport,
	model.StatusWeakSupport,
	model.StatusNoEvidence,
	model.StatusContradicted,
}

// genInput builds inputs from a category bitmask, status indexes and a
// context switch.
func genInput() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 1<<len(model.Categories)-1),
		gen.SliceOfN(4, gen.IntRange(-1, len(statuses)-1)),
		gen.Bool(),
	).Map(func(vals []interface{}) Input {
		mask := vals[0].(int)
		idx := vals[1].([]int)
		withContext := vals[2].(bool)

		var in Input
		weights := map[model.Category]int{
			model.CategoryDosage: 40, model.CategoryDiagnosis: 35, model.CategoryTreatment: 20,
			model.CategoryPrescription: 40, model.CategoryEmergency: 30, model.CategoryMedication: 10,
			model.CategoryMedicalClaim: 5,
		}
		for i, c := range model.Categories {
			if mask&(1<<i) != 0 {
				in.Flags.Set(c)
				in.Flags.RiskSubtotal += weights[c]
			}
		}
		in.Flags.RiskSubtotal = min(100, in.Flags.RiskSubtotal)

		var st []model.EvidenceStatus
		for _, i := range idx {
			if i >= 0 {
				st = append(st, statuses[i])
			}
		}
		in.Evidence = evidence(st...)
		if withContext {
			in.Context = fullContext
		}
		return in
	})
}

func TestDecide_Properties(t *testing.T) {
	engine := NewEngine(nil)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("deterministic", prop.ForAll(
		func(in Input) bool {
			a, errA := engine.Decide(in)
			b, errB := engine.Decide(in)
			return errA == nil && errB == nil && a == b
		},
		genInput(),
	))

	properties.Property("hard block always refuses with high severity", prop.ForAll(
		func(in Input) bool {
			v, err := engine.Decide(in)
			if err != nil {
				return false
			}
			if in.Flags.HardBlock() {
				return v.Decision == model.DecisionRefuse && v.Severity == model.SeverityHigh
			}
			return true
		},
		genInput(),
	))

	properties.Property("score in range and severity consistent", prop.ForAll(
		func(in Input) bool {
			v, err := engine.Decide(in)
			if err != nil || v.RiskScore < 0 || v.RiskScore > 100 {
				return false
			}
			switch v.Rule {
			case RuleHardBlock, RuleContradicted, RuleEmergency, RuleUnsupported:
				return v.Severity == model.SeverityHigh && v.RiskScore >= 30
			case RuleMissingContext:
				return v.Severity == model.SeverityMedium && v.RiskScore >= 25 && v.RiskScore <= 59
			case RuleAllow:
				return v.Decision == model.DecisionAllow && v.Severity == model.SeverityLow
			}
			return true
		},
		genInput(),
	))

	properties.Property("settled content allows at the rule subtotal", prop.ForAll(
		func(in Input) bool {
			v, err := engine.Decide(in)
			if err != nil {
				return false
			}
			askForContext := in.Flags.ContextDependent() && len(engine.MissingContext(in.Context)) > 0
			emergency := in.Flags.ContainsEmergency && len(in.Evidence) == 0
			if in.Flags.HardBlock() || askForContext || emergency || !in.Evidence.All(model.StatusStrongSupport) {
				return true
			}
			return v.Decision == model.DecisionAllow && v.Severity == model.SeverityLow && v.RiskScore == in.Flags.RiskSubtotal
		},
		genInput(),
	))

	properties.Property("missing context is asked before unsupported claims are refused", prop.ForAll(
		func(in Input) bool {
			v, err := engine.Decide(in)
			if err != nil {
				return false
			}
			if in.Flags.HardBlock() || in.Flags.ContainsEmergency || !in.Flags.ContextDependent() || in.Context != (model.UserContext{}) {
				return true
			}
			if in.Evidence.Any(model.StatusContradicted) || in.Evidence.Count(model.StatusStrongSupport) > 0 {
				return true
			}
			return v.Decision == model.DecisionAskMoreInfo
		},
		genInput(),
	))

	properties.Property("no flags and all strong support allows", prop.ForAll(
		func(n int) bool {
			st := make([]model.EvidenceStatus, n)
			for i := range st {
				st[i] = model.StatusStrongSupport
			}
			v, err := engine.Decide(Input{Evidence: evidence(st...)})
			return err == nil && v.Decision == model.DecisionAllow
		},
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vigil/internal/screening"
)

func enrichedWith(flags screening.DerivedFlags, destination string) screening.EnrichedContext {
	return screening.EnrichedContext{
		Transaction: screening.Transaction{
			ID:                 "TX1001",
			CustomerID:         "CUST1001",
			DestinationCountry: destination,
		},
		Flags: flags,
	}
}

func TestEvaluate_CleanContextScoresZero(t *testing.T) {
	e := NewEngine()
	score, factors := e.Evaluate(enrichedWith(screening.DerivedFlags{}, "DE"))
	assert.Equal(t, 0.0, score)
	assert.Empty(t, factors)
}

func TestEvaluate_SanctionsStacksOnHighRisk(t *testing.T) {
	e := NewEngine()

	// IR is in both the high-risk set and the sanctions subset: the two
	// weights are additive, not exclusive.
	score, factors := e.Evaluate(enrichedWith(screening.DerivedFlags{HighRiskCountry: true}, "IR"))
	assert.Equal(t, 70.0, score)
	assert.ElementsMatch(t, []screening.RiskFactor{
		screening.FactorHighRiskJurisdiction,
		screening.FactorSanctionsConcern,
	}, factors)

	// NG is high-risk but not sanctioned.
	score, factors = e.Evaluate(enrichedWith(screening.DerivedFlags{HighRiskCountry: true}, "NG"))
	assert.Equal(t, 30.0, score)
	assert.Equal(t, []screening.RiskFactor{screening.FactorHighRiskJurisdiction}, factors)
}

func TestEvaluate_PerRuleWeights(t *testing.T) {
	e := NewEngine()

	cases := []struct {
		name   string
		flags  screening.DerivedFlags
		want   float64
		factor screening.RiskFactor
	}{
		{"cross border", screening.DerivedFlags{CrossBorder: true}, 10, screening.FactorCrossBorder},
		{"high amount", screening.DerivedFlags{HighAmount: true}, 20, screening.FactorUnusualAmount},
		{"amount vs average", screening.DerivedFlags{AmountVsAverage: 6}, 25, screening.FactorUnusualAmount},
		{"new account", screening.DerivedFlags{NewAccount: true}, 15, screening.FactorNewAccount},
		{"low device trust", screening.DerivedFlags{LowDeviceTrust: true}, 20, screening.FactorLowDeviceTrust},
		{"past fraud", screening.DerivedFlags{PastFraud: true}, 30, screening.FactorPreviousFraud},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, factors := e.Evaluate(enrichedWith(tc.flags, "DE"))
			assert.Equal(t, tc.want, score)
			assert.Equal(t, []screening.RiskFactor{tc.factor}, factors)
		})
	}
}

func TestEvaluate_AmountRulesCollapseToOneFactor(t *testing.T) {
	e := NewEngine()
	score, factors := e.Evaluate(enrichedWith(screening.DerivedFlags{
		HighAmount:      true,
		AmountVsAverage: 7.5,
	}, "DE"))
	assert.Equal(t, 45.0, score, "both amount rules contribute weight")
	assert.Equal(t, []screening.RiskFactor{screening.FactorUnusualAmount}, factors, "but tag one factor")
}

func TestEvaluate_RatioAtThresholdDoesNotFire(t *testing.T) {
	e := NewEngine()
	score, _ := e.Evaluate(enrichedWith(screening.DerivedFlags{AmountVsAverage: 5.0}, "DE"))
	assert.Equal(t, 0.0, score)
}

// Scenario: 15000 USD to IR from a 15-day-old account with 0.3 device
// trust and fraud history. Everything fires and the clamp caps the sum.
func TestEvaluate_WorstCaseClampsAt100(t *testing.T) {
	e := NewEngine()
	score, factors := e.Evaluate(enrichedWith(screening.DerivedFlags{
		HighAmount:      true,
		HighRiskCountry: true,
		NewAccount:      true,
		LowDeviceTrust:  true,
		PastFraud:       true,
		CrossBorder:     true,
	}, "IR"))

	assert.Equal(t, 100.0, score)
	assert.GreaterOrEqual(t, score, 90.0)
	assert.Contains(t, factors, screening.FactorSanctionsConcern)
	assert.Contains(t, factors, screening.FactorHighRiskJurisdiction)
	assert.Contains(t, factors, screening.FactorPreviousFraud)
}

func TestEvaluate_CustomWeightsAndSanctions(t *testing.T) {
	e := NewEngine(
		WithWeights(Weights{RulePastFraud: 55}),
		WithSanctionsCountries([]string{"ZZ"}),
	)

	score, _ := e.Evaluate(enrichedWith(screening.DerivedFlags{PastFraud: true}, "IR"))
	assert.Equal(t, 55.0, score, "IR is not sanctioned under the custom subset")

	score, factors := e.Evaluate(enrichedWith(screening.DerivedFlags{}, "ZZ"))
	assert.Equal(t, 0.0, score, "custom weight map has no sanctions weight")
	assert.Equal(t, []screening.RiskFactor{screening.FactorSanctionsConcern}, factors)
}

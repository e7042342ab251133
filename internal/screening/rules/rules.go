// Package rules implements the deterministic half of risk scoring: a
// weighted rule chain over the enriched context's derived flags. This is
// pure domain logic - no I/O, no side effects.
package rules

import (
	"vigil/internal/screening"
	pstrings "vigil/pkg/platform/strings"
)

// Rule names the individual scoring rules. Weights are configuration
// keyed by rule, so deployments can retune without code changes.
type Rule string

const (
	RuleHighRiskCountry  Rule = "high_risk_country"
	RuleSanctionsCountry Rule = "sanctions_country"
	RuleCrossBorder      Rule = "cross_border"
	RuleHighAmount       Rule = "high_amount"
	RuleAmountVsAverage  Rule = "amount_vs_average"
	RuleNewAccount       Rule = "new_account"
	RuleLowDeviceTrust   Rule = "low_device_trust"
	RulePastFraud        Rule = "past_fraud"
)

// Weights maps each rule to the score it contributes when it fires.
type Weights map[Rule]float64

// DefaultWeights returns the production weight set. Past fraud carries
// the largest single weight; the sanctions weight stacks on top of the
// high-risk country weight rather than replacing it.
func DefaultWeights() Weights {
	return Weights{
		RuleHighRiskCountry:  30,
		RuleSanctionsCountry: 40,
		RuleCrossBorder:      10,
		RuleHighAmount:       20,
		RuleAmountVsAverage:  25,
		RuleNewAccount:       15,
		RuleLowDeviceTrust:   20,
		RulePastFraud:        30,
	}
}

// DefaultSanctionsCountries is the stricter subset of high-risk
// jurisdictions subject to sanctions programs.
func DefaultSanctionsCountries() []string {
	return []string{"IR", "KP", "SY", "RU"}
}

// unusualAmountMultiple is the amount-vs-average ratio above which the
// amount pattern rule fires.
const unusualAmountMultiple = 5.0

// Engine scores enriched contexts against the configured rule weights.
type Engine struct {
	weights   Weights
	sanctions map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights replaces the default rule weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		if len(w) > 0 {
			e.weights = w
		}
	}
}

// WithSanctionsCountries replaces the default sanctions subset. Codes
// are normalized to uppercase; an empty list keeps the default.
func WithSanctionsCountries(codes []string) Option {
	return func(e *Engine) {
		codes = pstrings.DedupeAndTrimUpper(codes)
		if len(codes) == 0 {
			return
		}
		e.sanctions = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			e.sanctions[c] = struct{}{}
		}
	}
}

// NewEngine creates an Engine with default weights and sanctions set.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{weights: DefaultWeights()}
	WithSanctionsCountries(DefaultSanctionsCountries())(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the rule chain over one enriched context and returns the
// base score in [0,100] plus the factors that fired. Every rule weight is
// additive; nothing here consults the narrative.
func (e *Engine) Evaluate(enriched screening.EnrichedContext) (float64, []screening.RiskFactor) {
	score := 0.0
	var factors []screening.RiskFactor

	// Rule 1: destination in the configured high-risk country set.
	if enriched.Flags.HighRiskCountry {
		score += e.weights[RuleHighRiskCountry]
		factors = append(factors, screening.FactorHighRiskJurisdiction)
	}

	// Rule 2: destination in the sanctions subset. Stacks with rule 1.
	if _, listed := e.sanctions[enriched.Transaction.DestinationCountry]; listed {
		score += e.weights[RuleSanctionsCountry]
		factors = append(factors, screening.FactorSanctionsConcern)
	}

	// Rule 3: transaction leaves the customer's home country.
	if enriched.Flags.CrossBorder {
		score += e.weights[RuleCrossBorder]
		factors = append(factors, screening.FactorCrossBorder)
	}

	// Rule 4: amount above the absolute reporting threshold.
	if enriched.Flags.HighAmount {
		score += e.weights[RuleHighAmount]
		factors = append(factors, screening.FactorUnusualAmount)
	}

	// Rule 5: amount far above the customer's historical average.
	if enriched.Flags.AmountVsAverage > unusualAmountMultiple {
		score += e.weights[RuleAmountVsAverage]
		factors = append(factors, screening.FactorUnusualAmount)
	}

	// Rule 6: account younger than the new-account threshold.
	if enriched.Flags.NewAccount {
		score += e.weights[RuleNewAccount]
		factors = append(factors, screening.FactorNewAccount)
	}

	// Rule 7: device trust below threshold.
	if enriched.Flags.LowDeviceTrust {
		score += e.weights[RuleLowDeviceTrust]
		factors = append(factors, screening.FactorLowDeviceTrust)
	}

	// Rule 8: customer has recorded fraud history.
	if enriched.Flags.PastFraud {
		score += e.weights[RulePastFraud]
		factors = append(factors, screening.FactorPreviousFraud)
	}

	return screening.ClampScore(score), screening.NormalizeFactors(factors)
}

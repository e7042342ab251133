// Package narrative parses free-text risk narratives from the reasoning
// service into structured signals: an explicit or computed risk score, a
// risk-level token, an embedded transaction identifier, and a
// negation-aware set of risk factors.
//
// Reasoner narratives routinely state that a concern is absent using the
// same vocabulary that would flag it ("no sanctions concern"), so every
// factor keyword carries a negation phrase list and matches only when no
// negation co-occurs in the text.
//
// Both the risk scoring stage and the compliance audit stage parse
// narratives through this package, and must share one Parser so their
// factor extraction can never diverge for the same text.
package narrative

import (
	"regexp"
	"strconv"
	"strings"

	"vigil/internal/screening"
)

var (
	scoreRe = regexp.MustCompile(`(?i)risk\s*score[:\s]*(\d+(?:\.\d+)?)`)
	levelRe = regexp.MustCompile(`(?i)risk\s*level[:\s]*(\w+)`)
	txRe    = regexp.MustCompile(`(?i:transaction(?:\s*id)?)[:\s]*([A-Z0-9]+)`)
)

// Analysis is the structured reading of one narrative text.
type Analysis struct {
	// Score is the explicit "risk score: N" value when present, otherwise
	// a heuristic score computed from keyword presence. Always in [10,100]
	// for computed scores; explicit scores are reported as written.
	Score float64

	// ScoreExplicit distinguishes a score the narrative stated from one
	// this package computed. Only explicit scores are authoritative for
	// reconciliation.
	ScoreExplicit bool

	// LevelToken is the uppercased token following "risk level:", empty
	// when the narrative names none. Informational only; canonical levels
	// derive from the score.
	LevelToken string

	// TransactionID is an identifier embedded in the text, if any.
	TransactionID string

	// Factors are the non-negated risk factors the narrative asserts.
	Factors []screening.RiskFactor
}

// FactorRule ties one risk factor to the phrases that assert it and the
// phrases that negate it. A rule matches when any positive phrase occurs
// and no negation phrase occurs anywhere in the text.
type FactorRule struct {
	Factor    screening.RiskFactor
	Positives []string
	Negations []string
}

// DefaultFactorRules returns the factor extraction table. Phrase lists
// are lowercase; matching is whole-text co-occurrence.
func DefaultFactorRules() []FactorRule {
	return []FactorRule{
		{
			Factor:    screening.FactorHighRiskJurisdiction,
			Positives: []string{"high-risk country", "high risk country"},
			Negations: []string{"not in", "no high-risk", "not high-risk", "low-risk"},
		},
		{
			Factor:    screening.FactorUnusualAmount,
			Positives: []string{"large amount", "high amount"},
			Negations: []string{"below", "under", "not large", "not high"},
		},
		{
			Factor:    screening.FactorSuspiciousPattern,
			Positives: []string{"suspicious"},
			Negations: []string{"no suspicious", "not suspicious", "no triggering"},
		},
		{
			Factor:    screening.FactorSanctionsConcern,
			Positives: []string{"sanctions concern", "sanctions flag", "sanctions match", "sanctions risk"},
			Negations: []string{"no sanctions", "sanctions check clear", "no sanctions flag"},
		},
		{
			Factor:    screening.FactorFrequencyAnomaly,
			Positives: []string{"frequent", "unusual frequency"},
			Negations: []string{"not frequent", "normal frequency"},
		},
		{
			Factor:    screening.FactorRegulatoryViolation,
			Positives: []string{"regulatory violation", "compliance violation"},
			Negations: []string{"no regulatory", "no compliance violation", "not in violation"},
		},
	}
}

// Parser extracts structured signals from narrative text. Zero-cost to
// share; a single instance serves every call site.
type Parser struct {
	rules []FactorRule
}

// Option configures a Parser.
type Option func(*Parser)

// WithFactorRules replaces the default factor extraction table.
func WithFactorRules(rules []FactorRule) Option {
	return func(p *Parser) { p.rules = rules }
}

// NewParser creates a Parser with the default factor rules.
func NewParser(opts ...Option) *Parser {
	p := &Parser{rules: DefaultFactorRules()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one narrative. It never fails: absent signals yield zero
// values and a missing score falls back to heuristic content scoring.
func (p *Parser) Parse(text string) Analysis {
	lower := strings.ToLower(text)

	a := Analysis{}
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			a.Score = score
			a.ScoreExplicit = true
		}
	}
	if !a.ScoreExplicit {
		a.Score = fallbackScore(lower)
	}

	if m := levelRe.FindStringSubmatch(text); m != nil {
		a.LevelToken = strings.ToUpper(m[1])
	}
	if m := txRe.FindStringSubmatch(text); m != nil {
		a.TransactionID = m[1]
	}

	for _, rule := range p.rules {
		if containsAny(lower, rule.Positives) && !containsAny(lower, rule.Negations) {
			a.Factors = append(a.Factors, rule.Factor)
		}
	}
	a.Factors = screening.NormalizeFactors(a.Factors)
	return a
}

// countryNames are spelled-out jurisdictions that read as a strong
// signal on their own, without a "high-risk" qualifier.
var countryNames = []string{"russia", "russian", "iran", "iranian", "north korea", "syria", "yemen"}

// fallbackScore computes a heuristic score from keyword presence when
// the narrative states no explicit one. Increments accumulate from a low
// baseline; verdict phrases then apply floors (max) and a ceiling (min)
// rather than overwriting, so a floor never lowers a higher computed
// score and the ceiling never raises a lower one.
func fallbackScore(lower string) float64 {
	score := 20.0

	switch {
	case containsAny(lower, countryNames):
		score += 40
	case strings.Contains(lower, "high-risk country") || strings.Contains(lower, "high risk country"):
		score += 35
	case strings.Contains(lower, "sanctions") && !containsAny(lower, []string{"no sanctions", "sanctions check clear"}):
		score += 45
	}

	if containsAny(lower, []string{"large amount", "high amount"}) && !containsAny(lower, []string{"below", "under", "not large"}) {
		score += 15
	}
	if strings.Contains(lower, "suspicious") && !containsAny(lower, []string{"no suspicious", "not suspicious", "no triggering"}) {
		score += 20
	}
	if containsAny(lower, []string{"new account", "low trust", "low device trust"}) {
		score += 10
	}
	if containsAny(lower, []string{"past fraud", "fraud history"}) {
		score += 25
	}

	switch {
	case containsAny(lower, []string{"block", "reject"}):
		score = max(score, 75)
	case strings.Contains(lower, "high risk") && !containsAny(lower, []string{"not high risk", "no high risk"}):
		score = max(score, 65)
	case strings.Contains(lower, "medium risk"):
		score = max(score, 45)
	case containsAny(lower, []string{"low risk", "approve"}):
		score = min(score, 30)
	}

	return max(10.0, min(100.0, score))
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// Package risk implements the risk analysis stage: score the enriched
// context with the deterministic rule engine, ask the reasoner for a
// regulatory narrative, and reconcile both into a RiskAssessment.
//
// The reasoner is advisory. When it fails or times out the stage falls
// back to the rule-based score and marks the assessment degraded rather
// than failing the run.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/narrative"
	"vigil/internal/screening/ports"
	"vigil/internal/screening/rules"
)

const defaultReasonerTimeout = 30 * time.Second

// Service is the risk analysis stage.
type Service struct {
	reasoner ports.Reasoner
	rules    *rules.Engine
	parser   *narrative.Parser
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRuleEngine replaces the default rule engine.
func WithRuleEngine(engine *rules.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.rules = engine
		}
	}
}

// WithParser replaces the default narrative parser.
func WithParser(parser *narrative.Parser) Option {
	return func(s *Service) {
		if parser != nil {
			s.parser = parser
		}
	}
}

// WithReasonerTimeout bounds each reasoner call.
func WithReasonerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(reasoner ports.Reasoner, opts ...Option) (*Service, error) {
	if reasoner == nil {
		return nil, fmt.Errorf("reasoner is required")
	}

	s := &Service{
		reasoner: reasoner,
		rules:    rules.NewEngine(),
		parser:   narrative.NewParser(),
		timeout:  defaultReasonerTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Assess produces the risk assessment for an enriched context. The only
// error paths are invalid input and caller cancellation; reasoner trouble
// degrades instead.
func (s *Service) Assess(ctx context.Context, enriched *screening.EnrichedContext) (*screening.RiskAssessment, error) {
	if enriched == nil {
		return nil, fmt.Errorf("enriched context is required")
	}

	baseScore, baseFactors := s.rules.Evaluate(*enriched)
	prompt := BuildPrompt(enriched, baseScore, baseFactors)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.reasoner.Run(rctx, prompt)
	elapsed := time.Since(start)

	if err != nil || strings.TrimSpace(text) == "" {
		// A cancelled run must not masquerade as a degraded analysis.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("risk analysis interrupted: %w", ctx.Err())
		}

		s.logger.WarnContext(ctx, "reasoner degraded, falling back to rule-based assessment",
			"transaction_id", enriched.Transaction.ID,
			"duration", elapsed,
			"error", err,
		)
		s.metrics.IncrementDegradedAnalysis()

		return s.finish(s.degradedAssessment(enriched, baseScore, baseFactors)), nil
	}

	s.logger.DebugContext(ctx, "reasoner narrative received",
		"transaction_id", enriched.Transaction.ID,
		"duration", elapsed,
		"length", len(text),
	)

	analysis := s.parser.Parse(text)

	// An explicit narrative score overrides the rule-based one; otherwise
	// the deterministic score stands and the narrative only adds factors.
	score := baseScore
	if analysis.ScoreExplicit {
		score = screening.ClampScore(analysis.Score)
	}

	merged := make([]screening.RiskFactor, 0, len(baseFactors)+len(analysis.Factors))
	merged = append(merged, baseFactors...)
	merged = append(merged, analysis.Factors...)

	assessment := &screening.RiskAssessment{
		TransactionID:  enriched.Transaction.ID,
		Score:          score,
		Level:          screening.LevelForScore(score),
		Factors:        screening.NormalizeFactors(merged),
		Narrative:      strings.TrimSpace(text),
		Recommendation: screening.RecommendationForScore(score),
	}
	return s.finish(assessment), nil
}

func (s *Service) degradedAssessment(enriched *screening.EnrichedContext, baseScore float64, baseFactors []screening.RiskFactor) *screening.RiskAssessment {
	factors := make([]screening.RiskFactor, 0, len(baseFactors)+1)
	factors = append(factors, baseFactors...)
	factors = append(factors, screening.FactorDegradedAnalysis)

	return &screening.RiskAssessment{
		TransactionID: enriched.Transaction.ID,
		Score:         baseScore,
		Level:         screening.LevelForScore(baseScore),
		Factors:       screening.NormalizeFactors(factors),
		Narrative: fmt.Sprintf(
			"Automated rule-based assessment for transaction %s. Narrative analysis unavailable. Rule score %.0f from %d triggered factors.",
			enriched.Transaction.ID, baseScore, len(baseFactors),
		),
		Recommendation: screening.RecommendationForScore(baseScore),
	}
}

func (s *Service) finish(assessment *screening.RiskAssessment) *screening.RiskAssessment {
	s.metrics.ObserveRiskScore(assessment.Score)
	s.metrics.IncrementDecision(string(assessment.Level), string(assessment.Recommendation))
	return assessment
}

// BuildPrompt renders the enriched context and preliminary rule results
// into the regulatory assessment prompt.
func BuildPrompt(enriched *screening.EnrichedContext, baseScore float64, factors []screening.RiskFactor) string {
	tx := enriched.Transaction

	var b strings.Builder
	b.WriteString("Based on the comprehensive fraud analysis provided below, provide your expert regulatory and compliance risk assessment.\n\n")

	fmt.Fprintf(&b, "Transaction %s:\n", tx.ID)
	fmt.Fprintf(&b, "- Amount: %.2f %s\n", tx.Amount, tx.Currency)
	fmt.Fprintf(&b, "- Customer: %s\n", tx.CustomerID)
	fmt.Fprintf(&b, "- Destination: %s\n", tx.DestinationCountry)
	fmt.Fprintf(&b, "- Timestamp: %s\n\n", tx.Timestamp.UTC().Format(time.RFC3339))

	if enriched.CustomerKnown {
		c := enriched.Customer
		fmt.Fprintf(&b, "Customer Profile (%s):\n", c.CustomerID)
		fmt.Fprintf(&b, "- Name: %s\n", c.Name)
		fmt.Fprintf(&b, "- Country: %s\n", c.Country)
		fmt.Fprintf(&b, "- Account Age: %d days\n", c.AccountAgeDays)
		fmt.Fprintf(&b, "- Device Trust Score: %.2f\n", c.DeviceTrustScore)
		fmt.Fprintf(&b, "- Past Fraud: %t\n\n", c.PastFraud)
	} else {
		fmt.Fprintf(&b, "Customer Profile (%s): no profile on record\n\n", tx.CustomerID)
	}

	fmt.Fprintf(&b, "Transaction History:\n")
	fmt.Fprintf(&b, "- Total Transactions: %d\n", len(enriched.History))
	fmt.Fprintf(&b, "- Destination Corridor Transactions: %d\n\n", len(enriched.DestinationHistory))

	if p := enriched.Prediction; p != nil {
		fmt.Fprintf(&b, "ML Fraud Model:\n")
		fmt.Fprintf(&b, "- Fraud Probability: %.3f\n", p.Score)
		fmt.Fprintf(&b, "- Model Version: %s\n\n", p.ModelVersion)
	}

	f := enriched.Flags
	b.WriteString("RISK INDICATORS:\n")
	fmt.Fprintf(&b, "- High Amount: %t\n", f.HighAmount)
	fmt.Fprintf(&b, "- High Risk Country: %t\n", f.HighRiskCountry)
	fmt.Fprintf(&b, "- Cross Border: %t\n", f.CrossBorder)
	fmt.Fprintf(&b, "- New Account: %t\n", f.NewAccount)
	fmt.Fprintf(&b, "- Low Device Trust: %t\n", f.LowDeviceTrust)
	fmt.Fprintf(&b, "- Past Fraud History: %t\n", f.PastFraud)
	fmt.Fprintf(&b, "- Amount vs Average: %.2f\n\n", f.AmountVsAverage)

	fmt.Fprintf(&b, "Preliminary rule-based score: %.0f\n", baseScore)
	if len(factors) > 0 {
		fmt.Fprintf(&b, "Preliminary risk factors: %s\n", joinFactors(factors))
	}

	b.WriteString(`
Please focus on:
1. Validating the risk factors identified in the analysis
2. Assessing the risk score and level from a regulatory perspective
3. Providing additional AML/KYC compliance considerations
4. Checking against sanctions lists and regulatory requirements
5. Final recommendation on transaction approval/blocking/investigation
6. Regulatory reporting requirements if any

Provide a structured risk assessment with a numeric risk score (0-100), a risk level, and clear regulatory justification.
`)

	return b.String()
}

func joinFactors(factors []screening.RiskFactor) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

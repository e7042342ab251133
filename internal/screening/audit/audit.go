// Package audit implements the compliance audit stage: derive a
// deterministic audit report from a risk assessment, optionally attach
// reasoner-written supplementary notes, and persist the result.
//
// Report derivation is pure. The supplementary notes call is advisory
// and can never change a compliance rating; only report persistence can
// fail the branch.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

const defaultNotesTimeout = 20 * time.Second

// ComplianceEvents persists compliance events. Emission is fail-closed:
// a screening whose compliance trail cannot be recorded fails the audit
// branch.
type ComplianceEvents interface {
	Emit(ctx context.Context, event events.ComplianceEvent) error
}

// Service is the compliance audit stage.
type Service struct {
	reports  ports.ReportStore
	reasoner ports.Reasoner
	events   ComplianceEvents
	timeout  time.Duration
	clock    func() time.Time
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

// WithReasoner enables supplementary audit notes. Without it reports are
// purely rule-derived.
func WithReasoner(reasoner ports.Reasoner) Option {
	return func(s *Service) {
		s.reasoner = reasoner
	}
}

// WithComplianceEvents enables the compliance event trail.
func WithComplianceEvents(sink ComplianceEvents) Option {
	return func(s *Service) {
		s.events = sink
	}
}

// WithNotesTimeout bounds the supplementary notes call.
func WithNotesTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(reports ports.ReportStore, opts ...Option) (*Service, error) {
	if reports == nil {
		return nil, fmt.Errorf("report store is required")
	}

	s := &Service{
		reports: reports,
		timeout: defaultNotesTimeout,
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Process derives the audit report for an assessment and persists it.
// Persistence failure fails the branch; the supplementary notes call does
// not.
func (s *Service) Process(ctx context.Context, assessment *screening.RiskAssessment) (*screening.AuditReport, error) {
	if assessment == nil {
		return nil, fmt.Errorf("risk assessment is required")
	}

	report := s.BuildReport(assessment)

	if s.reasoner != nil {
		s.supplementNotes(ctx, assessment, report)
	}

	if err := s.reports.SaveReport(ctx, *report); err != nil {
		return nil, fmt.Errorf("save audit report %s: %w", report.ReportID, err)
	}

	if err := s.emitComplianceTrail(ctx, assessment, report); err != nil {
		return nil, err
	}

	s.metrics.IncrementComplianceRating(string(report.ComplianceRating))
	s.logger.InfoContext(ctx, "audit report generated",
		"report_id", report.ReportID,
		"transaction_id", report.TransactionID,
		"compliance_rating", report.ComplianceRating,
		"regulatory_filing", report.RequiresRegulatoryFiling,
	)

	return report, nil
}

// emitComplianceTrail records the screening on the compliance event
// stream. The report is already persisted when this runs; a rerun of the
// same screening regenerates the identical trail, so retries are safe.
func (s *Service) emitComplianceTrail(ctx context.Context, assessment *screening.RiskAssessment, report *screening.AuditReport) error {
	if s.events == nil {
		return nil
	}

	requestID := requestcontext.RequestID(ctx)
	actorID := requestcontext.AnalystID(ctx)

	trail := []events.ComplianceEvent{
		{
			TransactionID: assessment.TransactionID.String(),
			Subject:       assessment.TransactionID.String(),
			Action:        string(events.EventScreeningCompleted),
			Decision:      string(assessment.Recommendation),
			Score:         assessment.Score,
			RequestID:     requestID,
			ActorID:       actorID,
		},
		{
			TransactionID: assessment.TransactionID.String(),
			Subject:       report.ReportID.String(),
			Action:        string(events.EventReportGenerated),
			Decision:      string(report.ComplianceRating),
			Score:         report.RiskScore,
			RequestID:     requestID,
			ActorID:       actorID,
		},
	}
	if report.RequiresRegulatoryFiling {
		trail = append(trail, events.ComplianceEvent{
			TransactionID: assessment.TransactionID.String(),
			Subject:       report.ReportID.String(),
			Action:        string(events.EventRegulatoryFilingRequired),
			Decision:      string(report.ComplianceRating),
			Score:         report.RiskScore,
			RequestID:     requestID,
			ActorID:       actorID,
		})
	}

	for _, event := range trail {
		if err := s.events.Emit(ctx, event); err != nil {
			return fmt.Errorf("record compliance trail for %s: %w", report.ReportID, err)
		}
	}
	return nil
}

// BuildReport derives the audit report from an assessment. Pure apart from
// the clock: same assessment, same rating and recommendations.
func (s *Service) BuildReport(assessment *screening.RiskAssessment) *screening.AuditReport {
	now := s.clock().UTC()
	score := assessment.Score

	var rating screening.ComplianceRating
	switch {
	case score >= screening.ScoreHigh:
		rating = screening.RatingNonCompliant
	case score >= screening.ScoreEnhancedMonitoring:
		rating = screening.RatingConditionalCompliance
	case assessment.Degraded():
		// A clean rating cannot rest on a degraded analysis.
		rating = screening.RatingReviewRequired
	default:
		rating = screening.RatingCompliant
	}

	report := &screening.AuditReport{
		ReportID:                   id.NewReportID(assessment.TransactionID, now),
		TransactionID:              assessment.TransactionID,
		ComplianceRating:           rating,
		RequiresImmediateAction:    score >= screening.ScoreHigh,
		RequiresEnhancedMonitoring: score >= screening.ScoreEnhancedMonitoring && score < screening.ScoreHigh,
		RequiresRegulatoryFiling:   assessment.HasFactor(screening.FactorHighRiskJurisdiction) || assessment.HasFactor(screening.FactorSanctionsConcern),
		RiskScore:                  score,
		FactorsIdentified:          append([]screening.RiskFactor(nil), assessment.Factors...),
		GeneratedAt:                now,
		NextReviewDate:             firstOfNextMonth(now),
	}
	report.Recommendations = recommendations(report)

	return report
}

// recommendations accumulates the action list in fixed order. Every
// applicable block appends; exactly one of the last two fires.
func recommendations(report *screening.AuditReport) []string {
	var recs []string

	if report.RequiresImmediateAction {
		recs = append(recs,
			"Immediate transaction review required",
			"Enhanced due diligence procedures",
			"Supervisor approval mandatory",
		)
	}

	if report.RequiresRegulatoryFiling {
		recs = append(recs,
			"File Suspicious Activity Report (SAR)",
			"Notify relevant regulatory authorities",
			"Maintain detailed transaction records",
		)
	}

	if report.ComplianceRating == screening.RatingReviewRequired {
		recs = append(recs,
			"Schedule compliance review meeting",
			"Additional customer verification",
			"Monitor for pattern analysis",
		)
	}

	if len(report.FactorsIdentified) > 0 {
		recs = append(recs,
			"Place customer on enhanced monitoring list",
			"Review transaction against internal risk policies",
		)
	} else {
		recs = append(recs, "Continue standard monitoring procedures")
	}

	return recs
}

// supplementNotes asks the reasoner for audit prose. Best effort: failures
// are logged and the report ships without notes.
func (s *Service) supplementNotes(ctx context.Context, assessment *screening.RiskAssessment, report *screening.AuditReport) {
	nctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	notes, err := s.reasoner.Run(nctx, notesPrompt(assessment, report))
	if err != nil {
		s.logger.WarnContext(ctx, "supplementary audit notes unavailable",
			"report_id", report.ReportID,
			"error", err,
		)
		return
	}
	report.SupplementaryNotes = strings.TrimSpace(notes)
}

func notesPrompt(assessment *screening.RiskAssessment, report *screening.AuditReport) string {
	var b strings.Builder
	b.WriteString("Generate a concise compliance audit summary based on this risk analysis:\n\n")
	b.WriteString("Risk Analysis Result:\n")
	b.WriteString(assessment.Narrative)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Transaction ID: %s\n", assessment.TransactionID)
	fmt.Fprintf(&b, "Risk Score: %.0f\n", assessment.Score)
	fmt.Fprintf(&b, "Recommendation: %s\n", assessment.Recommendation)
	fmt.Fprintf(&b, "Risk Factors: %s\n", joinFactors(assessment.Factors))
	fmt.Fprintf(&b, "Compliance Rating: %s\n", report.ComplianceRating)
	b.WriteString(`
Please provide:
1. Executive summary of findings
2. Risk factor analysis and regulatory implications
3. Recommendations for management action

Focus on regulatory compliance and audit documentation.
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

func firstOfNextMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// ExecutiveSummary aggregates recent audit reports for oversight review.
type ExecutiveSummary struct {
	TotalReports     int                                `json:"total_reports"`
	RatingCounts     map[screening.ComplianceRating]int `json:"rating_counts"`
	AverageRiskScore float64                            `json:"average_risk_score"`
	FilingsRequired  int                                `json:"filings_required"`
	ImmediateActions int                                `json:"immediate_actions"`
	GeneratedAt      time.Time                          `json:"generated_at"`
}

// Summary aggregates the most recent reports, up to limit.
func (s *Service) Summary(ctx context.Context, limit int) (*ExecutiveSummary, error) {
	reports, err := s.reports.ListReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit reports: %w", err)
	}

	summary := &ExecutiveSummary{
		RatingCounts: make(map[screening.ComplianceRating]int),
		GeneratedAt:  s.clock().UTC(),
	}

	total := 0.0
	for _, report := range reports {
		summary.TotalReports++
		summary.RatingCounts[report.ComplianceRating]++
		total += report.RiskScore
		if report.RequiresRegulatoryFiling {
			summary.FilingsRequired++
		}
		if report.RequiresImmediateAction {
			summary.ImmediateActions++
		}
	}
	if summary.TotalReports > 0 {
		summary.AverageRiskScore = total / float64(summary.TotalReports)
	}

	return summary, nil
}

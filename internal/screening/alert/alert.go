// Package alert implements the fraud alert stage: decide whether an
// assessment warrants an alert, persist the record, and dispatch it to
// the downstream case system.
//
// The stage outcome is three-valued. "No action", "created", and
// "dispatch failed" are distinct results and are never collapsed into a
// success boolean; a failed dispatch still leaves a persisted alert with
// a failure note.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

const defaultDispatchTimeout = 15 * time.Second

// SecurityEvents receives alert lifecycle events for the security
// stream. The sink must be non-blocking; a nil sink disables emission.
type SecurityEvents interface {
	Emit(event events.SecurityEvent)
}

// Disposition classifies the alert stage outcome.
type Disposition string

const (
	DispositionNoAction       Disposition = "NO_ACTION"
	DispositionCreated        Disposition = "CREATED"
	DispositionDispatchFailed Disposition = "DISPATCH_FAILED"
)

// Outcome is the alert stage result. Alert is set unless the disposition
// is NO_ACTION; DispatchError is set only for DISPATCH_FAILED.
type Outcome struct {
	Disposition   Disposition            `json:"disposition"`
	Alert         *screening.AlertRecord `json:"alert,omitempty"`
	DispatchError string                 `json:"dispatch_error,omitempty"`
}

// Service is the fraud alert stage.
type Service struct {
	alerts     ports.AlertStore
	dispatcher ports.AlertDispatcher
	security   SecurityEvents
	timeout    time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

// WithDispatchTimeout bounds each dispatch call.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSecurityEvents enables alert lifecycle events on the security
// stream.
func WithSecurityEvents(sink SecurityEvents) Option {
	return func(s *Service) {
		s.security = sink
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

func New(alerts ports.AlertStore, dispatcher ports.AlertDispatcher, opts ...Option) (*Service, error) {
	if alerts == nil {
		return nil, fmt.Errorf("alert store is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("alert dispatcher is required")
	}

	s := &Service{
		alerts:     alerts,
		dispatcher: dispatcher,
		timeout:    defaultDispatchTimeout,
		clock:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// eligibilityFactors each independently warrant an alert regardless of
// the numeric score.
var eligibilityFactors = []screening.RiskFactor{
	screening.FactorSanctionsConcern,
	screening.FactorHighRiskJurisdiction,
	screening.FactorSuspiciousPattern,
	screening.FactorRegulatoryViolation,
}

// Eligible reports whether the assessment warrants a fraud alert.
func Eligible(assessment *screening.RiskAssessment) bool {
	if assessment.Score >= screening.ScoreHigh {
		return true
	}
	for _, factor := range eligibilityFactors {
		if assessment.HasFactor(factor) {
			return true
		}
	}
	return false
}

// Process evaluates eligibility and, when warranted, persists and
// dispatches an alert. Persistence failure fails the branch; dispatch
// failure is recorded on the alert and reported in the outcome.
func (s *Service) Process(ctx context.Context, assessment *screening.RiskAssessment, customerID id.CustomerID) (*Outcome, error) {
	if assessment == nil {
		return nil, fmt.Errorf("risk assessment is required")
	}

	if !Eligible(assessment) {
		s.logger.DebugContext(ctx, "no alert warranted",
			"transaction_id", assessment.TransactionID,
			"score", assessment.Score,
		)
		s.metrics.IncrementAlert("NONE", "no_action")
		return &Outcome{Disposition: DispositionNoAction}, nil
	}

	record := s.buildRecord(assessment, customerID)

	if err := s.alerts.SaveAlert(ctx, *record); err != nil {
		return nil, fmt.Errorf("save alert %s: %w", record.AlertID, err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.dispatcher.SendAlert(dctx, *record); err != nil {
		record.Notes = append(record.Notes, fmt.Sprintf("Alert dispatch failed: %v", err))
		record.UpdatedAt = s.clock().UTC()
		if saveErr := s.alerts.SaveAlert(ctx, *record); saveErr != nil {
			s.logger.WarnContext(ctx, "failed to persist dispatch failure note",
				"alert_id", record.AlertID,
				"error", saveErr,
			)
		}

		s.logger.WarnContext(ctx, "alert dispatch failed",
			"alert_id", record.AlertID,
			"transaction_id", record.TransactionID,
			"severity", record.Severity,
			"error", err,
		)
		s.metrics.IncrementAlert(string(record.Severity), "dispatch_failed")
		s.emitSecurityEvent(ctx, record, events.EventAlertDispatchFailed,
			fmt.Sprintf("dispatch failed: %v", err), events.SeverityCritical)
		return &Outcome{
			Disposition:   DispositionDispatchFailed,
			Alert:         record,
			DispatchError: err.Error(),
		}, nil
	}

	s.logger.InfoContext(ctx, "fraud alert created",
		"alert_id", record.AlertID,
		"transaction_id", record.TransactionID,
		"severity", record.Severity,
		"action", record.DecisionAction,
	)
	s.metrics.IncrementAlert(string(record.Severity), "created")
	s.emitSecurityEvent(ctx, record, events.EventAlertCreated,
		fmt.Sprintf("severity %s, action %s", record.Severity, record.DecisionAction), eventSeverityFor(record.Severity))
	return &Outcome{Disposition: DispositionCreated, Alert: record}, nil
}

func (s *Service) emitSecurityEvent(ctx context.Context, record *screening.AlertRecord, action events.EventType, reason string, severity events.Severity) {
	if s.security == nil {
		return
	}
	s.security.Emit(events.SecurityEvent{
		Subject:   record.AlertID.String(),
		Action:    string(action),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.AnalystID(ctx),
		Severity:  severity,
	})
}

// eventSeverityFor maps an alert's risk band onto the event stream's
// coarser scale.
func eventSeverityFor(severity screening.AlertSeverity) events.Severity {
	switch severity {
	case screening.SeverityCritical:
		return events.SeverityCritical
	case screening.SeverityHigh:
		return events.SeverityWarning
	default:
		return events.SeverityInfo
	}
}

func (s *Service) buildRecord(assessment *screening.RiskAssessment, customerID id.CustomerID) *screening.AlertRecord {
	now := s.clock().UTC()
	severity := screening.SeverityForScore(assessment.Score)

	notes := []string{
		fmt.Sprintf("Alert created for transaction %s with severity %s", assessment.TransactionID, severity),
	}
	if assessment.HasFactor(screening.FactorSanctionsConcern) {
		notes = append(notes, "Sanctions compliance review required")
	}
	if assessment.Degraded() {
		notes = append(notes, "Risk analysis degraded, manual review advised")
	}

	return &screening.AlertRecord{
		AlertID:        id.NewAlertID(assessment.TransactionID, now),
		TransactionID:  assessment.TransactionID,
		CustomerID:     customerID,
		Severity:       severity,
		Status:         screening.StatusOpen,
		DecisionAction: screening.ActionForRecommendation(assessment.Recommendation),
		RiskScore:      assessment.Score,
		Factors:        append([]screening.RiskFactor(nil), assessment.Factors...),
		Reasoning:      assessment.Narrative,
		AssignedTo:     screening.DefaultAssignee,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

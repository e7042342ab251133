// Package workflow wires the screening stages into the fixed pipeline:
// enrichment feeds risk scoring, whose assessment fans out to the audit
// and alert branches running concurrently.
//
// Failure semantics follow the stage taxonomy. Enrichment or risk
// scoring failure short-circuits the run with a single upstream error.
// Branch failures are isolated: each branch reports its own result and a
// failed branch never discards the sibling's output.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/screening"
	"vigil/internal/screening/alert"
	"vigil/internal/screening/metrics"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/events"
	"vigil/pkg/requestcontext"
)

const tracerName = "vigil/screening"

// Enricher produces the enriched context for a transaction.
type Enricher interface {
	Enrich(ctx context.Context, txID id.TransactionID) (*screening.EnrichedContext, error)
}

// Assessor produces the risk assessment for an enriched context.
type Assessor interface {
	Assess(ctx context.Context, enriched *screening.EnrichedContext) (*screening.RiskAssessment, error)
}

// Auditor is the audit sink branch.
type Auditor interface {
	Process(ctx context.Context, assessment *screening.RiskAssessment) (*screening.AuditReport, error)
}

// Alerter is the fraud alert sink branch.
type Alerter interface {
	Process(ctx context.Context, assessment *screening.RiskAssessment, customerID id.CustomerID) (*alert.Outcome, error)
}

// AuditBranch is the audit sink result. Exactly one field is set.
type AuditBranch struct {
	Report *screening.AuditReport
	Err    error
}

// AlertBranch is the alert sink result. Exactly one field is set.
type AlertBranch struct {
	Outcome *alert.Outcome
	Err     error
}

// Result is the terminal output of one screening run. Both branch
// results are always present after a successful fan-out, regardless of
// whether either branch failed.
type Result struct {
	TransactionID id.TransactionID
	Assessment    *screening.RiskAssessment
	Audit         AuditBranch
	Alert         AlertBranch
	CompletedAt   time.Time
	Duration      time.Duration
}

// Succeeded reports whether both sink branches completed without error.
func (r *Result) Succeeded() bool {
	return r.Audit.Err == nil && r.Alert.Err == nil
}

// OpsEvents receives operational telemetry events. Tracking is
// best-effort and non-blocking; a nil sink disables it.
type OpsEvents interface {
	Track(ctx context.Context, event events.OpsEvent)
}

// Service runs the screening workflow.
type Service struct {
	enricher Enricher
	assessor Assessor
	auditor  Auditor
	alerter  Alerter
	ops      OpsEvents
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

// WithOpsEvents enables operational telemetry on the events pipeline.
func WithOpsEvents(sink OpsEvents) Option {
	return func(s *Service) {
		s.ops = sink
	}
}

func New(enricher Enricher, assessor Assessor, auditor Auditor, alerter Alerter, opts ...Option) (*Service, error) {
	if enricher == nil {
		return nil, fmt.Errorf("enricher is required")
	}
	if assessor == nil {
		return nil, fmt.Errorf("assessor is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}
	if alerter == nil {
		return nil, fmt.Errorf("alerter is required")
	}

	s := &Service{
		enricher: enricher,
		assessor: assessor,
		auditor:  auditor,
		alerter:  alerter,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Run screens one transaction end to end. The returned error is non-nil
// only for upstream failures; branch errors live inside the Result.
func (s *Service) Run(ctx context.Context, txID id.TransactionID) (*Result, error) {
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "screening.run",
		trace.WithAttributes(
			attribute.String("transaction.id", string(txID)),
			attribute.String("business.process", "fraud_detection"),
		),
	)
	defer span.End()

	s.logger.InfoContext(ctx, "screening workflow started", "transaction_id", txID)
	s.trackOps(ctx, txID, events.EventScreeningStarted)

	var enriched *screening.EnrichedContext
	err := s.stage(ctx, "enrich", func(ctx context.Context) error {
		var err error
		enriched, err = s.enricher.Enrich(ctx, txID)
		return err
	})
	if err != nil {
		return nil, s.upstreamFailure(ctx, span, txID, "enrichment", err)
	}

	var assessment *screening.RiskAssessment
	err = s.stage(ctx, "risk", func(ctx context.Context) error {
		var err error
		assessment, err = s.assessor.Assess(ctx, enriched)
		return err
	})
	if err != nil {
		return nil, s.upstreamFailure(ctx, span, txID, "risk scoring", err)
	}

	span.SetAttributes(
		attribute.Float64("risk.score", assessment.Score),
		attribute.String("risk.level", string(assessment.Level)),
		attribute.String("risk.recommendation", string(assessment.Recommendation)),
	)

	if assessment.Degraded() {
		s.trackOps(ctx, txID, events.EventReasonerDegraded)
	}

	result := &Result{
		TransactionID: txID,
		Assessment:    assessment,
	}

	// Both sinks consume the same immutable assessment and neither waits
	// on the other. Branch errors stay inside the branch result.
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		result.Audit.Err = s.stage(ctx, "audit", func(ctx context.Context) error {
			report, err := s.auditor.Process(ctx, assessment)
			result.Audit.Report = report
			return err
		})
	}()

	go func() {
		defer wg.Done()
		result.Alert.Err = s.stage(ctx, "alert", func(ctx context.Context) error {
			outcome, err := s.alerter.Process(ctx, assessment, enriched.Transaction.CustomerID)
			result.Alert.Outcome = outcome
			return err
		})
	}()

	wg.Wait()

	result.CompletedAt = time.Now().UTC()
	result.Duration = time.Since(start)

	outcome := "completed"
	if !result.Succeeded() {
		outcome = "partial"
	}
	s.metrics.IncrementRun(outcome)

	s.logger.InfoContext(ctx, "screening workflow finished",
		"transaction_id", txID,
		"score", assessment.Score,
		"level", assessment.Level,
		"outcome", outcome,
		"audit_ok", result.Audit.Err == nil,
		"alert_ok", result.Alert.Err == nil,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *Service) trackOps(ctx context.Context, txID id.TransactionID, action events.EventType) {
	if s.ops == nil {
		return
	}
	s.ops.Track(ctx, events.OpsEvent{
		Subject:   txID.String(),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	})
}

// stage runs fn inside a child span and records its latency.
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "screening."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStageLatency(name, time.Since(start))

	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Service) upstreamFailure(ctx context.Context, span trace.Span, txID id.TransactionID, stage string, err error) error {
	s.metrics.IncrementRun("upstream_failed")
	span.RecordError(err)
	s.logger.ErrorContext(ctx, "screening workflow aborted",
		"transaction_id", txID,
		"stage", stage,
		"error", err,
	)
	return fmt.Errorf("%s: %w", stage, err)
}

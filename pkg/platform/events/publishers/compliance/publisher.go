// Package compliance provides a fail-closed publisher for regulatory events.
//
// The publisher emits compliance events with synchronous, fail-closed
// semantics. Events are written to the outbox and the caller blocks until
// the write succeeds. If the write fails, an error is returned and the
// calling operation MUST fail.
//
// Use for: screening_completed, report_generated, regulatory_filing_required
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vigil/pkg/platform/events"
)

// Publisher emits compliance events with fail-closed semantics.
// All writes are synchronous - the caller blocks until persistence succeeds or fails.
type Publisher struct {
	store   events.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher.
// The store must be outbox-backed for guaranteed delivery.
func New(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event to the event store.
// Returns error if persistence fails - the caller MUST fail its operation.
//
// This is a fail-closed operation: if the event cannot be persisted,
// the screening outcome must not be reported as recorded.
func (p *Publisher) Emit(ctx context.Context, event events.ComplianceEvent) error {
	start := time.Now()

	if event.TransactionID == "" {
		return fmt.Errorf("compliance event requires TransactionID")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance event persistence failed",
				"action", event.Action,
				"transaction_id", event.TransactionID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance event persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}

	return nil
}

// Close is a no-op for the synchronous compliance publisher.
func (p *Publisher) Close() error {
	return nil
}

// Package ops provides a sampled, fire-and-forget publisher for
// operational events.
//
// Track never blocks on the broker: records are produced asynchronously
// and publish results feed a circuit breaker so a broker outage degrades
// to dropped ops events instead of stalled screenings.
//
// Use for: screening_started, reasoner_degraded, cache_miss
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/platform/events"
)

// AsyncProducer produces one record without waiting for the broker.
// The promise runs when the broker responds.
type AsyncProducer interface {
	PublishAsync(ctx context.Context, topic string, key, value []byte, promise func(error))
}

// Tracker emits operational events with sampling and circuit breaking.
type Tracker struct {
	producer AsyncProducer
	sampler  *Sampler
	breaker  *CircuitBreaker
	metrics  *Metrics
	logger   *slog.Logger
}

// TrackerOption configures the Tracker.
type TrackerOption func(*Tracker)

// WithSampler replaces the default keep-everything sampler.
func WithSampler(s *Sampler) TrackerOption {
	return func(t *Tracker) {
		t.sampler = s
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) TrackerOption {
	return func(t *Tracker) {
		t.breaker = cb
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// NewTracker creates an ops tracker. By default every event is kept and
// the breaker opens after five consecutive publish failures.
func NewTracker(producer AsyncProducer, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		producer: producer,
		sampler:  NewSampler(1.0),
		breaker:  NewCircuitBreaker(0, 0),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// opsPayload matches the JSON structure consumed downstream.
type opsPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	RequestID string `json:"RequestID,omitempty"`
}

// Track publishes an operational event, subject to sampling and the
// circuit breaker. It never returns an error: ops events are best-effort.
func (t *Tracker) Track(ctx context.Context, event events.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}
	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
		}
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload := opsPayload{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		RequestID: event.RequestID,
	}
	value, err := json.Marshal(payload)
	if err != nil {
		t.logger.DebugContext(ctx, "failed to marshal ops event",
			"action", event.Action,
			"error", err,
		)
		return
	}

	key := []byte(uuid.New().String())

	// The request finishing must not abort the in-flight produce.
	produceCtx := context.WithoutCancel(ctx)
	t.producer.PublishAsync(produceCtx, events.TopicOps, key, value, func(err error) {
		if err != nil {
			t.breaker.RecordFailure()
			if t.metrics != nil {
				t.metrics.IncPublishFailures()
				t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
			}
			t.logger.Debug("ops event publish failed",
				"action", payload.Action,
				"error", err,
			)
			return
		}
		t.breaker.RecordSuccess()
		if t.metrics != nil {
			t.metrics.IncTracked()
			t.metrics.SetCircuitBreakerState(false)
		}
	})
}

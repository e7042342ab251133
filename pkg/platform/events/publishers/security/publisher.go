// Package security provides a non-blocking publisher for fraud-monitoring
// events.
//
// Emit never blocks the caller: events land in a bounded ring buffer and
// a background flusher publishes them to Kafka in batches. Under
// sustained broker outages the buffer drops its oldest entries, which is
// the right trade for monitoring data that loses value with age.
//
// Use for: alert_created, alert_dispatch_failed, alert_status_changed
package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/platform/events"
)

const (
	defaultFlushInterval = time.Second
	defaultBatchSize     = 100
	publishTimeout       = 5 * time.Second
)

// Producer publishes one record and waits for the acknowledgment.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher emits security events asynchronously via a ring buffer.
type Publisher struct {
	buffer        *RingBuffer
	producer      Producer
	logger        *slog.Logger
	flushInterval time.Duration
	batchSize     int

	done chan struct{}
	wg   sync.WaitGroup
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithBufferCapacity sets the ring buffer capacity.
func WithBufferCapacity(capacity int) PublisherOption {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

// WithFlushInterval sets how often the buffer is drained.
func WithFlushInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithBatchSize caps how many events one flush publishes.
func WithBatchSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewPublisher creates a security publisher and starts its flusher.
// Call Close to drain the buffer and stop the flusher.
func NewPublisher(producer Producer, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		buffer:        NewRingBuffer(0),
		producer:      producer,
		logger:        logger,
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Emit enqueues a security event without blocking. When the buffer is
// full the oldest event is dropped.
func (p *Publisher) Emit(event events.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = events.SeverityInfo
	}
	p.buffer.Enqueue(event)
}

// Dropped returns how many events were discarded because the buffer was full.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}

// Close stops the flusher after a final drain.
func (p *Publisher) Close() error {
	close(p.done)
	p.wg.Wait()
	return nil
}

func (p *Publisher) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.flush()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

// flush publishes one batch. On a publish failure the remaining events
// go back into the buffer and the round ends; the next tick retries.
func (p *Publisher) flush() {
	batch := p.buffer.DequeueBatch(p.batchSize)
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for i, event := range batch {
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn("security event publish failed, requeueing batch",
				"action", event.Action,
				"remaining", len(batch)-i,
				"error", err,
			)
			for _, unsent := range batch[i:] {
				p.buffer.Enqueue(unsent)
			}
			return
		}
	}
}

// securityPayload matches the JSON structure consumed downstream.
type securityPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason,omitempty"`
	IP        string `json:"IP,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
	Severity  string `json:"Severity"`
}

func (p *Publisher) publish(ctx context.Context, event events.SecurityEvent) error {
	payload := securityPayload{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		IP:        event.IP,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		Severity:  string(event.Severity),
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	key := []byte(uuid.New().String())
	return p.producer.Publish(ctx, events.TopicSecurity, key, value)
}

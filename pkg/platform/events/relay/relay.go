// Package relay moves outbox entries to Kafka. It is the second half of
// the transactional outbox: domain writes commit the event atomically,
// the relay publishes it afterwards.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/platform/events"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// OutboxStore supplies pending entries and records their publication.
type OutboxStore interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]events.OutboxEntry, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes one record and waits for the acknowledgment.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes entries in creation order.
type Relay struct {
	store    OutboxStore
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize caps how many entries one poll publishes.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// New creates a relay worker.
func New(store OutboxStore, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. Publish failures end the
// current batch; the unmarked entries are retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			published, err := r.DrainOnce(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed",
					"published", published,
					"error", err,
				)
			}
		}
	}
}

// DrainOnce publishes one batch of pending entries and returns how many
// were published. Entries are published in creation order so per-topic
// ordering survives the relay.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	entries, err := r.store.FetchUnprocessed(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var published []uuid.UUID
	var publishErr error
	for _, entry := range entries {
		topic := events.TopicFor(events.EventType(entry.EventType).Category())
		key := []byte(entry.ID.String())
		if err := r.producer.Publish(ctx, topic, key, entry.Payload); err != nil {
			publishErr = fmt.Errorf("publish outbox entry %s: %w", entry.ID, err)
			break
		}
		published = append(published, entry.ID)
	}

	if len(published) > 0 {
		if err := r.store.MarkProcessed(ctx, published); err != nil {
			// The entries will be republished next tick; consumers
			// deduplicate on the event ID.
			return len(published), fmt.Errorf("mark entries processed: %w", err)
		}
	}

	return len(published), publishErr
}

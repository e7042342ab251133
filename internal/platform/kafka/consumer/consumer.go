// Package consumer runs a Kafka consumer group and hands each record to
// a handler. Offsets are committed only after the handler accepts the
// record, so a crash between poll and commit redelivers rather than
// drops.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultRetryBackoff = 2 * time.Second

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; an
// error keeps the consumer on the same record until it succeeds or the
// context ends.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls a consumer group and dispatches records in order.
type Consumer struct {
	client       *kgo.Client
	handler      Handler
	logger       *slog.Logger
	retryBackoff time.Duration
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithRetryBackoff sets the pause between attempts on a failing record.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

// New builds a consumer-group client over the given topics.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if group == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	c := &Consumer{
		client:       client,
		handler:      handler,
		logger:       logger,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until the context is cancelled. Each record is retried in
// place until the handler accepts it; the batch is committed once every
// record in it has been handled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var processed []*kgo.Record
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			if err := c.handleWithRetry(ctx, record); err != nil {
				break
			}
			processed = append(processed, record)
		}

		if len(processed) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, processed...); err != nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func (c *Consumer) handleWithRetry(ctx context.Context, record *kgo.Record) error {
	msg := &Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Timestamp: record.Timestamp,
	}
	for {
		err := c.handler.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.ErrorContext(ctx, "message handling failed",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryBackoff):
		}
	}
}

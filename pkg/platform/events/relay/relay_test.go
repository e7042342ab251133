package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/platform/events"
)

type fakeOutbox struct {
	entries   []events.OutboxEntry
	processed []uuid.UUID
	markErr   error
}

func (f *fakeOutbox) FetchUnprocessed(_ context.Context, limit int) ([]events.OutboxEntry, error) {
	var pending []events.OutboxEntry
	for _, entry := range f.entries {
		if f.isProcessed(entry.ID) {
			continue
		}
		pending = append(pending, entry)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (f *fakeOutbox) MarkProcessed(_ context.Context, ids []uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.processed = append(f.processed, ids...)
	return nil
}

func (f *fakeOutbox) isProcessed(id uuid.UUID) bool {
	for _, done := range f.processed {
		if done == id {
			return true
		}
	}
	return false
}

type fakeProducer struct {
	published []publishedRecord
	failAfter int // fail every publish once this many have succeeded
}

type publishedRecord struct {
	topic string
	key   string
	value string
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	if f.failAfter >= 0 && len(f.published) >= f.failAfter {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, publishedRecord{
		topic: topic,
		key:   string(key),
		value: string(value),
	})
	return nil
}

func entry(eventType string, createdAt time.Time) events.OutboxEntry {
	return events.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: "transaction",
		AggregateID:   "TX1001",
		EventType:     eventType,
		Payload:       []byte(`{"Action":"` + eventType + `"}`),
		CreatedAt:     createdAt,
	}
}

func newRelay(store OutboxStore, producer Producer, opts ...Option) *Relay {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, producer, logger, opts...)
}

func TestDrainPublishesInOrder(t *testing.T) {
	base := time.Now()
	outbox := &fakeOutbox{entries: []events.OutboxEntry{
		entry(string(events.EventScreeningCompleted), base),
		entry(string(events.EventAlertCreated), base.Add(time.Millisecond)),
		entry(string(events.EventCacheMiss), base.Add(2*time.Millisecond)),
	}}
	producer := &fakeProducer{failAfter: -1}

	relay := newRelay(outbox, producer)
	published, err := relay.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, published)
	require.Len(t, producer.published, 3)
	assert.Equal(t, events.TopicCompliance, producer.published[0].topic)
	assert.Equal(t, events.TopicSecurity, producer.published[1].topic)
	assert.Equal(t, events.TopicOps, producer.published[2].topic)
	assert.Len(t, outbox.processed, 3)
}

func TestDrainUsesEntryIDAsKey(t *testing.T) {
	first := entry(string(events.EventScreeningCompleted), time.Now())
	outbox := &fakeOutbox{entries: []events.OutboxEntry{first}}
	producer := &fakeProducer{failAfter: -1}

	relay := newRelay(outbox, producer)
	_, err := relay.DrainOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, producer.published, 1)
	assert.Equal(t, first.ID.String(), producer.published[0].key)
}

func TestDrainEmptyOutbox(t *testing.T) {
	relay := newRelay(&fakeOutbox{}, &fakeProducer{failAfter: -1})

	published, err := relay.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestPublishFailureStopsBatch(t *testing.T) {
	base := time.Now()
	outbox := &fakeOutbox{entries: []events.OutboxEntry{
		entry(string(events.EventScreeningCompleted), base),
		entry(string(events.EventScreeningCompleted), base.Add(time.Millisecond)),
		entry(string(events.EventScreeningCompleted), base.Add(2*time.Millisecond)),
	}}
	producer := &fakeProducer{failAfter: 1}

	relay := newRelay(outbox, producer)
	published, err := relay.DrainOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, published)
	assert.Len(t, outbox.processed, 1, "only the published entry is marked")

	// The next drain retries the rest.
	producer.failAfter = -1
	published, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Len(t, outbox.processed, 3)
}

func TestMarkProcessedFailureSurfaces(t *testing.T) {
	outbox := &fakeOutbox{
		entries: []events.OutboxEntry{entry(string(events.EventScreeningCompleted), time.Now())},
		markErr: errors.New("database unavailable"),
	}
	producer := &fakeProducer{failAfter: -1}

	relay := newRelay(outbox, producer)
	published, err := relay.DrainOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, published, "the publish still happened")
}

func TestBatchSizeCapsDrain(t *testing.T) {
	base := time.Now()
	var entries []events.OutboxEntry
	for i := range 5 {
		entries = append(entries, entry(string(events.EventScreeningCompleted), base.Add(time.Duration(i)*time.Millisecond)))
	}
	outbox := &fakeOutbox{entries: entries}
	producer := &fakeProducer{failAfter: -1}

	relay := newRelay(outbox, producer, WithBatchSize(2))
	published, err := relay.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, published)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	relay := newRelay(&fakeOutbox{}, &fakeProducer{failAfter: -1}, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

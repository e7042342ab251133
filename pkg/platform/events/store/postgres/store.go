package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigil/pkg/platform/events"
	txcontext "vigil/pkg/platform/tx"
)

// Store implements events.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the
// relay worker. Kafka is the source of truth for screening events.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL event store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match events.Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID            string   `json:"ID"`
	Category      string   `json:"Category"`
	Timestamp     string   `json:"Timestamp"`
	TransactionID string   `json:"TransactionID,omitempty"`
	Subject       string   `json:"Subject"`
	Action        string   `json:"Action"`
	Decision      string   `json:"Decision,omitempty"`
	Reason        string   `json:"Reason,omitempty"`
	Score         *float64 `json:"Score,omitempty"`
	RequestID     string   `json:"RequestID,omitempty"`
	ActorID       string   `json:"ActorID,omitempty"`
}

// Append writes an event to the outbox table for Kafka publishing.
// It joins the caller's transaction when one is carried on the context,
// so a screening outcome and its compliance event commit atomically.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	eventID := uuid.New()

	category := event.Category
	if category == "" {
		category = events.EventType(event.Action).Category()
	}

	payload := outboxPayload{
		ID:            eventID.String(),
		Category:      string(category),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		TransactionID: event.TransactionID,
		Subject:       event.Subject,
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		Score:         event.Score,
		RequestID:     event.RequestID,
		ActorID:       event.ActorID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	// The outbox row ID doubles as the event ID so consumers dedupe on it.
	aggregateType := "screening"
	aggregateID := eventID.String()
	if event.TransactionID != "" {
		aggregateType = "transaction"
		aggregateID = event.TransactionID
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns the oldest outbox entries not yet published.
// A single relay instance is assumed; duplicate publishes are tolerated
// because materialization is idempotent on the event ID.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]events.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []events.OutboxEntry
	for rows.Next() {
		var entry events.OutboxEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AggregateType,
			&entry.AggregateID,
			&entry.EventType,
			&entry.Payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}

	return entries, nil
}

// MarkProcessed stamps outbox entries as published.
func (s *Store) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox SET processed_at = NOW() WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox entries processed: %w", err)
	}
	return nil
}

// AppendWithID inserts an event into the screening_events table with a
// specific ID. Used by the Kafka consumer to materialize events for
// querying. This is idempotent - duplicate inserts are ignored via
// ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event events.Event) error {
	query := `
		INSERT INTO screening_events (
			id, category, timestamp, transaction_id, subject, action,
			decision, reason, score, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.TransactionID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.Score,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert screening event: %w", err)
	}
	return nil
}

// ListByTransaction returns events for a specific transaction.
func (s *Store) ListByTransaction(ctx context.Context, transactionID string) ([]events.Event, error) {
	query := `
		SELECT category, timestamp, transaction_id, subject, action,
			   decision, reason, score, request_id, actor_id
		FROM screening_events
		WHERE transaction_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query screening events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	query := `
		SELECT category, timestamp, transaction_id, subject, action,
			   decision, reason, score, request_id, actor_id
		FROM screening_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query screening events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into an events.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var scanned []events.Event

	for rows.Next() {
		var (
			category string
			event    events.Event
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.TransactionID,
			&event.Subject,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.Score,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan screening event: %w", err)
		}

		event.Category = events.EventCategory(category)
		scanned = append(scanned, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screening events: %w", err)
	}

	return scanned, nil
}

// -----------------------------------------------------------------------------
// Category-specific storage methods for the materialized tables
// -----------------------------------------------------------------------------

// AppendCompliance inserts a compliance event into the screening_compliance table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendCompliance(ctx context.Context, eventID uuid.UUID, record events.ComplianceRecord) error {
	query := `
		INSERT INTO screening_compliance (
			id, timestamp, transaction_id, subject, action,
			decision, score, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		record.TransactionID,
		record.Subject,
		record.Action,
		record.Decision,
		record.Score,
		record.RequestID,
		record.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert compliance event: %w", err)
	}
	return nil
}

// AppendSecurity inserts a security event into the screening_security table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendSecurity(ctx context.Context, eventID uuid.UUID, record events.SecurityRecord) error {
	query := `
		INSERT INTO screening_security (
			id, timestamp, subject, action, reason,
			ip, request_id, actor_id, severity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.Reason,
		record.IP,
		record.RequestID,
		record.ActorID,
		record.Severity,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// AppendOps inserts an ops event into the screening_ops table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendOps(ctx context.Context, eventID uuid.UUID, record events.OpsRecord) error {
	query := `
		INSERT INTO screening_ops (
			id, timestamp, subject, action, request_id
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id, timestamp) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert ops event: %w", err)
	}
	return nil
}

package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vigil/internal/platform/kafka/consumer"
	"vigil/pkg/platform/events"
)

// ComplianceHandler processes compliance events from Kafka.
// Events are materialized into the queryable screening_events timeline
// and the long-retention screening_compliance table.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// ComplianceStore defines the storage interface for compliance events.
type ComplianceStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event events.Event) error
	AppendCompliance(ctx context.Context, eventID uuid.UUID, record events.ComplianceRecord) error
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// compliancePayload matches the JSON structure for compliance events.
type compliancePayload struct {
	Timestamp     string   `json:"Timestamp"`
	TransactionID string   `json:"TransactionID"`
	Subject       string   `json:"Subject"`
	Action        string   `json:"Action"`
	Decision      string   `json:"Decision"`
	Score         *float64 `json:"Score"`
	RequestID     string   `json:"RequestID"`
	ActorID       string   `json:"ActorID"`
}

// Handle processes a compliance event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: failed to parse compliance event ID",
			"key", string(msg.Key),
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: failed to unmarshal compliance payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if payload.TransactionID == "" {
		h.logger.Error("CRITICAL: compliance event missing TransactionID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	record := events.ComplianceRecord{
		TransactionID: payload.TransactionID,
		Subject:       payload.Subject,
		Action:        payload.Action,
		Decision:      payload.Decision,
		RequestID:     payload.RequestID,
		ActorID:       payload.ActorID,
	}
	if payload.Score != nil {
		record.Score = *payload.Score
	}

	// Parse timestamp
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			record.Timestamp = ts
		} else {
			record.Timestamp = time.Now()
		}
	} else {
		record.Timestamp = time.Now()
	}

	event := events.Event{
		Category:      events.CategoryCompliance,
		Timestamp:     record.Timestamp,
		TransactionID: record.TransactionID,
		Subject:       record.Subject,
		Action:        record.Action,
		Decision:      record.Decision,
		Score:         payload.Score,
		RequestID:     record.RequestID,
		ActorID:       record.ActorID,
	}
	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store screening event",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
		return fmt.Errorf("store screening event: %w", err)
	}

	if err := h.store.AppendCompliance(ctx, eventID, record); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", record.Action,
		"transaction_id", record.TransactionID,
	)

	return nil
}

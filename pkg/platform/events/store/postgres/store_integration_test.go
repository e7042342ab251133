//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/pkg/platform/events"
	"vigil/pkg/platform/events/store/postgres"
	"vigil/pkg/testutil/containers"
)

type EventStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestEventStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EventStoreSuite))
}

func (s *EventStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *EventStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"outbox", "screening_events", "screening_compliance", "screening_security", "screening_ops")
	s.Require().NoError(err)
}

func complianceEvent(txID string) events.Event {
	score := 85.0
	return events.Event{
		Category:      events.CategoryCompliance,
		Timestamp:     time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		TransactionID: txID,
		Subject:       "CUST1001",
		Action:        string(events.EventScreeningCompleted),
		Decision:      "NON_COMPLIANT",
		Score:         &score,
		RequestID:     "req-1",
	}
}

func (s *EventStoreSuite) TestAppendWritesOutboxEntry() {
	ctx := context.Background()

	err := s.store.Append(ctx, complianceEvent("TX1001"))
	s.Require().NoError(err)

	entries, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	entry := entries[0]
	s.Equal("transaction", entry.AggregateType)
	s.Equal("TX1001", entry.AggregateID)
	s.Equal(string(events.EventScreeningCompleted), entry.EventType)

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(entry.Payload, &payload))
	s.Equal(entry.ID.String(), payload["ID"], "outbox row ID doubles as the event ID")
	s.Equal(string(events.CategoryCompliance), payload["Category"])
	s.Equal("TX1001", payload["TransactionID"])
	s.InDelta(85, payload["Score"].(float64), 0.001)
}

func (s *EventStoreSuite) TestMarkProcessedHidesEntries() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, complianceEvent("TX1001")))
	s.Require().NoError(s.store.Append(ctx, complianceEvent("TX1002")))

	entries, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	err = s.store.MarkProcessed(ctx, []uuid.UUID{entries[0].ID})
	s.Require().NoError(err)

	remaining, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(entries[1].ID, remaining[0].ID)
}

func (s *EventStoreSuite) TestFetchUnprocessedOrdersByCreation() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, complianceEvent("TX1001")))
	s.Require().NoError(s.store.Append(ctx, complianceEvent("TX1002")))
	s.Require().NoError(s.store.Append(ctx, complianceEvent("TX1003")))

	entries, err := s.store.FetchUnprocessed(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("TX1001", entries[0].AggregateID)
	s.Equal("TX1002", entries[1].AggregateID)
}

func (s *EventStoreSuite) TestAppendWithIDIsIdempotent() {
	ctx := context.Background()
	eventID := uuid.New()
	event := complianceEvent("TX1001")

	s.Require().NoError(s.store.AppendWithID(ctx, eventID, event))
	s.Require().NoError(s.store.AppendWithID(ctx, eventID, event))

	stored, err := s.store.ListByTransaction(ctx, "TX1001")
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(events.CategoryCompliance, stored[0].Category)
	s.Equal("CUST1001", stored[0].Subject)
	s.Require().NotNil(stored[0].Score)
	s.InDelta(85, *stored[0].Score, 0.001)
}

func (s *EventStoreSuite) TestListRecentOrdersNewestFirst() {
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, txID := range []string{"TX1001", "TX1002", "TX1003"} {
		event := complianceEvent(txID)
		event.Timestamp = base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), event))
	}

	stored, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal("TX1003", stored[0].TransactionID)
	s.Equal("TX1002", stored[1].TransactionID)
}

func (s *EventStoreSuite) TestAppendComplianceIsIdempotent() {
	ctx := context.Background()
	eventID := uuid.New()
	record := events.ComplianceRecord{
		Timestamp:     time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		TransactionID: "TX1001",
		Subject:       "CUST1001",
		Action:        string(events.EventReportGenerated),
		Decision:      "NON_COMPLIANT",
		Score:         85,
		RequestID:     "req-1",
	}

	s.Require().NoError(s.store.AppendCompliance(ctx, eventID, record))
	s.Require().NoError(s.store.AppendCompliance(ctx, eventID, record))

	var count int
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM screening_compliance WHERE id = $1`, eventID).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *EventStoreSuite) TestAppendSecurityStoresSeverity() {
	ctx := context.Background()
	eventID := uuid.New()
	record := events.SecurityRecord{
		Timestamp: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Subject:   "ALERT_TX1001_20250115103000",
		Action:    string(events.EventAlertCreated),
		Reason:    "risk score exceeded threshold",
		IP:        "203.0.113.9",
		Severity:  string(events.SeverityCritical),
	}

	s.Require().NoError(s.store.AppendSecurity(ctx, eventID, record))

	var severity, ip string
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT severity, ip FROM screening_security WHERE id = $1`, eventID).Scan(&severity, &ip)
	s.Require().NoError(err)
	s.Equal(string(events.SeverityCritical), severity)
	s.Equal("203.0.113.9", ip)
}

func (s *EventStoreSuite) TestAppendOpsIsIdempotent() {
	ctx := context.Background()
	eventID := uuid.New()
	record := events.OpsRecord{
		Timestamp: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Subject:   "TX1001",
		Action:    string(events.EventCacheMiss),
	}

	s.Require().NoError(s.store.AppendOps(ctx, eventID, record))
	s.Require().NoError(s.store.AppendOps(ctx, eventID, record))

	var count int
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM screening_ops WHERE id = $1`, eventID).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

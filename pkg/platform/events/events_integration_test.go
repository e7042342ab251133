//go:build integration

package events_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/internal/platform/kafka"
	kafkaconsumer "vigil/internal/platform/kafka/consumer"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/events/consumer"
	"vigil/pkg/platform/events/publishers/compliance"
	"vigil/pkg/platform/events/publishers/ops"
	"vigil/pkg/platform/events/publishers/security"
	"vigil/pkg/platform/events/relay"
	"vigil/pkg/platform/events/store/postgres"
	"vigil/pkg/testutil/containers"
)

// EventsRoundTripSuite drives events through the full pipeline:
// publisher -> outbox -> relay -> Kafka -> consumer group -> materialized
// tables. Assertions key on unique markers so replayed topic history from
// earlier runs cannot interfere.
type EventsRoundTripSuite struct {
	suite.Suite

	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer

	store    *postgres.Store
	producer *kafka.Producer
	group    *kafkaconsumer.Consumer

	cancelConsumer context.CancelFunc
	consumerDone   chan struct{}
}

func TestEventsRoundTripSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EventsRoundTripSuite))
}

func (s *EventsRoundTripSuite) SetupSuite() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())

	s.store = postgres.New(s.postgres.DB)

	err := kafka.EnsureTopics(ctx, s.redpanda.Brokers, 1, 1,
		events.TopicCompliance, events.TopicSecurity, events.TopicOps)
	s.Require().NoError(err)

	s.producer, err = kafka.NewProducer(s.redpanda.Brokers)
	s.Require().NoError(err)

	router := consumer.NewRouter(logger, nil)
	router.Register(events.TopicCompliance, consumer.NewComplianceHandler(s.store, logger))
	router.Register(events.TopicSecurity, consumer.NewSecurityHandler(s.store, logger))
	router.Register(events.TopicOps, consumer.NewOpsHandler(s.store, logger))

	groupID := "vigil-events-test-" + uuid.NewString()
	topics := []string{events.TopicCompliance, events.TopicSecurity, events.TopicOps}
	s.group, err = kafkaconsumer.New(s.redpanda.Brokers, groupID, topics, router, logger)
	s.Require().NoError(err)

	consumerCtx, cancel := context.WithCancel(context.Background())
	s.cancelConsumer = cancel
	s.consumerDone = make(chan struct{})
	go func() {
		defer close(s.consumerDone)
		_ = s.group.Run(consumerCtx)
	}()
}

func (s *EventsRoundTripSuite) TearDownSuite() {
	if s.cancelConsumer != nil {
		s.cancelConsumer()
	}
	if s.group != nil {
		s.group.Close()
	}
	if s.consumerDone != nil {
		select {
		case <-s.consumerDone:
		case <-time.After(10 * time.Second):
			s.T().Log("consumer did not stop in time")
		}
	}
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *EventsRoundTripSuite) eventually(condition func() bool, msg string) {
	s.Require().Eventually(condition, 20*time.Second, 100*time.Millisecond, msg)
}

func (s *EventsRoundTripSuite) TestComplianceEventMaterializes() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	txID := "TX-" + uuid.NewString()
	pub := compliance.New(s.store, compliance.WithLogger(logger))

	err := pub.Emit(ctx, events.ComplianceEvent{
		TransactionID: txID,
		Subject:       "CUST1001",
		Action:        string(events.EventScreeningCompleted),
		Decision:      "NON_COMPLIANT",
		Score:         85,
		RequestID:     "req-roundtrip",
	})
	s.Require().NoError(err)

	rel := relay.New(s.store, s.producer, logger)
	published, err := rel.DrainOnce(ctx)
	s.Require().NoError(err)
	s.Require().GreaterOrEqual(published, 1)

	s.eventually(func() bool {
		var count int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM screening_compliance WHERE transaction_id = $1`, txID).Scan(&count)
		return err == nil && count == 1
	}, "compliance event should reach screening_compliance")

	s.eventually(func() bool {
		var count int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM screening_events WHERE transaction_id = $1`, txID).Scan(&count)
		return err == nil && count == 1
	}, "compliance event should reach the screening_events timeline")

	var decision string
	var score float64
	err = s.postgres.DB.QueryRowContext(ctx,
		`SELECT decision, score FROM screening_compliance WHERE transaction_id = $1`, txID).
		Scan(&decision, &score)
	s.Require().NoError(err)
	s.Equal("NON_COMPLIANT", decision)
	s.InDelta(85, score, 0.001)
}

func (s *EventsRoundTripSuite) TestSecurityEventMaterializes() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	subject := "ALERT-" + uuid.NewString()
	pub := security.NewPublisher(s.producer, logger, security.WithFlushInterval(50*time.Millisecond))
	defer pub.Close()

	pub.Emit(events.SecurityEvent{
		Subject:  subject,
		Action:   string(events.EventAlertCreated),
		Reason:   "risk score exceeded threshold",
		Severity: events.SeverityCritical,
	})

	s.eventually(func() bool {
		var severity string
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT severity FROM screening_security WHERE subject = $1`, subject).Scan(&severity)
		return err == nil && severity == string(events.SeverityCritical)
	}, "security event should reach screening_security")
}

func (s *EventsRoundTripSuite) TestOpsEventMaterializes() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	subject := fmt.Sprintf("TX-OPS-%s", uuid.NewString())
	tracker := ops.NewTracker(s.producer, logger)

	tracker.Track(ctx, events.OpsEvent{
		Subject:   subject,
		Action:    string(events.EventScreeningStarted),
		RequestID: "req-ops",
	})

	s.eventually(func() bool {
		var count int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM screening_ops WHERE subject = $1`, subject).Scan(&count)
		return err == nil && count == 1
	}, "ops event should reach screening_ops")
}

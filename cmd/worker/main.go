// Command worker runs the event-pipeline background jobs: the outbox
// relay that moves persisted events onto Kafka, and the consumer group
// that materializes all three event streams into their query tables.
// The worker is deployed beside the server; neither blocks the other.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"vigil/internal/platform/config"
	"vigil/internal/platform/kafka"
	kafkaconsumer "vigil/internal/platform/kafka/consumer"
	"vigil/internal/platform/logger"
	"vigil/pkg/platform/events"
	eventsconsumer "vigil/pkg/platform/events/consumer"
	"vigil/pkg/platform/events/relay"
	eventspostgres "vigil/pkg/platform/events/store/postgres"
)

const (
	topicPartitions  = 3
	topicReplication = 1

	bootstrapTimeout = 30 * time.Second
)

func main() {
	cfg := config.FromEnv()
	log := logger.New("vigil-worker")

	if err := run(cfg, log); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Unlike the server, the worker has no degraded mode: its whole job
	// is moving events between the outbox and Kafka.
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	topics := []string{events.TopicCompliance, events.TopicSecurity, events.TopicOps}

	bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	if err := kafka.EnsureTopics(bootstrapCtx, cfg.Kafka.Brokers, topicPartitions, topicReplication, topics...); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return fmt.Errorf("connect kafka producer: %w", err)
	}
	defer producer.Close()

	store := eventspostgres.New(db)
	outboxRelay := relay.New(store, producer, log)

	router := eventsconsumer.NewRouter(log, nil)
	router.Register(events.TopicCompliance, eventsconsumer.NewComplianceHandler(store, log))
	router.Register(events.TopicSecurity, eventsconsumer.NewSecurityHandler(store, log))
	router.Register(events.TopicOps, eventsconsumer.NewOpsHandler(store, log))

	streamConsumer, err := kafkaconsumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, topics, router, log)
	if err != nil {
		return fmt.Errorf("build consumer: %w", err)
	}
	defer streamConsumer.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("outbox relay started")
		if err := outboxRelay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("relay: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("event consumer started", "group", cfg.Kafka.ConsumerGroup)
		if err := streamConsumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}

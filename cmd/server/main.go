// Command server runs the vigil screening API: the four-stage screening
// pipeline, the analyst review surface, and the operational endpoints.
// main wires adapters from configuration and keeps the server lifecycle
// small; business logic lives in the internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "vigil/internal/jwt_token"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/kafka"
	"vigil/internal/platform/logger"
	httpmetrics "vigil/internal/platform/metrics"
	"vigil/internal/platform/middleware"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/review"
	reviewhandler "vigil/internal/review/handler"
	"vigil/internal/screening/adapters/gemini"
	"vigil/internal/screening/adapters/ledger"
	"vigil/internal/screening/adapters/reasoner"
	"vigil/internal/screening/adapters/webhook"
	"vigil/internal/screening/alert"
	"vigil/internal/screening/audit"
	"vigil/internal/screening/enrich"
	screeninghandler "vigil/internal/screening/handler"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/ports"
	"vigil/internal/screening/risk"
	"vigil/internal/screening/store/cache"
	storememory "vigil/internal/screening/store/memory"
	storepostgres "vigil/internal/screening/store/postgres"
	"vigil/internal/screening/workflow"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/events/publishers/compliance"
	"vigil/pkg/platform/events/publishers/ops"
	"vigil/pkg/platform/events/publishers/security"
	eventsmemory "vigil/pkg/platform/events/store/memory"
	eventspostgres "vigil/pkg/platform/events/store/postgres"
)

const shutdownTimeout = 15 * time.Second

// cacheMissSampleRate keeps one in ten cache_miss events; every cold
// lookup emits one and full volume would dominate the ops topic.
const cacheMissSampleRate = 0.1

func main() {
	cfg := config.FromEnv()
	log := logger.New("vigil")

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpM := httpmetrics.New()
	pipeM := metrics.New()

	// Service database: alerts, reports, and the event outbox. Absent a
	// DSN everything runs in process memory for local development.
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	var (
		alertStore  ports.AlertStore
		reportStore ports.ReportStore
		eventStore  events.Store
	)
	if db != nil {
		alertStore = storepostgres.NewAlertStore(db)
		reportStore = storepostgres.NewReportStore(db)
		eventStore = eventspostgres.New(db)
	} else {
		alertStore = storememory.NewInMemoryAlertStore()
		reportStore = storememory.NewInMemoryReportStore()
		eventStore = eventsmemory.NewInMemoryStore()
	}

	compliancePub := compliance.New(eventStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	// Kafka carries the security and ops streams. Compliance events go
	// through the outbox regardless; the relay worker moves them out.
	var (
		securityPub *security.Publisher
		opsTracker  *ops.Tracker
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()

		securityPub = security.NewPublisher(producer, log)
		defer securityPub.Close()

		sampler := ops.NewSampler(1.0)
		sampler.SetRate(string(events.EventCacheMiss), cacheMissSampleRate)
		opsTracker = ops.NewTracker(producer, log,
			ops.WithSampler(sampler),
			ops.WithCircuitBreaker(ops.NewCircuitBreaker(5, 30*time.Second)),
			ops.WithMetrics(ops.NewMetrics()),
		)
	} else {
		log.Warn("no kafka brokers configured, security and ops events disabled")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerStore, cleanupLedger, err := buildLedger(ctx, cfg.Ledger, log)
	if err != nil {
		return err
	}
	defer cleanupLedger()

	if redisClient != nil {
		cacheOpts := []cache.Option{
			cache.WithTTL(cfg.Screening.ProfileCacheTTL),
			cache.WithLogger(log),
			cache.WithMetrics(pipeM),
		}
		if opsTracker != nil {
			cacheOpts = append(cacheOpts, cache.WithOpsEvents(opsTracker))
		}
		ledgerStore, err = cache.New(ledgerStore, redisClient.Client, cacheOpts...)
		if err != nil {
			return fmt.Errorf("wrap ledger with cache: %w", err)
		}
	}

	analysisReasoner, geminiLive, cleanupReasoner, err := buildReasoner(ctx, cfg.Gemini, log)
	if err != nil {
		return err
	}
	defer cleanupReasoner()

	var dispatcher ports.AlertDispatcher
	if cfg.Webhook.URL != "" {
		dispatcher, err = webhook.NewDispatcher(cfg.Webhook.URL, webhook.WithAPIKey(cfg.Webhook.APIKey))
		if err != nil {
			return fmt.Errorf("build webhook dispatcher: %w", err)
		}
	} else {
		dispatcher = webhook.NewLogDispatcher(log)
	}

	enricher, err := enrich.New(ledgerStore,
		enrich.WithLogger(log),
		enrich.WithMetrics(pipeM),
		enrich.WithFetchTimeout(cfg.Screening.FetchTimeout),
		enrich.WithHighRiskCountries(cfg.Screening.HighRiskCountries),
	)
	if err != nil {
		return fmt.Errorf("build enrichment stage: %w", err)
	}

	assessor, err := risk.New(analysisReasoner,
		risk.WithLogger(log),
		risk.WithMetrics(pipeM),
		risk.WithReasonerTimeout(cfg.Screening.ReasonerTimeout),
	)
	if err != nil {
		return fmt.Errorf("build risk stage: %w", err)
	}

	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(pipeM),
		audit.WithComplianceEvents(compliancePub),
	}
	if geminiLive {
		auditOpts = append(auditOpts, audit.WithReasoner(analysisReasoner))
	}
	auditor, err := audit.New(reportStore, auditOpts...)
	if err != nil {
		return fmt.Errorf("build audit stage: %w", err)
	}

	alertOpts := []alert.Option{
		alert.WithLogger(log),
		alert.WithMetrics(pipeM),
		alert.WithDispatchTimeout(cfg.Screening.DispatchTimeout),
	}
	if securityPub != nil {
		alertOpts = append(alertOpts, alert.WithSecurityEvents(securityPub))
	}
	alerter, err := alert.New(alertStore, dispatcher, alertOpts...)
	if err != nil {
		return fmt.Errorf("build alert stage: %w", err)
	}

	workflowOpts := []workflow.Option{
		workflow.WithLogger(log),
		workflow.WithMetrics(pipeM),
	}
	if opsTracker != nil {
		workflowOpts = append(workflowOpts, workflow.WithOpsEvents(opsTracker))
	}
	screener, err := workflow.New(enricher, assessor, auditor, alerter, workflowOpts...)
	if err != nil {
		return fmt.Errorf("build workflow: %w", err)
	}

	reviewOpts := []review.Option{review.WithLogger(log)}
	if securityPub != nil {
		reviewOpts = append(reviewOpts, review.WithSecurityEvents(securityPub))
	}
	reviewSvc, err := review.NewService(alertStore, auditor, reviewOpts...)
	if err != nil {
		return fmt.Errorf("build review service: %w", err)
	}

	var authSecurity middleware.SecurityEvents
	if securityPub != nil {
		authSecurity = securityPub
	}

	screeningOpts := []screeninghandler.Option{
		screeninghandler.WithBatchLimit(cfg.Screening.BatchConcurrency),
	}
	if cfg.Server.ServiceKeyHash != "" {
		screeningOpts = append(screeningOpts, screeninghandler.WithServiceKey(cfg.Server.ServiceKeyHash))
	} else {
		log.Warn("no service key hash configured, batch screening disabled")
	}
	if authSecurity != nil {
		screeningOpts = append(screeningOpts, screeninghandler.WithSecurityEvents(authSecurity))
	}
	if opsTracker != nil {
		screeningOpts = append(screeningOpts, screeninghandler.WithOpsEvents(opsTracker))
	}
	screeningH := screeninghandler.New(screener, log, httpM, screeningOpts...)

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	reviewH := reviewhandler.New(reviewSvc, log, httpM, jwttoken.NewJWTServiceAdapter(tokens), authSecurity)

	router := chi.NewRouter()
	screeningH.Register(router)
	reviewH.Register(router)
	router.Get("/healthz", handleHealth(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("vigil listening", "addr", cfg.Server.Addr, "ledger_mode", cfg.Ledger.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildLedger constructs the upstream data-store client for the
// configured mode. The returned cleanup releases backend resources.
func buildLedger(ctx context.Context, cfg config.Ledger, log *slog.Logger) (ports.LedgerStore, func(), error) {
	switch cfg.Mode {
	case "http":
		client, err := ledger.NewClient(cfg.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("build ledger client: %w", err)
		}
		return client, func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping ledger: %w", err)
		}
		return ledger.NewPgxStore(pool), pool.Close, nil
	case "memory":
		log.Warn("ledger running in memory mode with seeded sample data")
		return ledger.NewSeededStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger mode %q", cfg.Mode)
	}
}

// buildReasoner returns the analysis backend, whether it is a live
// model, and a cleanup for its connection.
func buildReasoner(ctx context.Context, cfg config.Gemini, log *slog.Logger) (ports.Reasoner, bool, func(), error) {
	if cfg.APIKey == "" {
		log.Warn("no gemini API key configured, assessments run rule-only")
		return reasoner.Disabled{}, false, func() {}, nil
	}

	model, err := gemini.New(ctx, cfg.APIKey, cfg.Model, gemini.WithLogger(log))
	if err != nil {
		return nil, false, nil, fmt.Errorf("build gemini reasoner: %w", err)
	}
	guarded, err := reasoner.NewCircuit(model, reasoner.WithLogger(log))
	if err != nil {
		model.Close()
		return nil, false, nil, fmt.Errorf("wrap reasoner circuit: %w", err)
	}
	cleanup := func() {
		if err := model.Close(); err != nil {
			log.Warn("close gemini client", "error", err)
		}
	}
	return guarded, true, cleanup, nil
}

// handleHealth reports liveness plus the health of attached backends.
// Optional dependencies that were never configured are not checked.
func handleHealth(db *sql.DB, cache *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, `{"status":"database unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if cache != nil {
			if err := cache.Health(ctx); err != nil {
				http.Error(w, `{"status":"cache unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}


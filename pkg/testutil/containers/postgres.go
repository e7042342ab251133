//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema mirrors the production migrations closely enough for store
// tests. The ledger_* tables stand in for the external data store so the
// pgx adapter can be exercised against real SQL.
const schema = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
	alert_id        TEXT PRIMARY KEY,
	transaction_id  TEXT NOT NULL,
	customer_id     TEXT NOT NULL,
	severity        TEXT NOT NULL,
	status          TEXT NOT NULL,
	decision_action TEXT NOT NULL,
	risk_score      DOUBLE PRECISION NOT NULL,
	factors         JSONB NOT NULL DEFAULT '[]',
	reasoning       TEXT NOT NULL DEFAULT '',
	assigned_to     TEXT NOT NULL DEFAULT '',
	notes           JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_status ON fraud_alerts (status, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_reports (
	report_id                    TEXT PRIMARY KEY,
	transaction_id               TEXT NOT NULL,
	compliance_rating            TEXT NOT NULL,
	requires_immediate_action    BOOLEAN NOT NULL,
	requires_enhanced_monitoring BOOLEAN NOT NULL,
	requires_regulatory_filing   BOOLEAN NOT NULL,
	risk_score                   DOUBLE PRECISION NOT NULL,
	factors_identified           JSONB NOT NULL DEFAULT '[]',
	recommendations              JSONB NOT NULL DEFAULT '[]',
	supplementary_notes          TEXT NOT NULL DEFAULT '',
	generated_at                 TIMESTAMPTZ NOT NULL,
	next_review_date             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_reports_generated ON audit_reports (generated_at DESC);

CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_unprocessed ON outbox (created_at) WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS screening_events (
	id             UUID PRIMARY KEY,
	category       TEXT NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	subject        TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	decision       TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	score          DOUBLE PRECISION,
	request_id     TEXT NOT NULL DEFAULT '',
	actor_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS screening_compliance (
	id             UUID PRIMARY KEY,
	timestamp      TIMESTAMPTZ NOT NULL,
	transaction_id TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	decision       TEXT NOT NULL DEFAULT '',
	score          DOUBLE PRECISION,
	request_id     TEXT NOT NULL DEFAULT '',
	actor_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS screening_security (
	id         UUID NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	ip         TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	actor_id   TEXT NOT NULL DEFAULT '',
	severity   TEXT NOT NULL DEFAULT 'info',
	PRIMARY KEY (id)
);

CREATE TABLE IF NOT EXISTS screening_ops (
	id         UUID NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (id, timestamp)
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	transaction_id      TEXT PRIMARY KEY,
	customer_id         TEXT NOT NULL,
	amount              DOUBLE PRECISION NOT NULL,
	currency            TEXT NOT NULL,
	destination_country TEXT NOT NULL,
	timestamp           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_tx_customer ON ledger_transactions (customer_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_tx_destination ON ledger_transactions (destination_country, timestamp DESC);

CREATE TABLE IF NOT EXISTS ledger_customers (
	customer_id      TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL,
	account_age_days INTEGER NOT NULL,
	device_trust     DOUBLE PRECISION NOT NULL,
	past_fraud       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS ledger_predictions (
	transaction_id TEXT PRIMARY KEY,
	score          DOUBLE PRECISION NOT NULL,
	model_version  TEXT NOT NULL
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with an
// open database/sql pool and the applied schema.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL, waits for readiness, and
// applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vigil_test"),
		tcpostgres.WithUsername("vigil"),
		tcpostgres.WithPassword("vigil"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres pool: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Shared via the singleton Manager; Ryuk terminates the container.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Call from SetupTest to
// isolate suites sharing the container.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

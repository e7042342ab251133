//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"vigil/internal/screening/adapters/ledger"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

type PgxLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	pool     *pgxpool.Pool
	store    *ledger.PgxStore
}

func TestPgxLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PgxLedgerSuite))
}

func (s *PgxLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	pool, err := pgxpool.New(context.Background(), s.postgres.DSN)
	s.Require().NoError(err)
	s.pool = pool
	s.store = ledger.NewPgxStore(pool)
}

func (s *PgxLedgerSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PgxLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"ledger_transactions", "ledger_customers", "ledger_predictions"))

	base := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_customers (customer_id, name, country, account_age_days, device_trust, past_fraud)
		VALUES ('CUST1001', 'John Smith', 'US', 25, 0.3, TRUE)`)
	s.Require().NoError(err)

	for _, row := range []struct {
		id, dest string
		amount   float64
		at       time.Time
	}{
		{"TX1001", "IR", 15000, base},
		{"TX1005", "US", 900, base.Add(-72 * time.Hour)},
		{"TX1008", "IR", 2400, base.Add(-24 * time.Hour)},
	} {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO ledger_transactions (transaction_id, customer_id, amount, currency, destination_country, timestamp)
			VALUES ($1, 'CUST1001', $2, 'USD', $3, $4)`,
			row.id, row.amount, row.dest, row.at)
		s.Require().NoError(err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_predictions (transaction_id, score, model_version)
		VALUES ('TX1001', 0.87, 'fraud-detect-v2')`)
	s.Require().NoError(err)
}

func (s *PgxLedgerSuite) TestTransactionRoundTrip() {
	tx, err := s.store.GetTransaction(context.Background(), "TX1001")
	s.Require().NoError(err)

	s.EqualValues("CUST1001", tx.CustomerID)
	s.InDelta(15000, tx.Amount, 0.001)
	s.Equal("USD", tx.Currency)
	s.Equal("IR", tx.DestinationCountry)
}

func (s *PgxLedgerSuite) TestTransactionNotFound() {
	_, err := s.store.GetTransaction(context.Background(), "TXMISSING")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PgxLedgerSuite) TestCustomerRoundTrip() {
	profile, err := s.store.GetCustomer(context.Background(), "CUST1001")
	s.Require().NoError(err)

	s.Equal("John Smith", profile.Name)
	s.Equal("US", profile.Country)
	s.Equal(25, profile.AccountAgeDays)
	s.InDelta(0.3, profile.DeviceTrustScore, 0.001)
	s.True(profile.PastFraud)
}

func (s *PgxLedgerSuite) TestCustomerNotFound() {
	_, err := s.store.GetCustomer(context.Background(), "CUSTMISSING")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PgxLedgerSuite) TestHistoryNewestFirst() {
	history, err := s.store.GetTransactionsByCustomer(context.Background(), "CUST1001")
	s.Require().NoError(err)
	s.Require().Len(history, 3)

	s.EqualValues("TX1001", history[0].ID)
	s.EqualValues("TX1008", history[1].ID)
	s.EqualValues("TX1005", history[2].ID)
}

func (s *PgxLedgerSuite) TestDestinationFilteredAndOrdered() {
	history, err := s.store.GetTransactionsByDestination(context.Background(), "IR")
	s.Require().NoError(err)
	s.Require().Len(history, 2)

	s.EqualValues("TX1001", history[0].ID)
	s.EqualValues("TX1008", history[1].ID)
}

func (s *PgxLedgerSuite) TestPredictionRoundTrip() {
	prediction, err := s.store.GetPrediction(context.Background(), "TX1001")
	s.Require().NoError(err)
	s.InDelta(0.87, prediction.Score, 0.001)
	s.Equal("fraud-detect-v2", prediction.ModelVersion)
}

func (s *PgxLedgerSuite) TestPredictionAbsent() {
	_, err := s.store.GetPrediction(context.Background(), "TX1005")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

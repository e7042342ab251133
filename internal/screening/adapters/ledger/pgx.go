package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/screening"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// destinationHistoryLimit caps pattern-context reads. The enrichment
// stage only needs recent traffic, not the full destination ledger.
const destinationHistoryLimit = 100

const transactionColumns = `transaction_id, customer_id, amount, currency, destination_country, timestamp`

// PgxStore reads ledger records straight from the ledger database. For
// deployments colocated with the ledger, it avoids the HTTP hop. The
// pipeline never writes through it.
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore creates a direct-read ledger store over the given pool.
func NewPgxStore(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool}
}

// GetTransaction retrieves one transaction by ID.
func (s *PgxStore) GetTransaction(ctx context.Context, txID id.TransactionID) (*screening.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE transaction_id = $1`

	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, txID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", txID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return tx, nil
}

// GetCustomer retrieves the customer profile.
func (s *PgxStore) GetCustomer(ctx context.Context, customerID id.CustomerID) (*screening.CustomerProfile, error) {
	query := `
		SELECT customer_id, name, country, account_age_days, device_trust, past_fraud
		FROM ledger_customers
		WHERE customer_id = $1`

	var (
		profile  screening.CustomerProfile
		idString string
	)
	err := s.pool.QueryRow(ctx, query, customerID.String()).Scan(
		&idString,
		&profile.Name,
		&profile.Country,
		&profile.AccountAgeDays,
		&profile.DeviceTrustScore,
		&profile.PastFraud,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query customer: %w", err)
	}

	profile.CustomerID = id.CustomerID(idString)
	return &profile, nil
}

// GetTransactionsByCustomer retrieves the customer's history, newest
// first.
func (s *PgxStore) GetTransactionsByCustomer(ctx context.Context, customerID id.CustomerID) ([]screening.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE customer_id = $1
		ORDER BY timestamp DESC`

	rows, err := s.pool.Query(ctx, query, customerID.String())
	if err != nil {
		return nil, fmt.Errorf("query customer history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetTransactionsByDestination retrieves recent transactions to the
// destination country.
func (s *PgxStore) GetTransactionsByDestination(ctx context.Context, country string) ([]screening.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE destination_country = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, country, destinationHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("query destination history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetPrediction retrieves the advisory model score, if one exists.
func (s *PgxStore) GetPrediction(ctx context.Context, txID id.TransactionID) (*screening.MLPrediction, error) {
	query := `SELECT transaction_id, score, model_version FROM ledger_predictions WHERE transaction_id = $1`

	var (
		prediction screening.MLPrediction
		idString   string
	)
	err := s.pool.QueryRow(ctx, query, txID.String()).Scan(&idString, &prediction.Score, &prediction.ModelVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prediction for %s: %w", txID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query prediction: %w", err)
	}

	prediction.TransactionID = id.TransactionID(idString)
	return &prediction, nil
}

func scanTransaction(row pgx.Row) (*screening.Transaction, error) {
	var (
		tx         screening.Transaction
		txID       string
		customerID string
	)
	err := row.Scan(&txID, &customerID, &tx.Amount, &tx.Currency, &tx.DestinationCountry, &tx.Timestamp)
	if err != nil {
		return nil, err
	}

	tx.ID = id.TransactionID(txID)
	tx.CustomerID = id.CustomerID(customerID)
	return &tx, nil
}

func collectTransactions(rows pgx.Rows) ([]screening.Transaction, error) {
	var txs []screening.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}

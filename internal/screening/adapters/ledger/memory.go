package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigil/internal/screening"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// MemoryStore is an in-memory LedgerStore with deterministic data and a
// configurable latency to mimic real-world calls. It backs unit tests
// and demo deployments that have no upstream ledger.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[id.TransactionID]screening.Transaction
	customers    map[id.CustomerID]screening.CustomerProfile
	predictions  map[id.TransactionID]screening.MLPrediction

	latency time.Duration
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLatency makes every lookup wait the given duration, honoring
// context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.latency = d
	}
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		transactions: make(map[id.TransactionID]screening.Transaction),
		customers:    make(map[id.CustomerID]screening.CustomerProfile),
		predictions:  make(map[id.TransactionID]screening.MLPrediction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeededStore creates an in-memory ledger preloaded with the sample
// dataset: one high-risk case (TX1001, sanctions destination, new
// account, low device trust, prior fraud), one elevated case (TX1004,
// large amount to a high-risk country from an established customer),
// and routine domestic traffic for history averages.
func NewSeededStore(opts ...MemoryOption) *MemoryStore {
	s := NewMemoryStore(opts...)

	base := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

	s.AddCustomer(screening.CustomerProfile{
		CustomerID:       "CUST1001",
		Name:             "John Smith",
		Country:          "US",
		AccountAgeDays:   25,
		DeviceTrustScore: 0.3,
		PastFraud:        true,
	})
	s.AddCustomer(screening.CustomerProfile{
		CustomerID:       "CUST1002",
		Name:             "Maria Alvarez",
		Country:          "US",
		AccountAgeDays:   1200,
		DeviceTrustScore: 0.92,
	})
	s.AddCustomer(screening.CustomerProfile{
		CustomerID:       "CUST1003",
		Name:             "Wei Chen",
		Country:          "SG",
		AccountAgeDays:   210,
		DeviceTrustScore: 0.55,
	})

	for _, tx := range []screening.Transaction{
		{ID: "TX1001", CustomerID: "CUST1001", Amount: 15000, Currency: "USD", DestinationCountry: "IR", Timestamp: base},
		{ID: "TX1002", CustomerID: "CUST1002", Amount: 450, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-2 * time.Hour)},
		{ID: "TX1003", CustomerID: "CUST1002", Amount: 1800, Currency: "USD", DestinationCountry: "GB", Timestamp: base.Add(-26 * time.Hour)},
		{ID: "TX1004", CustomerID: "CUST1003", Amount: 12000, Currency: "USD", DestinationCountry: "NG", Timestamp: base.Add(-4 * time.Hour)},
		{ID: "TX1005", CustomerID: "CUST1001", Amount: 900, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-72 * time.Hour)},
		{ID: "TX1006", CustomerID: "CUST1002", Amount: 380, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-96 * time.Hour)},
	} {
		s.AddTransaction(tx)
	}

	s.AddPrediction(screening.MLPrediction{TransactionID: "TX1001", Score: 0.87, ModelVersion: "fraud-detect-v2"})
	s.AddPrediction(screening.MLPrediction{TransactionID: "TX1004", Score: 0.55, ModelVersion: "fraud-detect-v2"})

	return s
}

// AddTransaction inserts or replaces a transaction.
func (s *MemoryStore) AddTransaction(tx screening.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
}

// AddCustomer inserts or replaces a customer profile.
func (s *MemoryStore) AddCustomer(profile screening.CustomerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[profile.CustomerID] = profile
}

// AddPrediction inserts or replaces an advisory prediction.
func (s *MemoryStore) AddPrediction(prediction screening.MLPrediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[prediction.TransactionID] = prediction
}

// GetTransaction retrieves one transaction by ID.
func (s *MemoryStore) GetTransaction(ctx context.Context, txID id.TransactionID) (*screening.Transaction, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, sentinel.ErrNotFound)
	}
	return &tx, nil
}

// GetCustomer retrieves the customer profile.
func (s *MemoryStore) GetCustomer(ctx context.Context, customerID id.CustomerID) (*screening.CustomerProfile, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return &profile, nil
}

// GetTransactionsByCustomer retrieves the customer's history, newest
// first.
func (s *MemoryStore) GetTransactionsByCustomer(ctx context.Context, customerID id.CustomerID) ([]screening.Transaction, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []screening.Transaction
	for _, tx := range s.transactions {
		if tx.CustomerID == customerID {
			txs = append(txs, tx)
		}
	}
	sortNewestFirst(txs)
	return txs, nil
}

// GetTransactionsByDestination retrieves transactions to the destination
// country, newest first.
func (s *MemoryStore) GetTransactionsByDestination(ctx context.Context, country string) ([]screening.Transaction, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []screening.Transaction
	for _, tx := range s.transactions {
		if tx.DestinationCountry == country {
			txs = append(txs, tx)
		}
	}
	sortNewestFirst(txs)
	return txs, nil
}

// GetPrediction retrieves the advisory model score, if one exists.
func (s *MemoryStore) GetPrediction(ctx context.Context, txID id.TransactionID) (*screening.MLPrediction, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	prediction, ok := s.predictions[txID]
	if !ok {
		return nil, fmt.Errorf("prediction for %s: %w", txID, sentinel.ErrNotFound)
	}
	return &prediction, nil
}

func (s *MemoryStore) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sortNewestFirst(txs []screening.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
}

// Package ledger defines the wire contract of the upstream ledger
// data-store API. Both the screening service's HTTP adapter and the mock
// ledger service build against these types, so the two sides cannot
// drift apart.
//
// The module is intentionally dependency-free: plain structs, JSON tags,
// no domain types. Each side maps to its own domain model at the edge.
package ledger

import "time"

// Transaction is one ledger transaction as served by
// GET /transactions/{id}.
type Transaction struct {
	TransactionID      string    `json:"transaction_id"`
	CustomerID         string    `json:"customer_id"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	DestinationCountry string    `json:"destination_country"`
	Timestamp          time.Time `json:"timestamp"`
}

// Customer is the ledger's customer profile as served by
// GET /customers/{id}.
type Customer struct {
	CustomerID       string  `json:"customer_id"`
	Name             string  `json:"name"`
	Country          string  `json:"country"`
	AccountAgeDays   int     `json:"account_age_days"`
	DeviceTrustScore float64 `json:"device_trust_score"`
	PastFraud        bool    `json:"past_fraud"`
}

// Prediction is the advisory model score for a transaction as served by
// GET /transactions/{id}/prediction. Absent when the model service has
// not scored the transaction.
type Prediction struct {
	TransactionID string  `json:"transaction_id"`
	Score         float64 `json:"score"`
	ModelVersion  string  `json:"model_version"`
}

// TransactionList wraps history listings served by
// GET /customers/{id}/transactions and
// GET /destinations/{country}/transactions. Newest first.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
}

// Error is the ledger API's error envelope. Code is machine-readable
// ("not_found", "internal"); Message is for operators.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

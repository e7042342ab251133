// Package ports declares the collaborator interfaces the screening
// pipeline consumes. Stages depend on these seams, never on HTTP, SQL,
// or SDK clients directly, so adapters and mocks swap freely.
package ports

import (
	"context"

	"vigil/internal/screening"
	id "vigil/pkg/domain"
)

// LedgerStore is the upstream transaction/customer data store.
// Implementations return sentinel.ErrNotFound (wrapped) when a record
// does not exist.
type LedgerStore interface {
	// GetTransaction retrieves one transaction by ID.
	GetTransaction(ctx context.Context, txID id.TransactionID) (*screening.Transaction, error)

	// GetCustomer retrieves the owning customer's profile.
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*screening.CustomerProfile, error)

	// GetTransactionsByCustomer retrieves the customer's transaction
	// history, newest first.
	GetTransactionsByCustomer(ctx context.Context, customerID id.CustomerID) ([]screening.Transaction, error)

	// GetTransactionsByDestination retrieves recent transactions to the
	// given destination country, for pattern context.
	GetTransactionsByDestination(ctx context.Context, country string) ([]screening.Transaction, error)

	// GetPrediction retrieves the advisory model score for a
	// transaction, if one was computed.
	GetPrediction(ctx context.Context, txID id.TransactionID) (*screening.MLPrediction, error)
}

// Reasoner is the external natural-language reasoning service. It is
// unreliable by contract: callers wrap every Run in a timeout and must
// degrade gracefully on failure.
type Reasoner interface {
	// Run submits one prompt and returns the narrative text.
	Run(ctx context.Context, prompt string) (string, error)
}

// AlertDispatcher delivers alerts to the downstream case-management
// system. Success means the remote acknowledged the alert.
type AlertDispatcher interface {
	SendAlert(ctx context.Context, alert screening.AlertRecord) error
}

// AlertFilter narrows alert listings. Zero values match everything.
type AlertFilter struct {
	Status   screening.AlertStatus
	Severity screening.AlertSeverity
	Limit    int
}

// AlertStore persists alert records for the review workflow.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert screening.AlertRecord) error

	// GetAlert returns sentinel.ErrNotFound (wrapped) for unknown IDs.
	GetAlert(ctx context.Context, alertID id.AlertID) (*screening.AlertRecord, error)

	// ListAlerts returns alerts newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]screening.AlertRecord, error)

	// TransitionAlert moves an alert from one status to another,
	// appending a note and refreshing the update timestamp. It returns
	// sentinel.ErrInvalidState (wrapped) when the alert is not currently
	// in the from status.
	TransitionAlert(ctx context.Context, alertID id.AlertID, from, to screening.AlertStatus, note string) (*screening.AlertRecord, error)
}

// ReportStore persists audit reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report screening.AuditReport) error

	// GetReport returns sentinel.ErrNotFound (wrapped) for unknown IDs.
	GetReport(ctx context.Context, reportID id.ReportID) (*screening.AuditReport, error)

	// ListReports returns reports newest first, capped at limit when
	// limit > 0.
	ListReports(ctx context.Context, limit int) ([]screening.AuditReport, error)
}

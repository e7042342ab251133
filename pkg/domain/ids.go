// Package domain holds typed identifier primitives shared across features.
// Construct values via the Parse* functions at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Upstream ledger identifiers (transaction, customer) are short uppercase
// alphanumeric codes such as TX1001 or CUST2002. They are assigned by the
// ledger store and opaque to this service beyond the shape check below.
const (
	minLedgerIDLen = 2
	maxLedgerIDLen = 64
)

// TransactionID identifies a transaction in the upstream ledger store.
type TransactionID string

// CustomerID identifies a customer in the upstream ledger store.
type CustomerID string

// AlertID identifies a fraud alert produced by this service.
// Format: ALERT_<transaction>_<yyyymmddHHMMSS>.
type AlertID string

// ReportID identifies a compliance audit report produced by this service.
// Format: AUDIT_<transaction>_<yyyymmddHHMMSS>.
type ReportID string

func validLedgerID(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(s) < minLedgerIDLen || len(s) > maxLedgerIDLen {
		return fmt.Errorf("identifier length %d outside [%d,%d]", len(s), minLedgerIDLen, maxLedgerIDLen)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return fmt.Errorf("identifier contains invalid character %q", r)
		}
	}
	return nil
}

// ParseTransactionID validates and returns a TransactionID.
func ParseTransactionID(s string) (TransactionID, error) {
	s = strings.TrimSpace(s)
	if err := validLedgerID(s); err != nil {
		return "", fmt.Errorf("invalid transaction id: %w", err)
	}
	return TransactionID(s), nil
}

// ParseCustomerID validates and returns a CustomerID.
func ParseCustomerID(s string) (CustomerID, error) {
	s = strings.TrimSpace(s)
	if err := validLedgerID(s); err != nil {
		return "", fmt.Errorf("invalid customer id: %w", err)
	}
	return CustomerID(s), nil
}

func (id TransactionID) String() string { return string(id) }
func (id TransactionID) IsNil() bool    { return id == "" }

func (id CustomerID) String() string { return string(id) }
func (id CustomerID) IsNil() bool    { return id == "" }

// NewAlertID derives the alert identifier for a transaction at a point in time.
// The timestamp component keeps re-runs of the same transaction distinct.
func NewAlertID(tx TransactionID, at time.Time) AlertID {
	return AlertID(fmt.Sprintf("ALERT_%s_%s", tx, at.UTC().Format("20060102150405")))
}

// NewReportID derives the audit report identifier for a transaction at a point in time.
func NewReportID(tx TransactionID, at time.Time) ReportID {
	return ReportID(fmt.Sprintf("AUDIT_%s_%s", tx, at.UTC().Format("20060102150405")))
}

// ParseAlertID validates the ALERT_<tx>_<ts> shape.
func ParseAlertID(s string) (AlertID, error) {
	if err := validDerivedID(s, "ALERT_"); err != nil {
		return "", fmt.Errorf("invalid alert id: %w", err)
	}
	return AlertID(s), nil
}

// ParseReportID validates the AUDIT_<tx>_<ts> shape.
func ParseReportID(s string) (ReportID, error) {
	if err := validDerivedID(s, "AUDIT_"); err != nil {
		return "", fmt.Errorf("invalid report id: %w", err)
	}
	return ReportID(s), nil
}

func validDerivedID(s, prefix string) error {
	if !strings.HasPrefix(s, prefix) {
		return fmt.Errorf("missing %s prefix", strings.TrimSuffix(prefix, "_"))
	}
	rest := strings.TrimPrefix(s, prefix)
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return fmt.Errorf("missing transaction or timestamp component")
	}
	if err := validLedgerID(rest[:i]); err != nil {
		return err
	}
	ts := rest[i+1:]
	if _, err := time.Parse("20060102150405", ts); err != nil {
		return fmt.Errorf("bad timestamp component %q", ts)
	}
	return nil
}

func (id AlertID) String() string { return string(id) }
func (id AlertID) IsNil() bool    { return id == "" }

func (id ReportID) String() string { return string(id) }
func (id ReportID) IsNil() bool    { return id == "" }

// Transaction extracts the transaction component from an alert identifier.
// Returns the empty ID when the value does not have the derived shape.
func (id AlertID) Transaction() TransactionID {
	return derivedTransaction(string(id), "ALERT_")
}

// Transaction extracts the transaction component from a report identifier.
func (id ReportID) Transaction() TransactionID {
	return derivedTransaction(string(id), "AUDIT_")
}

func derivedTransaction(s, prefix string) TransactionID {
	rest := strings.TrimPrefix(s, prefix)
	if rest == s {
		return ""
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return ""
	}
	return TransactionID(rest[:i])
}

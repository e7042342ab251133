// Package postgres persists alert records and audit reports in
// PostgreSQL. Factor and note collections are stored as JSONB; status
// transitions are compare-and-set on the current status so concurrent
// reviewers cannot double-apply a transition.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	txcontext "vigil/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AlertStore implements ports.AlertStore on PostgreSQL.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

func (s *AlertStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// SaveAlert upserts the record. The alert stage re-saves after a failed
// dispatch and the review service rewrites status and notes, so the
// conflict branch replaces the mutable columns.
func (s *AlertStore) SaveAlert(ctx context.Context, alert screening.AlertRecord) error {
	factors, err := json.Marshal(alert.Factors)
	if err != nil {
		return fmt.Errorf("marshal alert factors: %w", err)
	}
	notes, err := json.Marshal(alert.Notes)
	if err != nil {
		return fmt.Errorf("marshal alert notes: %w", err)
	}

	query := `
		INSERT INTO fraud_alerts (
			alert_id, transaction_id, customer_id, severity, status,
			decision_action, risk_score, factors, reasoning,
			assigned_to, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (alert_id) DO UPDATE SET
			severity        = EXCLUDED.severity,
			status          = EXCLUDED.status,
			decision_action = EXCLUDED.decision_action,
			risk_score      = EXCLUDED.risk_score,
			factors         = EXCLUDED.factors,
			reasoning       = EXCLUDED.reasoning,
			assigned_to     = EXCLUDED.assigned_to,
			notes           = EXCLUDED.notes,
			updated_at      = EXCLUDED.updated_at
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		string(alert.AlertID),
		string(alert.TransactionID),
		string(alert.CustomerID),
		string(alert.Severity),
		string(alert.Status),
		string(alert.DecisionAction),
		alert.RiskScore,
		factors,
		alert.Reasoning,
		alert.AssignedTo,
		notes,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fraud alert: %w", err)
	}
	return nil
}

const alertColumns = `
	alert_id, transaction_id, customer_id, severity, status,
	decision_action, risk_score, factors, reasoning,
	assigned_to, notes, created_at, updated_at
`

func (s *AlertStore) GetAlert(ctx context.Context, alertID id.AlertID) (*screening.AlertRecord, error) {
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts WHERE alert_id = $1`

	row := s.db.QueryRowContext(ctx, query, string(alertID))
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query fraud alert: %w", err)
	}
	return alert, nil
}

func (s *AlertStore) ListAlerts(ctx context.Context, filter ports.AlertFilter) ([]screening.AlertRecord, error) {
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts`

	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	if filter.Severity != "" {
		clause := " WHERE"
		if len(args) > 0 {
			clause = " AND"
		}
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf("%s severity = $%d", clause, len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fraud alerts: %w", err)
	}
	defer rows.Close()

	var alerts []screening.AlertRecord
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fraud alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud alerts: %w", err)
	}
	return alerts, nil
}

// TransitionAlert applies a compare-and-set status change, appending the
// note to the JSONB notes array in the same statement.
func (s *AlertStore) TransitionAlert(ctx context.Context, alertID id.AlertID, from, to screening.AlertStatus, note string) (*screening.AlertRecord, error) {
	appended := []string{}
	if note != "" {
		appended = append(appended, note)
	}
	noteJSON, err := json.Marshal(appended)
	if err != nil {
		return nil, fmt.Errorf("marshal transition note: %w", err)
	}

	query := `
		UPDATE fraud_alerts
		SET status = $1, notes = notes || $2::jsonb, updated_at = $3
		WHERE alert_id = $4 AND status = $5
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		string(to),
		noteJSON,
		time.Now().UTC(),
		string(alertID),
		string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("transition fraud alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition fraud alert: %w", err)
	}
	if affected == 0 {
		var current string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM fraud_alerts WHERE alert_id = $1`, string(alertID)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("query fraud alert status: %w", err)
		}
		return nil, fmt.Errorf("alert %s is %s, not %s: %w", alertID, current, from, sentinel.ErrInvalidState)
	}

	return s.GetAlert(ctx, alertID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*screening.AlertRecord, error) {
	var (
		alert       screening.AlertRecord
		alertID     string
		txID        string
		customerID  string
		severity    string
		status      string
		action      string
		factorsJSON []byte
		notesJSON   []byte
	)

	err := row.Scan(
		&alertID,
		&txID,
		&customerID,
		&severity,
		&status,
		&action,
		&alert.RiskScore,
		&factorsJSON,
		&alert.Reasoning,
		&alert.AssignedTo,
		&notesJSON,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.AlertID = id.AlertID(alertID)
	alert.TransactionID = id.TransactionID(txID)
	alert.CustomerID = id.CustomerID(customerID)
	alert.Severity = screening.AlertSeverity(severity)
	alert.Status = screening.AlertStatus(status)
	alert.DecisionAction = screening.DecisionAction(action)

	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &alert.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal alert factors: %w", err)
		}
	}
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &alert.Notes); err != nil {
			return nil, fmt.Errorf("unmarshal alert notes: %w", err)
		}
	}
	return &alert, nil
}

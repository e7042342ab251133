package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vigil/internal/screening"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	txcontext "vigil/pkg/platform/tx"
)

// ReportStore implements ports.ReportStore on PostgreSQL.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// SaveReport inserts the report. Reports are generated once per run with
// a fresh ID, so a conflicting ID is a replay and the insert is a no-op.
func (s *ReportStore) SaveReport(ctx context.Context, report screening.AuditReport) error {
	factors, err := json.Marshal(report.FactorsIdentified)
	if err != nil {
		return fmt.Errorf("marshal report factors: %w", err)
	}
	recommendations, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal report recommendations: %w", err)
	}

	query := `
		INSERT INTO audit_reports (
			report_id, transaction_id, compliance_rating,
			requires_immediate_action, requires_enhanced_monitoring,
			requires_regulatory_filing, risk_score, factors_identified,
			recommendations, supplementary_notes, generated_at, next_review_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (report_id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		string(report.ReportID),
		string(report.TransactionID),
		string(report.ComplianceRating),
		report.RequiresImmediateAction,
		report.RequiresEnhancedMonitoring,
		report.RequiresRegulatoryFiling,
		report.RiskScore,
		factors,
		recommendations,
		report.SupplementaryNotes,
		report.GeneratedAt,
		report.NextReviewDate,
	)
	if err != nil {
		return fmt.Errorf("insert audit report: %w", err)
	}
	return nil
}

const reportColumns = `
	report_id, transaction_id, compliance_rating,
	requires_immediate_action, requires_enhanced_monitoring,
	requires_regulatory_filing, risk_score, factors_identified,
	recommendations, supplementary_notes, generated_at, next_review_date
`

func (s *ReportStore) GetReport(ctx context.Context, reportID id.ReportID) (*screening.AuditReport, error) {
	query := `SELECT ` + reportColumns + ` FROM audit_reports WHERE report_id = $1`

	row := s.db.QueryRowContext(ctx, query, string(reportID))
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", reportID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query audit report: %w", err)
	}
	return report, nil
}

func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]screening.AuditReport, error) {
	query := `SELECT ` + reportColumns + ` FROM audit_reports ORDER BY generated_at DESC`

	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit reports: %w", err)
	}
	defer rows.Close()

	var reports []screening.AuditReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit reports: %w", err)
	}
	return reports, nil
}

func scanReport(row rowScanner) (*screening.AuditReport, error) {
	var (
		report     screening.AuditReport
		reportID   string
		txID       string
		rating     string
		factors    []byte
		recommends []byte
	)

	err := row.Scan(
		&reportID,
		&txID,
		&rating,
		&report.RequiresImmediateAction,
		&report.RequiresEnhancedMonitoring,
		&report.RequiresRegulatoryFiling,
		&report.RiskScore,
		&factors,
		&recommends,
		&report.SupplementaryNotes,
		&report.GeneratedAt,
		&report.NextReviewDate,
	)
	if err != nil {
		return nil, err
	}

	report.ReportID = id.ReportID(reportID)
	report.TransactionID = id.TransactionID(txID)
	report.ComplianceRating = screening.ComplianceRating(rating)

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &report.FactorsIdentified); err != nil {
			return nil, fmt.Errorf("unmarshal report factors: %w", err)
		}
	}
	if len(recommends) > 0 {
		if err := json.Unmarshal(recommends, &report.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshal report recommendations: %w", err)
		}
	}
	return &report, nil
}

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	"vigil/internal/screening/store/postgres"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	alerts   *postgres.AlertStore
	reports  *postgres.ReportStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.alerts = postgres.NewAlertStore(s.postgres.DB)
	s.reports = postgres.NewReportStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "fraud_alerts", "audit_reports")
	s.Require().NoError(err)
}

func testAlert(txID string, at time.Time) screening.AlertRecord {
	at = at.UTC().Truncate(time.Microsecond)
	return screening.AlertRecord{
		AlertID:        id.NewAlertID(id.TransactionID(txID), at),
		TransactionID:  id.TransactionID(txID),
		CustomerID:     "CUST1001",
		Severity:       screening.SeverityHigh,
		Status:         screening.StatusOpen,
		DecisionAction: screening.ActionBlock,
		RiskScore:      85,
		Factors:        []screening.RiskFactor{screening.FactorHighRiskJurisdiction, screening.FactorSanctionsConcern},
		Reasoning:      "Transfer to sanctioned jurisdiction.",
		AssignedTo:     screening.DefaultAssignee,
		Notes:          []string{"Alert created for transaction " + txID + " with severity HIGH"},
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func testReport(txID string, at time.Time) screening.AuditReport {
	at = at.UTC().Truncate(time.Microsecond)
	return screening.AuditReport{
		ReportID:                   id.NewReportID(id.TransactionID(txID), at),
		TransactionID:              id.TransactionID(txID),
		ComplianceRating:           screening.RatingNonCompliant,
		RequiresImmediateAction:    true,
		RequiresEnhancedMonitoring: false,
		RequiresRegulatoryFiling:   true,
		RiskScore:                  85,
		FactorsIdentified:          []screening.RiskFactor{screening.FactorHighRiskJurisdiction},
		Recommendations:            []string{"Block transaction pending manual review"},
		SupplementaryNotes:         "Escalated per sanctions policy.",
		GeneratedAt:                at,
		NextReviewDate:             time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0),
	}
}

func (s *PostgresStoreSuite) TestAlertRoundTrip() {
	ctx := context.Background()
	alert := testAlert("TX3001", time.Now())

	err := s.alerts.SaveAlert(ctx, alert)
	s.Require().NoError(err)

	found, err := s.alerts.GetAlert(ctx, alert.AlertID)
	s.Require().NoError(err)
	s.Equal(alert.AlertID, found.AlertID)
	s.Equal(alert.TransactionID, found.TransactionID)
	s.Equal(alert.CustomerID, found.CustomerID)
	s.Equal(alert.Severity, found.Severity)
	s.Equal(alert.Status, found.Status)
	s.Equal(alert.DecisionAction, found.DecisionAction)
	s.Equal(alert.RiskScore, found.RiskScore)
	s.Equal(alert.Factors, found.Factors)
	s.Equal(alert.Reasoning, found.Reasoning)
	s.Equal(alert.AssignedTo, found.AssignedTo)
	s.Equal(alert.Notes, found.Notes)
	s.WithinDuration(alert.CreatedAt, found.CreatedAt, time.Millisecond)
	s.WithinDuration(alert.UpdatedAt, found.UpdatedAt, time.Millisecond)
}

// TestAlertUpsert verifies re-saving an alert replaces its mutable
// columns. The alert stage re-saves after a failed dispatch with an
// extra note.
func (s *PostgresStoreSuite) TestAlertUpsert() {
	ctx := context.Background()
	alert := testAlert("TX3002", time.Now())

	err := s.alerts.SaveAlert(ctx, alert)
	s.Require().NoError(err)

	alert.Notes = append(alert.Notes, "Alert dispatch failed: webhook unreachable")
	alert.UpdatedAt = alert.UpdatedAt.Add(time.Second)
	err = s.alerts.SaveAlert(ctx, alert)
	s.Require().NoError(err)

	found, err := s.alerts.GetAlert(ctx, alert.AlertID)
	s.Require().NoError(err)
	s.Len(found.Notes, 2)
	s.Contains(found.Notes[1], "dispatch failed")

	all, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{})
	s.Require().NoError(err)
	s.Len(all, 1, "upsert must not create a second row")
}

func (s *PostgresStoreSuite) TestAlertNotFound() {
	ctx := context.Background()
	_, err := s.alerts.GetAlert(ctx, "ALERT_TX9999_20260101000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListAlertsFiltersAndOrders() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	open := testAlert("TX3010", base)
	investigating := testAlert("TX3011", base.Add(time.Minute))
	investigating.Status = screening.StatusInvestigating
	critical := testAlert("TX3012", base.Add(2*time.Minute))
	critical.Severity = screening.SeverityCritical

	for _, alert := range []screening.AlertRecord{open, investigating, critical} {
		s.Require().NoError(s.alerts.SaveAlert(ctx, alert))
	}

	all, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(critical.AlertID, all[0].AlertID, "newest first")

	openOnly, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{Status: screening.StatusOpen})
	s.Require().NoError(err)
	s.Len(openOnly, 2)

	criticalOpen, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{
		Status:   screening.StatusOpen,
		Severity: screening.SeverityCritical,
	})
	s.Require().NoError(err)
	s.Require().Len(criticalOpen, 1)
	s.Equal(critical.AlertID, criticalOpen[0].AlertID)

	limited, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *PostgresStoreSuite) TestTransitionAppliesStatusAndNote() {
	ctx := context.Background()
	alert := testAlert("TX3020", time.Now().Add(-time.Minute))
	s.Require().NoError(s.alerts.SaveAlert(ctx, alert))

	updated, err := s.alerts.TransitionAlert(ctx, alert.AlertID,
		screening.StatusOpen, screening.StatusInvestigating, "assigned to analyst")
	s.Require().NoError(err)
	s.Equal(screening.StatusInvestigating, updated.Status)
	s.Equal("assigned to analyst", updated.Notes[len(updated.Notes)-1])
	s.True(updated.UpdatedAt.After(alert.UpdatedAt))
}

func (s *PostgresStoreSuite) TestTransitionWrongStatusRejected() {
	ctx := context.Background()
	alert := testAlert("TX3021", time.Now())
	s.Require().NoError(s.alerts.SaveAlert(ctx, alert))

	_, err := s.alerts.TransitionAlert(ctx, alert.AlertID,
		screening.StatusInvestigating, screening.StatusResolved, "")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	found, err := s.alerts.GetAlert(ctx, alert.AlertID)
	s.Require().NoError(err)
	s.Equal(screening.StatusOpen, found.Status, "failed transition must not mutate the row")
}

func (s *PostgresStoreSuite) TestTransitionUnknownAlert() {
	ctx := context.Background()
	_, err := s.alerts.TransitionAlert(ctx, "ALERT_TX9998_20260101000000",
		screening.StatusOpen, screening.StatusInvestigating, "")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentTransitionSingleWinner verifies the compare-and-set
// semantics under contention: many reviewers racing the same OPEN alert
// produce exactly one successful claim.
func (s *PostgresStoreSuite) TestConcurrentTransitionSingleWinner() {
	ctx := context.Background()
	alert := testAlert("TX3030", time.Now())
	s.Require().NoError(s.alerts.SaveAlert(ctx, alert))

	const goroutines = 20

	var wg sync.WaitGroup
	var wins, losses atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.alerts.TransitionAlert(ctx, alert.AlertID,
				screening.StatusOpen, screening.StatusInvestigating, "claimed")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one transition should win")
	s.Equal(int32(goroutines-1), losses.Load(), "all others should observe the stale status")

	found, err := s.alerts.GetAlert(ctx, alert.AlertID)
	s.Require().NoError(err)
	s.Equal(screening.StatusInvestigating, found.Status)
	s.Len(found.Notes, 2, "only the winning transition appends its note")
}

func (s *PostgresStoreSuite) TestReportRoundTrip() {
	ctx := context.Background()
	report := testReport("TX3040", time.Now())

	err := s.reports.SaveReport(ctx, report)
	s.Require().NoError(err)

	found, err := s.reports.GetReport(ctx, report.ReportID)
	s.Require().NoError(err)
	s.Equal(report.ReportID, found.ReportID)
	s.Equal(report.TransactionID, found.TransactionID)
	s.Equal(report.ComplianceRating, found.ComplianceRating)
	s.Equal(report.RequiresImmediateAction, found.RequiresImmediateAction)
	s.Equal(report.RequiresEnhancedMonitoring, found.RequiresEnhancedMonitoring)
	s.Equal(report.RequiresRegulatoryFiling, found.RequiresRegulatoryFiling)
	s.Equal(report.RiskScore, found.RiskScore)
	s.Equal(report.FactorsIdentified, found.FactorsIdentified)
	s.Equal(report.Recommendations, found.Recommendations)
	s.Equal(report.SupplementaryNotes, found.SupplementaryNotes)
	s.WithinDuration(report.GeneratedAt, found.GeneratedAt, time.Millisecond)
	s.WithinDuration(report.NextReviewDate, found.NextReviewDate, time.Millisecond)
}

// TestReportReplayIgnored verifies duplicate report IDs are dropped
// rather than overwriting the original filing.
func (s *PostgresStoreSuite) TestReportReplayIgnored() {
	ctx := context.Background()
	report := testReport("TX3041", time.Now())
	s.Require().NoError(s.reports.SaveReport(ctx, report))

	replay := report
	replay.ComplianceRating = screening.RatingCompliant
	s.Require().NoError(s.reports.SaveReport(ctx, replay))

	found, err := s.reports.GetReport(ctx, report.ReportID)
	s.Require().NoError(err)
	s.Equal(screening.RatingNonCompliant, found.ComplianceRating, "first write wins")
}

func (s *PostgresStoreSuite) TestReportNotFound() {
	ctx := context.Background()
	_, err := s.reports.GetReport(ctx, "AUDIT_TX9999_20260101000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListReportsNewestFirstWithLimit() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	older := testReport("TX3050", base)
	newer := testReport("TX3051", base.Add(time.Minute))
	for _, report := range []screening.AuditReport{older, newer} {
		s.Require().NoError(s.reports.SaveReport(ctx, report))
	}

	all, err := s.reports.ListReports(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ReportID, all[0].ReportID)

	limited, err := s.reports.ListReports(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal(newer.ReportID, limited[0].ReportID)
}

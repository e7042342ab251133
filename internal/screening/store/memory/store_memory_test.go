package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

func alertAt(alertID string, status screening.AlertStatus, severity screening.AlertSeverity, createdAt time.Time) screening.AlertRecord {
	return screening.AlertRecord{
		AlertID:       id.AlertID(alertID),
		TransactionID: "TX1001",
		CustomerID:    "CUST1001",
		Severity:      severity,
		Status:        status,
		RiskScore:     80,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestAlertStore_SaveAndGet(t *testing.T) {
	store := NewInMemoryAlertStore()
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveAlert(ctx, alertAt("ALERT_TX1001_20260314093000", screening.StatusOpen, screening.SeverityHigh, created)))

	got, err := store.GetAlert(ctx, "ALERT_TX1001_20260314093000")
	require.NoError(t, err)
	assert.Equal(t, screening.StatusOpen, got.Status)
	assert.Equal(t, screening.SeverityHigh, got.Severity)
}

func TestAlertStore_GetUnknown(t *testing.T) {
	store := NewInMemoryAlertStore()

	_, err := store.GetAlert(context.Background(), "ALERT_TX9999_20260314093000")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAlertStore_ListFiltersAndOrders(t *testing.T) {
	store := NewInMemoryAlertStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveAlert(ctx, alertAt("ALERT_TX1001_20260314090000", screening.StatusOpen, screening.SeverityHigh, base)))
	require.NoError(t, store.SaveAlert(ctx, alertAt("ALERT_TX1002_20260314091000", screening.StatusOpen, screening.SeverityCritical, base.Add(10*time.Minute))))
	require.NoError(t, store.SaveAlert(ctx, alertAt("ALERT_TX1003_20260314092000", screening.StatusResolved, screening.SeverityHigh, base.Add(20*time.Minute))))

	t.Run("status filter", func(t *testing.T) {
		open, err := store.ListAlerts(ctx, ports.AlertFilter{Status: screening.StatusOpen})
		require.NoError(t, err)
		require.Len(t, open, 2)
		// Newest first.
		assert.Equal(t, id.AlertID("ALERT_TX1002_20260314091000"), open[0].AlertID)
	})

	t.Run("severity filter", func(t *testing.T) {
		critical, err := store.ListAlerts(ctx, ports.AlertFilter{Severity: screening.SeverityCritical})
		require.NoError(t, err)
		require.Len(t, critical, 1)
	})

	t.Run("limit", func(t *testing.T) {
		capped, err := store.ListAlerts(ctx, ports.AlertFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, capped, 1)
		assert.Equal(t, id.AlertID("ALERT_TX1003_20260314092000"), capped[0].AlertID)
	})

	t.Run("zero filter matches all", func(t *testing.T) {
		all, err := store.ListAlerts(ctx, ports.AlertFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestAlertStore_Transition(t *testing.T) {
	store := NewInMemoryAlertStore()
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveAlert(ctx, alertAt("ALERT_TX1001_20260314093000", screening.StatusOpen, screening.SeverityHigh, created)))

	t.Run("compare and set appends note", func(t *testing.T) {
		updated, err := store.TransitionAlert(ctx, "ALERT_TX1001_20260314093000", screening.StatusOpen, screening.StatusInvestigating, "assigned to analyst")
		require.NoError(t, err)
		assert.Equal(t, screening.StatusInvestigating, updated.Status)
		require.NotEmpty(t, updated.Notes)
		assert.Equal(t, "assigned to analyst", updated.Notes[len(updated.Notes)-1])
		assert.True(t, updated.UpdatedAt.After(created))
	})

	t.Run("stale from status rejected", func(t *testing.T) {
		_, err := store.TransitionAlert(ctx, "ALERT_TX1001_20260314093000", screening.StatusOpen, screening.StatusResolved, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("unknown alert", func(t *testing.T) {
		_, err := store.TransitionAlert(ctx, "ALERT_TX9999_20260314093000", screening.StatusOpen, screening.StatusInvestigating, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestReportStore_RoundTripAndList(t *testing.T) {
	store := NewInMemoryReportStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first := screening.AuditReport{
		ReportID:         "AUDIT_TX1001_20260314090000",
		TransactionID:    "TX1001",
		ComplianceRating: screening.RatingCompliant,
		GeneratedAt:      base,
	}
	second := screening.AuditReport{
		ReportID:         "AUDIT_TX1002_20260314091000",
		TransactionID:    "TX1002",
		ComplianceRating: screening.RatingNonCompliant,
		GeneratedAt:      base.Add(10 * time.Minute),
	}
	require.NoError(t, store.SaveReport(ctx, first))
	require.NoError(t, store.SaveReport(ctx, second))

	got, err := store.GetReport(ctx, first.ReportID)
	require.NoError(t, err)
	assert.Equal(t, screening.RatingCompliant, got.ComplianceRating)

	reports, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, second.ReportID, reports[0].ReportID)

	capped, err := store.ListReports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)

	_, err = store.GetReport(ctx, "AUDIT_TX9999_20260314090000")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

// Package memory provides in-memory alert and report stores for tests
// and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// InMemoryAlertStore keeps alert records in a process-local map.
type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]screening.AlertRecord
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{alerts: make(map[id.AlertID]screening.AlertRecord)}
}

func (s *InMemoryAlertStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make(map[id.AlertID]screening.AlertRecord)
}

func (s *InMemoryAlertStore) SaveAlert(_ context.Context, alert screening.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.AlertID] = alert
	return nil
}

func (s *InMemoryAlertStore) GetAlert(_ context.Context, alertID id.AlertID) (*screening.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
	}
	return &alert, nil
}

func (s *InMemoryAlertStore) ListAlerts(_ context.Context, filter ports.AlertFilter) ([]screening.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]screening.AlertRecord, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		matched = append(matched, alert)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *InMemoryAlertStore) TransitionAlert(_ context.Context, alertID id.AlertID, from, to screening.AlertStatus, note string) (*screening.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
	}
	if alert.Status != from {
		return nil, fmt.Errorf("alert %s is %s, not %s: %w", alertID, alert.Status, from, sentinel.ErrInvalidState)
	}

	alert.Status = to
	if note != "" {
		alert.Notes = append(alert.Notes, note)
	}
	alert.UpdatedAt = time.Now().UTC()
	s.alerts[alertID] = alert

	return &alert, nil
}

// InMemoryReportStore keeps audit reports in a process-local map.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]screening.AuditReport
}

func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{reports: make(map[id.ReportID]screening.AuditReport)}
}

func (s *InMemoryReportStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = make(map[id.ReportID]screening.AuditReport)
}

func (s *InMemoryReportStore) SaveReport(_ context.Context, report screening.AuditReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ReportID] = report
	return nil
}

func (s *InMemoryReportStore) GetReport(_ context.Context, reportID id.ReportID) (*screening.AuditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", reportID, sentinel.ErrNotFound)
	}
	return &report, nil
}

func (s *InMemoryReportStore) ListReports(_ context.Context, limit int) ([]screening.AuditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]screening.AuditReport, 0, len(s.reports))
	for _, report := range s.reports {
		reports = append(reports, report)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

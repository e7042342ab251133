// Package review is the analyst-facing side of alerting: listing and
// inspecting fraud alerts, moving them through the review lifecycle,
// and summarizing recent screening activity. Every state change is
// attributed to the authenticated analyst and recorded on the security
// event stream.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/audit"
	"vigil/internal/screening/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// summaryWindow caps how many recent reports feed the executive summary.
const summaryWindow = 500

// SecurityEvents receives review actions for the security event stream.
// The sink must be non-blocking; a nil sink disables emission.
type SecurityEvents interface {
	Emit(event events.SecurityEvent)
}

// ReportSummarizer aggregates recent audit reports. The audit stage
// implements it.
type ReportSummarizer interface {
	Summary(ctx context.Context, limit int) (*audit.ExecutiveSummary, error)
}

// Service coordinates alert review against the alert store and the
// audit stage's report aggregation.
type Service struct {
	alerts   ports.AlertStore
	reports  ReportSummarizer
	security SecurityEvents
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSecurityEvents(sink SecurityEvents) Option {
	return func(s *Service) {
		s.security = sink
	}
}

func NewService(alerts ports.AlertStore, reports ReportSummarizer, opts ...Option) (*Service, error) {
	if alerts == nil {
		return nil, fmt.Errorf("alert store is required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report store is required")
	}

	s := &Service{alerts: alerts, reports: reports}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// ListAlerts returns alerts newest first, narrowed by the filter.
func (s *Service) ListAlerts(ctx context.Context, filter ports.AlertFilter) ([]screening.AlertRecord, error) {
	alerts, err := s.alerts.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// GetAlert returns one alert by ID.
func (s *Service) GetAlert(ctx context.Context, alertID id.AlertID) (*screening.AlertRecord, error) {
	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// UpdateStatus moves an alert to a new review status. The transition is
// validated against the review lifecycle and applied conditionally on
// the status the analyst saw, so two analysts cannot silently overwrite
// each other.
func (s *Service) UpdateStatus(ctx context.Context, alertID id.AlertID, to screening.AlertStatus, note string) (*screening.AlertRecord, error) {
	current, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	from := current.Status
	if !screening.ValidStatusTransition(from, to) {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("cannot transition alert from %s to %s", from, to))
	}

	updated, err := s.alerts.TransitionAlert(ctx, alertID, from, to, note)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "alert status changed concurrently, reload and retry")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		return nil, fmt.Errorf("transition alert: %w", err)
	}

	analystID := requestcontext.AnalystID(ctx)
	s.logger.InfoContext(ctx, "alert status changed",
		"alert_id", alertID,
		"from", from,
		"to", to,
		"analyst_id", analystID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.security != nil {
		s.security.Emit(events.SecurityEvent{
			Subject:   string(alertID),
			Action:    string(events.EventAlertStatusChanged),
			Reason:    fmt.Sprintf("%s to %s via %s", from, to, deviceLabel(requestcontext.DeviceInfo(ctx))),
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   analystID,
			Severity:  events.SeverityInfo,
		})
	}

	return updated, nil
}

// Summary joins the audit stage's report aggregation with the current
// state of the alert queue.
type Summary struct {
	Reports          audit.ExecutiveSummary          `json:"reports"`
	TotalAlerts      int                             `json:"total_alerts"`
	OpenAlerts       int                             `json:"open_alerts"`
	AlertsBySeverity map[screening.AlertSeverity]int `json:"alerts_by_severity"`
	AlertsByStatus   map[screening.AlertStatus]int   `json:"alerts_by_status"`
	GeneratedAt      time.Time                       `json:"generated_at"`
}

// Summarize builds the executive summary from the most recent reports
// and the full alert queue.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	reportSummary, err := s.reports.Summary(ctx, summaryWindow)
	if err != nil {
		return nil, fmt.Errorf("summarize reports: %w", err)
	}
	alerts, err := s.alerts.ListAlerts(ctx, ports.AlertFilter{})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	summary := &Summary{
		Reports:          *reportSummary,
		TotalAlerts:      len(alerts),
		AlertsBySeverity: make(map[screening.AlertSeverity]int),
		AlertsByStatus:   make(map[screening.AlertStatus]int),
		GeneratedAt:      requestcontext.Now(ctx),
	}

	for _, alert := range alerts {
		summary.AlertsBySeverity[alert.Severity]++
		summary.AlertsByStatus[alert.Status]++
		if alert.Status == screening.StatusOpen {
			summary.OpenAlerts++
		}
	}

	return summary, nil
}

// deviceLabel renders a parsed device for audit trails, falling back to
// the raw header for clients the parser does not recognize.
func deviceLabel(d requestcontext.Device) string {
	if d.Browser == "" {
		if d.RawHeader != "" {
			return d.RawHeader
		}
		return "unknown device"
	}
	label := d.Browser
	if d.Version != "" {
		label += " " + d.Version
	}
	if d.OS != "" {
		label += " on " + d.OS
	}
	return label
}

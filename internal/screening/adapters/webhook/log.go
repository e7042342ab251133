package webhook

import (
	"context"
	"log/slog"

	"vigil/internal/screening"
)

// LogDispatcher records alerts on the log stream instead of delivering
// them. Wired when no webhook URL is configured so alert creation still
// completes in development deployments.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// SendAlert logs the alert and reports success.
func (d *LogDispatcher) SendAlert(ctx context.Context, alert screening.AlertRecord) error {
	d.logger.InfoContext(ctx, "alert dispatch skipped, no webhook configured",
		"alert_id", alert.AlertID,
		"transaction_id", alert.TransactionID,
		"severity", alert.Severity,
	)
	return nil
}

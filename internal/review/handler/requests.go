package handler

import (
	"strings"

	"vigil/internal/screening"
	"vigil/internal/screening/ports"
	dErrors "vigil/pkg/domain-errors"
)

// maxNoteLength bounds analyst notes so a paste mistake cannot bloat the
// alert record.
const maxNoteLength = 2000

// UpdateStatusRequest is the HTTP request body for POST /v1/alerts/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`

	// Parsed values (populated by Validate)
	parsedStatus screening.AlertStatus
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "status is required")
	}

	status, err := parseAlertStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status

	r.Note = strings.TrimSpace(r.Note)
	if len(r.Note) > maxNoteLength {
		return dErrors.New(dErrors.CodeInvalidInput, "note must be at most 2000 characters")
	}

	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateStatusRequest) ParsedStatus() screening.AlertStatus {
	return r.parsedStatus
}

func parseAlertStatus(s string) (screening.AlertStatus, error) {
	switch screening.AlertStatus(strings.ToUpper(s)) {
	case screening.StatusOpen:
		return screening.StatusOpen, nil
	case screening.StatusInvestigating:
		return screening.StatusInvestigating, nil
	case screening.StatusResolved:
		return screening.StatusResolved, nil
	case screening.StatusFalsePositive:
		return screening.StatusFalsePositive, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown alert status")
	}
}

func parseAlertSeverity(s string) (screening.AlertSeverity, error) {
	switch screening.AlertSeverity(strings.ToUpper(s)) {
	case screening.SeverityLow:
		return screening.SeverityLow, nil
	case screening.SeverityMedium:
		return screening.SeverityMedium, nil
	case screening.SeverityHigh:
		return screening.SeverityHigh, nil
	case screening.SeverityCritical:
		return screening.SeverityCritical, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown alert severity")
	}
}

// parseListFilter builds an alert filter from query parameters. Absent
// parameters match everything.
func parseListFilter(status, severity string) (ports.AlertFilter, error) {
	var filter ports.AlertFilter

	if status != "" {
		parsed, err := parseAlertStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = parsed
	}
	if severity != "" {
		parsed, err := parseAlertSeverity(severity)
		if err != nil {
			return filter, err
		}
		filter.Severity = parsed
	}

	return filter, nil
}

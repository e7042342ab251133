package handler

import (
	"time"

	"vigil/internal/screening"
	"vigil/internal/screening/workflow"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// ScreeningResponse is the HTTP response for POST /v1/screenings. Both
// branch results are always present; a failed branch reports an error
// while its sibling still carries data.
type ScreeningResponse struct {
	TransactionID string                    `json:"transaction_id"`
	Assessment    *screening.RiskAssessment `json:"assessment"`
	Audit         AuditBranchResponse       `json:"audit"`
	Alert         AlertBranchResponse       `json:"alert"`
	Succeeded     bool                      `json:"succeeded"`
	DurationMS    int64                     `json:"duration_ms"`
	CompletedAt   time.Time                 `json:"completed_at"`
}

// AuditBranchResponse is the audit branch portion of the response.
type AuditBranchResponse struct {
	Report *screening.AuditReport `json:"report,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// AlertBranchResponse is the alert branch portion of the response.
// DispatchError is domain data from the alert stage; Error means the
// branch itself failed.
type AlertBranchResponse struct {
	Disposition   string                 `json:"disposition,omitempty"`
	Alert         *screening.AlertRecord `json:"alert,omitempty"`
	DispatchError string                 `json:"dispatch_error,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// Branch failure text is deliberately generic: infrastructure detail
// stays in the logs, the caller only needs to know which branch to
// retry.
const (
	auditBranchFailed = "audit processing failed"
	alertBranchFailed = "alert processing failed"
)

// FromResult converts a workflow Result to an HTTP response.
func FromResult(result *workflow.Result) *ScreeningResponse {
	resp := &ScreeningResponse{
		TransactionID: result.TransactionID.String(),
		Assessment:    result.Assessment,
		Succeeded:     result.Succeeded(),
		DurationMS:    result.Duration.Milliseconds(),
		CompletedAt:   result.CompletedAt,
	}

	if result.Audit.Err != nil {
		resp.Audit.Error = auditBranchFailed
	} else {
		resp.Audit.Report = result.Audit.Report
	}

	switch {
	case result.Alert.Err != nil:
		resp.Alert.Error = alertBranchFailed
	case result.Alert.Outcome != nil:
		resp.Alert.Disposition = string(result.Alert.Outcome.Disposition)
		resp.Alert.Alert = result.Alert.Outcome.Alert
		resp.Alert.DispatchError = result.Alert.Outcome.DispatchError
	}

	return resp
}

// BatchItemResponse is one transaction's result within a batch. Exactly
// one of Screening and Error is set.
type BatchItemResponse struct {
	TransactionID string             `json:"transaction_id"`
	Screening     *ScreeningResponse `json:"screening,omitempty"`
	Error         string             `json:"error,omitempty"`
	ErrorDetail   string             `json:"error_description,omitempty"`
}

// BatchScreenResponse is the HTTP response for POST /v1/screenings/batch.
type BatchScreenResponse struct {
	Items      []BatchItemResponse `json:"items"`
	Total      int                 `json:"total"`
	Completed  int                 `json:"completed"`
	Failed     int                 `json:"failed"`
	DurationMS int64               `json:"duration_ms"`
}

// batchItem converts one run's outcome, mirroring WriteError's rule
// that internal errors hide their message.
func batchItem(txID id.TransactionID, result *workflow.Result, err error) BatchItemResponse {
	item := BatchItemResponse{TransactionID: txID.String()}
	if err != nil {
		code := dErrors.CodeOf(err)
		item.Error = string(code)
		if code != dErrors.CodeInternal {
			item.ErrorDetail = dErrors.MessageOf(err)
		}
		return item
	}
	item.Screening = FromResult(result)
	return item
}

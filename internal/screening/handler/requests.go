package handler

import (
	"fmt"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// maxBatchSize bounds one batch request. Larger runs belong in several
// requests so a single caller cannot monopolize the worker pool.
const maxBatchSize = 100

// ScreenRequest is the HTTP request body for POST /v1/screenings.
type ScreenRequest struct {
	TransactionID string `json:"transaction_id"`

	// Parsed values (populated by Validate)
	parsedID id.TransactionID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ScreenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	txID, err := id.ParseTransactionID(r.TransactionID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, err.Error())
	}
	r.parsedID = txID

	return nil
}

// ParsedID returns the validated transaction ID.
func (r *ScreenRequest) ParsedID() id.TransactionID {
	return r.parsedID
}

// BatchScreenRequest is the HTTP request body for POST /v1/screenings/batch.
type BatchScreenRequest struct {
	TransactionIDs []string `json:"transaction_ids"`

	// Parsed values (populated by Validate)
	parsedIDs []id.TransactionID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *BatchScreenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if len(r.TransactionIDs) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "transaction_ids is required")
	}
	if len(r.TransactionIDs) > maxBatchSize {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("batch size exceeds the maximum of %d transactions", maxBatchSize))
	}

	parsed := make([]id.TransactionID, len(r.TransactionIDs))
	for i, raw := range r.TransactionIDs {
		txID, err := id.ParseTransactionID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("transaction_ids[%d]: %s", i, err))
		}
		parsed[i] = txID
	}
	r.parsedIDs = parsed

	return nil
}

// ParsedIDs returns the validated transaction IDs in request order.
func (r *BatchScreenRequest) ParsedIDs() []id.TransactionID {
	return r.parsedIDs
}

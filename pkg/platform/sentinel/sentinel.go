package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, adapters, and other
// infrastructure layers return these (optionally wrapped) so services can
// translate them into domain outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store or upstream ledger
// - ErrInvalidState: entity in wrong state for requested operation
//   (e.g. resolving an alert that is not under investigation)
// - ErrUnavailable: collaborator temporarily unavailable (reasoner, dispatcher)
//
// Validation errors (bad input, missing fields) are plain wrapped errors
// constructed at the trust boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

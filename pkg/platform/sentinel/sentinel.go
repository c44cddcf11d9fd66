package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and network adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store or mirror window
// - ErrConflict: a uniqueness constraint rejected a write
// - ErrRejected: the consensus log reported a non-success finality status
// - ErrUnavailable: dependency unreachable or timed out
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRejected    = errors.New("rejected")
	ErrUnavailable = errors.New("unavailable")
)

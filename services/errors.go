package services

import "errors"

// Error kinds for the ingestion and query pipeline. Callers classify failures
// with errors.Is; everything else wraps one of these with fmt.Errorf and %w.
var (
	// ErrInput marks a malformed or corrupt document. Not retried; reported
	// per document.
	ErrInput = errors.New("input error")

	// ErrServiceUnavailable marks an unreachable or timed-out external
	// capability (structuring, embedding). Retried with backoff, then
	// reported.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrConsistency marks an attempted partial write to the store. The write
	// is rolled back in full; a partial chunk set must never be observable.
	ErrConsistency = errors.New("consistency error")

	// ErrConfiguration marks a systemic misconfiguration (dimension mismatch,
	// missing required parameter). Fatal: aborts the whole run.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks a lookup for a document or chunk that does not exist.
	ErrNotFound = errors.New("not found")
)

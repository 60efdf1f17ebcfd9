package core

import "errors"

// Error taxonomy for per-item failure handling in batch jobs. Callers match
// with errors.Is and decide whether to skip the item, skip the unit of work,
// or rely on the next scheduled tick.
var (
	// ErrValidation marks malformed input: skip the offending item, log,
	// continue.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing owner or account: skip the unit of work.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a store or notification I/O failure: log, do not
	// retry within the same pass.
	ErrTransient = errors.New("transient error")

	// ErrConfiguration marks missing credentials or settings: fail the
	// specific operation only, never the whole job.
	ErrConfiguration = errors.New("configuration error")
)

package monitor

import "errors"

// Sentinel errors returned by Service operations. Callers branch with
// errors.Is; HTTP handlers map them to status codes.
var (
	// ErrNotFound: the referenced change or recipient does not exist.
	ErrNotFound = errors.New("monitor: not found")

	// ErrPreconditionFailed: the operation is not legal in the entity's
	// current state (e.g. dispatching a change that is not approved, or
	// editing drafts after review).
	ErrPreconditionFailed = errors.New("monitor: precondition failed")

	// ErrNoRecipients: dispatch was requested with an empty active roster.
	ErrNoRecipients = errors.New("monitor: no active recipients")

	// ErrInvalidInput: a caller-supplied value failed validation.
	ErrInvalidInput = errors.New("monitor: invalid input")
)

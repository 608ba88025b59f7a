package library

import "errors"

// Error kinds surfaced by the editor. Callers match them with errors.Is.
var (
	// ErrFetchFailed: a library listing failed; retry by navigating again.
	ErrFetchFailed = errors.New("library fetch failed")
	// ErrCompatibilityUnknown: eligibility could not be evaluated; treated as incompatible.
	ErrCompatibilityUnknown = errors.New("compatibility unknown")
	// ErrUnresolvableRemovalTarget: a member has no usable document id.
	ErrUnresolvableRemovalTarget = errors.New("no document id for collection member")
	// ErrSubmitFailed: the change-set was rejected or could not be sent.
	ErrSubmitFailed = errors.New("change-set submit failed")
	// ErrJobFailed: the apply job reached the failed state.
	ErrJobFailed = errors.New("apply job failed")
)

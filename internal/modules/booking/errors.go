// README: Recoverable error taxonomy shared by the orchestration modules.
package booking

import "errors"

var (
	// ErrUnauthorized: actor role/identity does not match the required actor,
	// e.g. a non-assigned driver responding to an offer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition: requested action is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid-transition")
	// ErrStaleState: precondition held at read time but no longer at apply time.
	// Callers refetch and retry.
	ErrStaleState = errors.New("stale-state")
	// ErrNotFound: booking does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not-found")
	// ErrConflict: uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidPrice: non-positive amount or a currency that does not match
	// the booking's base currency. The core never converts currencies.
	ErrInvalidPrice = errors.New("invalid-price")
	// ErrBadRequest: missing or malformed command fields.
	ErrBadRequest = errors.New("bad-request")
)

// StateError wraps invalid-transition and stale-state failures with the
// booking's current status, so callers get enough context to refetch and
// retry instead of treating the race as a generic failure.
type StateError struct {
	Err     error
	Current Status
}

func (e *StateError) Error() string {
	return e.Err.Error() + " (current: " + string(e.Current) + ")"
}

func (e *StateError) Unwrap() error { return e.Err }

func stateErr(err error, current Status) error {
	return &StateError{Err: err, Current: current}
}

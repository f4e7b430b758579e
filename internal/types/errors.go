package types

import (
	"errors"
	"fmt"
)

// Errors surfaced to the UI layer. Every engine operation returns one of these (possibly joined
// with the underlying cause), so callers can branch with errors.Is.
var (
	// ErrSessionUnavailable means the auth step failed. Not retryable for the current operation.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrRemoteUnavailable is a transient network or service failure. The user action may be retried.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrMutationConflict means the version conflict survived one refresh-and-retry, or the cart the
	// caller targeted is no longer the active one. The cart must be re-resolved before retrying.
	ErrMutationConflict = errors.New("mutation conflict")
	// ErrInvalidMutation is a rejected intent, e.g. removing a line that no longer exists.
	ErrInvalidMutation = errors.New("invalid mutation")
	// ErrInvalidInput is a malformed search filter or sign-up form.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCustomerExists means a sign-up used an email that is already registered.
	ErrCustomerExists = errors.New("customer exists")
)

// Errors used between the engine and its collaborators.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrCartReplaced    = errors.New("cart replaced")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrInvalidBackend  = errors.New("invalid backend")
	ErrDataStoreAccess = errors.New("data store read/write error")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// Kind returns the name of the UI-facing error class of err, or "internal" when err belongs to
// none of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionUnavailable):
		return "session_unavailable"
	case errors.Is(err, ErrInvalidMutation):
		return "invalid_mutation"
	case errors.Is(err, ErrMutationConflict):
		return "mutation_conflict"
	case errors.Is(err, ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrCustomerExists):
		return "customer_exists"
	default:
		return "internal"
	}
}

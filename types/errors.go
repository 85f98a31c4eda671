package types

import "errors"

var (
	// ErrNotLoggedIn is returned when an operation requires an auth context
	// and none has been supplied yet.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrInternalInconsistency signals a violated engine invariant, e.g. an
	// operation that needs an active account while none is set, or starting
	// a migration session while one is already in flight.
	ErrInternalInconsistency = errors.New("internal inconsistency")

	// ErrInvalidPassword is returned when the keystore decrypt/re-encrypt
	// round trip fails for the supplied password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrAccountReadFailed is returned when a keystore blob cannot be parsed.
	ErrAccountReadFailed = errors.New("account read failed")

	// ErrWatchNotStarted is returned when waiting on a payment memo that was
	// never registered.
	ErrWatchNotStarted = errors.New("watch not started")

	// ErrWatchTimedOut is returned when a payment wait expires under the
	// fail policy.
	ErrWatchTimedOut = errors.New("watch timed out")

	// ErrTimeout is the generic operation deadline error.
	ErrTimeout = errors.New("operation timed out")
)

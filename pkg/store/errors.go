package store

import "errors"

// Error taxonomy for store and tracker operations. Callers match with
// errors.Is; everything mutating in this package is idempotent, so a
// transient failure is always safe to retry.
var (
	// ErrUnauthenticated is returned when a write carries no caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation is returned when message content violates the limits.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for operations on a missing message id.
	ErrNotFound = errors.New("message not found")
	// ErrTransient wraps backend failures that are safe to retry.
	ErrTransient = errors.New("transient store error")
	// ErrClosed is returned when the store has been torn down.
	ErrClosed = errors.New("store closed")
)

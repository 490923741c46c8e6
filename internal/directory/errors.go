package directory

import "errors"

// Typed failures surfaced to the REST layer and, through it, to clients.
var (
	// ErrInvalid indicates a malformed argument (empty or oversized id,
	// self-pairing attempt).
	ErrInvalid = errors.New("invalid request")

	// ErrUnauthorized indicates the caller is not the party allowed to
	// perform the operation. Never retried automatically.
	ErrUnauthorized = errors.New("caller not authorized for this operation")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("connection not found")

	// ErrNotPending is the stale-state error: an approve/reject hit a record
	// that is already terminal. Surfaced distinctly so clients refresh their
	// view instead of assuming success.
	ErrNotPending = errors.New("connection request is no longer pending")

	// ErrAlreadyConnected rejects a new request for a pair that already has
	// an approved connection.
	ErrAlreadyConnected = errors.New("caregiver is already connected to this user")
)

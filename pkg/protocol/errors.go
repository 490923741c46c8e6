package protocol

// Error codes returned by the directory REST API and the notification hub.
const (
	ErrInvalidRequest   = "INVALID_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrNotFound         = "NOT_FOUND"
	ErrNotPending       = "NOT_PENDING"
	ErrAlreadyConnected = "ALREADY_CONNECTED"
	ErrInternal         = "INTERNAL"
)

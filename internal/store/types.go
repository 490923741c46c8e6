// Package store defines the persistence interfaces for connection records
// and user profile summaries, plus shared helpers. Implementations live in
// the memory (this package), file, and pg sub-stores.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Connection status values. A record is terminal once non-pending:
// no further transitions are permitted.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Store errors.
var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrWrongStatus indicates a conditional transition found the record in a
	// status other than the expected one.
	ErrWrongStatus = errors.New("record not in expected status")
)

// ConnectionData is one pairing attempt between a caregiver and an elderly
// user. An approved record is the permanent proof of an established
// connection; a rejected record stays as history and a new scan creates a
// fresh request.
type ConnectionData struct {
	ID          uuid.UUID  `json:"id"`
	CaregiverID string     `json:"caregiverId"`
	ElderlyID   string     `json:"elderlyId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// Terminal reports whether the record can no longer transition.
func (c ConnectionData) Terminal() bool {
	return c.Status != StatusPending
}

// UserData is the profile summary attached to pending-request and
// counterpart listings. Identities are minted by the external identity
// provider; this store only mirrors display fields.
type UserData struct {
	ID              string `json:"id"`
	Username        string `json:"username,omitempty"`
	FullName        string `json:"fullName,omitempty"`
	Email           string `json:"email,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// ConnectionStore persists connection records. Implementations must keep
// listing order deterministic (insertion order or created_at) because the
// caregiver client's default selection is "first entry as returned".
type ConnectionStore interface {
	Insert(ctx context.Context, c ConnectionData) error
	Get(ctx context.Context, id uuid.UUID) (ConnectionData, error)

	// FindActiveByPair returns the newest pending or approved record for the
	// pair, or ErrNotFound. Rejected history is not considered active.
	FindActiveByPair(ctx context.Context, caregiverID, elderlyID string) (ConnectionData, error)

	// Transition conditionally moves a record from one status to another and
	// stamps confirmedAt. Returns ErrNotFound if the record does not exist
	// and ErrWrongStatus if it is not in the expected from status; the record
	// is never mutated on failure.
	Transition(ctx context.Context, id uuid.UUID, from, to string, confirmedAt time.Time) (ConnectionData, error)

	ListByElderly(ctx context.Context, elderlyID, status string) ([]ConnectionData, error)
	ListByCaregiver(ctx context.Context, caregiverID, status string) ([]ConnectionData, error)

	// DeleteApprovedPair removes the approved relationship between the two
	// users and reports whether anything was removed. Removing an already
	// severed pair is not an error.
	DeleteApprovedPair(ctx context.Context, caregiverID, elderlyID string) (bool, error)
}

// UserStore resolves user profile summaries.
type UserStore interface {
	Get(ctx context.Context, id string) (UserData, error)
	Put(ctx context.Context, u UserData) error
}

// Stores bundles the store implementations picked at startup.
type Stores struct {
	Connections ConnectionStore
	Users       UserStore
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

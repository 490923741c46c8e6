// Package directory implements the connection directory: the request/approval
// state machine between caregivers and elderly users.
//
// The directory is the source of truth. Every successful write additionally
// publishes a best-effort notification event to the affected user's topic;
// clients that miss an event recover by re-listing.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/carelink/internal/store"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// Publisher delivers a notification event to a topic. The in-process bus
// implements it directly; the Redis bridge implements it when several
// directory instances share one hub topology.
type Publisher interface {
	Publish(topic string, evt protocol.Event)
}

// PendingRequest is a pending connection joined with the requesting
// caregiver's profile, shaped for the elderly client's approval prompt.
type PendingRequest struct {
	ID                       uuid.UUID `json:"id"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"createdAt"`
	CaregiverID              string    `json:"caregiverId"`
	CaregiverUsername        string    `json:"caregiverUsername,omitempty"`
	CaregiverFullName        string    `json:"caregiverFullName,omitempty"`
	CaregiverEmail           string    `json:"caregiverEmail,omitempty"`
	CaregiverProfileImageURL string    `json:"caregiverProfileImageUrl,omitempty"`
}

// Service enforces the pairing rules on top of the stores.
type Service struct {
	conns store.ConnectionStore
	users store.UserStore
	pub   Publisher

	// Serializes writes so the single-pending invariant holds for store
	// backends without a conditional-insert primitive.
	mu sync.Mutex

	now func() time.Time
}

func NewService(stores *store.Stores, pub Publisher) *Service {
	return &Service{
		conns: stores.Connections,
		users: stores.Users,
		pub:   pub,
		now:   time.Now,
	}
}

// CreateRequest records a caregiver's intent to pair with an elderly user.
//
// The caller must be the caregiver. While a pending request for the pair
// exists, duplicate calls return that same record (and re-publish its prompt
// event, which recovers a lost prompt on the elderly side). A pair that is
// already approved returns ErrAlreadyConnected; a rejected pair starts over
// with a fresh request.
func (s *Service) CreateRequest(ctx context.Context, callerID, caregiverID, elderlyID string) (store.ConnectionData, error) {
	if err := validateIDs(caregiverID, elderlyID); err != nil {
		return store.ConnectionData{}, err
	}
	if caregiverID == elderlyID {
		return store.ConnectionData{}, fmt.Errorf("%w: cannot pair a user with themselves", ErrInvalid)
	}
	if callerID != caregiverID {
		return store.ConnectionData{}, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.conns.FindActiveByPair(ctx, caregiverID, elderlyID)
	switch {
	case err == nil && existing.Status == store.StatusApproved:
		return store.ConnectionData{}, ErrAlreadyConnected
	case err == nil && existing.Status == store.StatusPending:
		// Redundant scan while a request is outstanding: idempotent.
		s.publishRequest(ctx, existing)
		return existing, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return store.ConnectionData{}, fmt.Errorf("find existing request: %w", err)
	}

	c := store.ConnectionData{
		ID:          store.GenNewID(),
		CaregiverID: caregiverID,
		ElderlyID:   elderlyID,
		Status:      store.StatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.conns.Insert(ctx, c); err != nil {
		return store.ConnectionData{}, fmt.Errorf("create request: %w", err)
	}

	slog.Info("connection requested",
		"connection", c.ID,
		"caregiver", caregiverID,
		"elderly", elderlyID,
	)
	s.publishRequest(ctx, c)
	return c, nil
}

// Approve resolves a pending request in the caregiver's favor. The caller
// must be the elderly user named by the request; terminal requests return
// ErrNotPending and are never mutated.
func (s *Service) Approve(ctx context.Context, callerID string, connectionID uuid.UUID) (store.ConnectionData, error) {
	return s.resolve(ctx, callerID, connectionID, store.StatusApproved, protocol.EventConnectionApproved)
}

// Reject resolves a pending request against the caregiver. Same rules as
// Approve.
func (s *Service) Reject(ctx context.Context, callerID string, connectionID uuid.UUID) (store.ConnectionData, error) {
	return s.resolve(ctx, callerID, connectionID, store.StatusRejected, protocol.EventConnectionRejected)
}

func (s *Service) resolve(ctx context.Context, callerID string, connectionID uuid.UUID, toStatus, eventKind string) (store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conns.Get(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ConnectionData{}, ErrNotFound
	}
	if err != nil {
		return store.ConnectionData{}, fmt.Errorf("load request: %w", err)
	}
	if callerID != c.ElderlyID {
		return store.ConnectionData{}, ErrUnauthorized
	}

	c, err = s.conns.Transition(ctx, connectionID, store.StatusPending, toStatus, s.now())
	if errors.Is(err, store.ErrWrongStatus) {
		return store.ConnectionData{}, ErrNotPending
	}
	if err != nil {
		return store.ConnectionData{}, fmt.Errorf("resolve request: %w", err)
	}

	slog.Info("connection resolved",
		"connection", c.ID,
		"status", c.Status,
		"elderly", c.ElderlyID,
		"caregiver", c.CaregiverID,
	)

	evt := protocol.Event{
		Kind:         eventKind,
		ConnectionID: c.ID.String(),
		ElderlyID:    c.ElderlyID,
		Status:       c.Status,
	}
	if c.ConfirmedAt != nil {
		evt.ConfirmedAt = c.ConfirmedAt.UnixMilli()
	}
	s.pub.Publish(protocol.TopicCaregiver(c.CaregiverID), evt)
	return c, nil
}

// PendingForElderly lists the caller's open approval prompts, joined with
// each requesting caregiver's profile.
func (s *Service) PendingForElderly(ctx context.Context, callerID, elderlyID string) ([]PendingRequest, error) {
	if callerID != elderlyID {
		return nil, ErrUnauthorized
	}

	pending, err := s.conns.ListByElderly(ctx, elderlyID, store.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	result := make([]PendingRequest, 0, len(pending))
	for _, c := range pending {
		pr := PendingRequest{
			ID:          c.ID,
			Status:      c.Status,
			CreatedAt:   c.CreatedAt,
			CaregiverID: c.CaregiverID,
		}
		if u, err := s.users.Get(ctx, c.CaregiverID); err == nil {
			pr.CaregiverUsername = u.Username
			pr.CaregiverFullName = u.FullName
			pr.CaregiverEmail = u.Email
			pr.CaregiverProfileImageURL = u.ProfileImageURL
		}
		result = append(result, pr)
	}
	return result, nil
}

// ElderlyForCaregiver lists the approved counterpart profiles for a
// caregiver, in stable store order (the caregiver client's default selection
// is the first entry).
func (s *Service) ElderlyForCaregiver(ctx context.Context, callerID, caregiverID string) ([]store.UserData, error) {
	if callerID != caregiverID {
		return nil, ErrUnauthorized
	}
	approved, err := s.conns.ListByCaregiver(ctx, caregiverID, store.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	result := make([]store.UserData, 0, len(approved))
	for _, c := range approved {
		result = append(result, s.profile(ctx, c.ElderlyID))
	}
	return result, nil
}

// CaregiversForElderly is the elderly-side counterpart listing.
func (s *Service) CaregiversForElderly(ctx context.Context, callerID, elderlyID string) ([]store.UserData, error) {
	if callerID != elderlyID {
		return nil, ErrUnauthorized
	}
	approved, err := s.conns.ListByElderly(ctx, elderlyID, store.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	result := make([]store.UserData, 0, len(approved))
	for _, c := range approved {
		result = append(result, s.profile(ctx, c.CaregiverID))
	}
	return result, nil
}

// Sever deletes the established connection between the two users outright.
// It is not part of the request/approval state machine: rejected history
// stays, only the approved relationship goes. Returns false when there was
// nothing to remove.
func (s *Service) Sever(ctx context.Context, callerID, caregiverID, elderlyID string) (bool, error) {
	if callerID != caregiverID && callerID != elderlyID {
		return false, ErrUnauthorized
	}

	removed, err := s.conns.DeleteApprovedPair(ctx, caregiverID, elderlyID)
	if err != nil {
		return false, fmt.Errorf("sever connection: %w", err)
	}
	if removed {
		slog.Info("connection severed", "caregiver", caregiverID, "elderly", elderlyID, "by", callerID)
	}
	return removed, nil
}

// --- Internal ---

func (s *Service) publishRequest(ctx context.Context, c store.ConnectionData) {
	evt := protocol.Event{
		Kind:          protocol.EventConnectionRequest,
		ConnectionID:  c.ID.String(),
		CaregiverID:   c.CaregiverID,
		CaregiverName: s.displayName(ctx, c.CaregiverID),
		ElderlyID:     c.ElderlyID,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt.UnixMilli(),
	}
	s.pub.Publish(protocol.TopicElderly(c.ElderlyID), evt)
}

// displayName falls back to the username and finally the raw identifier, so
// the elderly prompt always has something to show.
func (s *Service) displayName(ctx context.Context, userID string) string {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return userID
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return userID
}

// profile returns the stored profile or an id-only stub, so an approved
// connection is never hidden by a missing profile row.
func (s *Service) profile(ctx context.Context, userID string) store.UserData {
	if u, err := s.users.Get(ctx, userID); err == nil {
		return u
	}
	return store.UserData{ID: userID}
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if err := store.ValidateUserID(id); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConnectionStore is the in-memory ConnectionStore used in tests and
// as the zero-config default. Records are listed in insertion order.
type MemoryConnectionStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]ConnectionData
	order []uuid.UUID
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		byID: make(map[uuid.UUID]ConnectionData),
	}
}

func (s *MemoryConnectionStore) Insert(_ context.Context, c ConnectionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[c.ID] = c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *MemoryConnectionStore) Get(_ context.Context, id uuid.UUID) (ConnectionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return ConnectionData{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryConnectionStore) FindActiveByPair(_ context.Context, caregiverID, elderlyID string) (ConnectionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first: a rejected pair may have a later pending retry.
	for i := len(s.order) - 1; i >= 0; i-- {
		c := s.byID[s.order[i]]
		if c.CaregiverID == caregiverID && c.ElderlyID == elderlyID && c.Status != StatusRejected {
			return c, nil
		}
	}
	return ConnectionData{}, ErrNotFound
}

func (s *MemoryConnectionStore) Transition(_ context.Context, id uuid.UUID, from, to string, confirmedAt time.Time) (ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return ConnectionData{}, ErrNotFound
	}
	if c.Status != from {
		return ConnectionData{}, ErrWrongStatus
	}

	c.Status = to
	c.ConfirmedAt = &confirmedAt
	s.byID[id] = c
	return c, nil
}

func (s *MemoryConnectionStore) ListByElderly(_ context.Context, elderlyID, status string) ([]ConnectionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []ConnectionData{}
	for _, id := range s.order {
		c := s.byID[id]
		if c.ElderlyID == elderlyID && c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *MemoryConnectionStore) ListByCaregiver(_ context.Context, caregiverID, status string) ([]ConnectionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []ConnectionData{}
	for _, id := range s.order {
		c := s.byID[id]
		if c.CaregiverID == caregiverID && c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *MemoryConnectionStore) DeleteApprovedPair(_ context.Context, caregiverID, elderlyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	keep := s.order[:0]
	for _, id := range s.order {
		c := s.byID[id]
		if c.CaregiverID == caregiverID && c.ElderlyID == elderlyID && c.Status == StatusApproved {
			delete(s.byID, id)
			removed = true
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
	return removed, nil
}

// MemoryUserStore is the in-memory UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]UserData
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]UserData)}
}

func (s *MemoryUserStore) Get(_ context.Context, id string) (UserData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return UserData{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) Put(_ context.Context, u UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
	return nil
}

// NewMemoryStores creates a fully in-memory store bundle.
func NewMemoryStores() *Stores {
	return &Stores{
		Connections: NewMemoryConnectionStore(),
		Users:       NewMemoryUserStore(),
	}
}

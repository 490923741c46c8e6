// Package file implements the store interfaces on a single JSON document,
// for standalone deployments that do not run Postgres. The whole directory
// is held in memory and rewritten on every mutation; pairing traffic is far
// too low for that to matter.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/carelink/internal/store"
)

// document is the on-disk layout.
type document struct {
	Connections []store.ConnectionData `json:"connections"`
	Users       []store.UserData       `json:"users"`
}

// Store implements store.ConnectionStore and store.UserStore backed by a
// JSON file (e.g. ~/.carelink/data/directory.json).
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

// New creates the file store and loads any existing document.
func New(path string) *Store {
	s := &Store{path: path}
	s.load()
	return s
}

func (s *Store) Insert(_ context.Context, c store.ConnectionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Connections = append(s.doc.Connections, c)
	return s.save()
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.doc.Connections {
		if c.ID == id {
			return c, nil
		}
	}
	return store.ConnectionData{}, store.ErrNotFound
}

func (s *Store) FindActiveByPair(_ context.Context, caregiverID, elderlyID string) (store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.doc.Connections) - 1; i >= 0; i-- {
		c := s.doc.Connections[i]
		if c.CaregiverID == caregiverID && c.ElderlyID == elderlyID && c.Status != store.StatusRejected {
			return c, nil
		}
	}
	return store.ConnectionData{}, store.ErrNotFound
}

func (s *Store) Transition(_ context.Context, id uuid.UUID, from, to string, confirmedAt time.Time) (store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.doc.Connections {
		if c.ID != id {
			continue
		}
		if c.Status != from {
			return store.ConnectionData{}, store.ErrWrongStatus
		}
		c.Status = to
		c.ConfirmedAt = &confirmedAt
		s.doc.Connections[i] = c
		if err := s.save(); err != nil {
			return store.ConnectionData{}, err
		}
		return c, nil
	}
	return store.ConnectionData{}, store.ErrNotFound
}

func (s *Store) ListByElderly(_ context.Context, elderlyID, status string) ([]store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []store.ConnectionData{}
	for _, c := range s.doc.Connections {
		if c.ElderlyID == elderlyID && c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) ListByCaregiver(_ context.Context, caregiverID, status string) ([]store.ConnectionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []store.ConnectionData{}
	for _, c := range s.doc.Connections {
		if c.CaregiverID == caregiverID && c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) DeleteApprovedPair(_ context.Context, caregiverID, elderlyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	keep := s.doc.Connections[:0]
	for _, c := range s.doc.Connections {
		if c.CaregiverID == caregiverID && c.ElderlyID == elderlyID && c.Status == store.StatusApproved {
			removed = true
			continue
		}
		keep = append(keep, c)
	}
	s.doc.Connections = keep
	if !removed {
		return false, nil
	}
	return true, s.save()
}

func (s *Store) GetUser(ctx context.Context, id string) (store.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return store.UserData{}, store.ErrNotFound
}

func (s *Store) PutUser(_ context.Context, u store.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Users {
		if existing.ID == u.ID {
			s.doc.Users[i] = u
			return s.save()
		}
	}
	s.doc.Users = append(s.doc.Users, u)
	return s.save()
}

// --- Internal ---

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // file doesn't exist yet
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		slog.Error("directory file: failed to parse, starting empty", "path", s.path, "error", err)
	}
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	return nil
}

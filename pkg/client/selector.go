package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// selectorState is the on-disk shape of the persisted selection.
type selectorState struct {
	CurrentElderlyID string `json:"currentElderlyId"`
}

// Selector tracks which connected elderly user a caregiver device is acting
// on. Pure local logic: the selection is device state, never shared with the
// server. It survives restarts through a small JSON file.
//
// Resolution rule: the persisted id wins if it is still in the connected set;
// otherwise the first entry of that set; otherwise no selection.
type Selector struct {
	path string

	mu        sync.Mutex
	connected []User
	current   string
}

// NewSelector loads the persisted selection from path (created on first
// write). A missing or corrupt file is treated as "nothing selected".
func NewSelector(path string) *Selector {
	s := &Selector{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var st selectorState
	if err := json.Unmarshal(data, &st); err != nil {
		return s
	}
	s.current = st.CurrentElderlyID
	return s
}

// SetConnected replaces the connected set and re-resolves the selection.
// If the previous selection is no longer connected the fallback result is
// persisted, so a restart lands on the same recipient.
func (s *Selector) SetConnected(list []User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = append([]User(nil), list...)

	resolved := s.resolveLocked(s.current)
	if resolved == s.current {
		return nil
	}
	s.current = resolved
	return s.saveLocked()
}

// Select makes an explicit user choice and persists it immediately. The id
// must be in the connected set.
func (s *Selector) Select(elderlyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, u := range s.connected {
		if u.ID == elderlyID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("user %q is not in the connected set", elderlyID)
	}
	if elderlyID == s.current {
		return nil
	}
	s.current = elderlyID
	return s.saveLocked()
}

// Current returns the active recipient, or false when none is selected.
func (s *Selector) Current() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.connected {
		if u.ID == s.current {
			return u, true
		}
	}
	return User{}, false
}

// Connected returns the last known connected set.
func (s *Selector) Connected() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.connected...)
}

// resolveLocked applies the fallback rule. Caller holds s.mu.
func (s *Selector) resolveLocked(preferred string) string {
	for _, u := range s.connected {
		if u.ID == preferred {
			return preferred
		}
	}
	if len(s.connected) > 0 {
		return s.connected[0].ID
	}
	return ""
}

func (s *Selector) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(selectorState{CurrentElderlyID: s.current}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	return nil
}

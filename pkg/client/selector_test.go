package client

import (
	"os"
	"path/filepath"
	"testing"
)

func selectorPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "selection.json")
}

func TestSelectorFallback(t *testing.T) {
	set := []User{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}

	tests := []struct {
		name      string
		persisted string
		connected []User
		want      string
		wantOK    bool
	}{
		{"persisted still connected", "e2", set, "e2", true},
		{"persisted gone falls back to first", "e9", set, "e1", true},
		{"nothing persisted picks first", "", set, "e1", true},
		{"empty set selects nothing", "e1", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := selectorPath(t)
			if tt.persisted != "" {
				os.MkdirAll(filepath.Dir(path), 0700)
				os.WriteFile(path, []byte(`{"currentElderlyId":"`+tt.persisted+`"}`), 0600)
			}

			s := NewSelector(path)
			if err := s.SetConnected(tt.connected); err != nil {
				t.Fatal(err)
			}
			u, ok := s.Current()
			if ok != tt.wantOK || u.ID != tt.want {
				t.Errorf("Current() = (%q, %v), want (%q, %v)", u.ID, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSelectorExplicitSwitchPersists(t *testing.T) {
	path := selectorPath(t)

	s := NewSelector(path)
	s.SetConnected([]User{{ID: "e1"}, {ID: "e2"}})
	if err := s.Select("e2"); err != nil {
		t.Fatal(err)
	}

	// A fresh instance (process restart) sees the switch.
	again := NewSelector(path)
	again.SetConnected([]User{{ID: "e1"}, {ID: "e2"}})
	if u, ok := again.Current(); !ok || u.ID != "e2" {
		t.Errorf("after restart: (%q, %v), want (e2, true)", u.ID, ok)
	}
}

func TestSelectorSelectRejectsUnknown(t *testing.T) {
	s := NewSelector(selectorPath(t))
	s.SetConnected([]User{{ID: "e1"}})
	if err := s.Select("e9"); err == nil {
		t.Fatal("selecting a non-connected user succeeded")
	}
}

func TestSelectorInvalidationPersistsFallback(t *testing.T) {
	path := selectorPath(t)

	s := NewSelector(path)
	s.SetConnected([]User{{ID: "e1"}, {ID: "e2"}})
	s.Select("e2")

	// e2 is severed: selection falls back to e1 and the fallback is saved.
	if err := s.SetConnected([]User{{ID: "e1"}}); err != nil {
		t.Fatal(err)
	}
	if u, ok := s.Current(); !ok || u.ID != "e1" {
		t.Fatalf("after invalidation: (%q, %v)", u.ID, ok)
	}

	again := NewSelector(path)
	again.SetConnected([]User{{ID: "e1"}})
	if u, ok := again.Current(); !ok || u.ID != "e1" {
		t.Errorf("fallback not persisted: (%q, %v)", u.ID, ok)
	}
}

func TestSelectorToleratesCorruptFile(t *testing.T) {
	path := selectorPath(t)
	os.MkdirAll(filepath.Dir(path), 0700)
	os.WriteFile(path, []byte("{garbage"), 0600)

	s := NewSelector(path)
	s.SetConnected([]User{{ID: "e1"}})
	if u, ok := s.Current(); !ok || u.ID != "e1" {
		t.Errorf("corrupt state not recovered: (%q, %v)", u.ID, ok)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carelink.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	current, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, current)
	if err != nil {
		t.Fatal(err)
	}
	w.settle = 20 * time.Millisecond

	type change struct{ prev, next *Config }
	got := make(chan change, 1)
	w.OnReload(func(prev, next *Config) {
		got <- change{prev, next}
	})

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.prev.Log.Level != "info" || c.next.Log.Level != "debug" {
			t.Fatalf("reload = prev %q next %q, want info then debug", c.prev.Log.Level, c.next.Log.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}
}

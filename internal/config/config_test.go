package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Store.Driver != "file" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Client.ReconnectSeconds != 5 {
		t.Errorf("reconnect default = %d", cfg.Client.ReconnectSeconds)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carelink.yaml")
	content := `
server:
  port: 9090
  authToken: sekrit
store:
  driver: postgres
  postgresDsn: postgres://localhost/carelink
client:
  role: Recipient
  userId: e1
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.AuthToken != "sekrit" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("store = %+v", cfg.Store)
	}
	// Role aliases normalize.
	if cfg.Client.Role != RoleElderly {
		t.Errorf("role = %q, want elderly", cfg.Client.Role)
	}
	// Unset file values keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CARELINK_AUTH_TOKEN", "from-env")
	t.Setenv("CARELINK_REDIS_ADDR", "redis:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.AuthToken != "from-env" || cfg.Client.Token != "from-env" {
		t.Errorf("auth token override: %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis override: %+v", cfg.Redis)
	}
}

func TestLoadRejectsBadRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carelink.yaml")
	os.WriteFile(path, []byte("client:\n  role: nurse\n"), 0600)
	if _, err := Load(path); err == nil {
		t.Fatal("bad role accepted")
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"elderly", RoleElderly, false},
		{"Recipient", RoleElderly, false},
		{" CARER ", RoleCaregiver, false},
		{"caregiver", RoleCaregiver, false},
		{"doctor", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeRole(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

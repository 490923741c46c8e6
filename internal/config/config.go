// Package config loads the carelink configuration from YAML, applies
// defaults and environment overrides, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the directory API and notification hub.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuthToken is the shared bearer token gating the REST API. Empty
	// disables token auth (local development).
	AuthToken string `yaml:"authToken"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is one of "memory", "file", "postgres".
	Driver      string `yaml:"driver"`
	FilePath    string `yaml:"filePath"`
	PostgresDSN string `yaml:"postgresDsn"`
	// UserCacheSize bounds the in-memory profile cache. 0 disables it.
	UserCacheSize int `yaml:"userCacheSize"`
}

// RedisConfig enables multi-instance event fanout when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ClientConfig configures the device-side CLI commands.
type ClientConfig struct {
	ServerURL string `yaml:"serverUrl"`
	UserID    string `yaml:"userId"`
	Role      string `yaml:"role"`
	Token     string `yaml:"token"`
	// StateDir holds device-local state such as the active-recipient
	// selection.
	StateDir         string `yaml:"stateDir"`
	ReconnectSeconds int    `yaml:"reconnectSeconds"`
}

// LogConfig controls slog output.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Store:  StoreConfig{Driver: "file", FilePath: "carelink.json", UserCacheSize: 512},
		Client: ClientConfig{
			ServerURL:        "http://localhost:8080",
			Role:             RoleElderly,
			StateDir:         ".carelink",
			ReconnectSeconds: 5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Environment variables override file values for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Client.Role, err = NormalizeRole(cfg.Client.Role)
	if err != nil {
		return nil, err
	}
	if cfg.Client.ReconnectSeconds <= 0 {
		cfg.Client.ReconnectSeconds = 5
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments inject secrets without writing them to
// the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARELINK_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
		cfg.Client.Token = v
	}
	if v := os.Getenv("CARELINK_POSTGRES_DSN"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv("CARELINK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// ReconnectDelay returns the client reconnect interval as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Client.ReconnectSeconds) * time.Second
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vinayprograms/leasekit/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leasekit.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// ============================================================================
// Load Tests
// ============================================================================

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[store]
backend = "nats"
url = "nats://nats.internal:4222"
bucket = "tasks"

[reaper]
lock_ttl_seconds = 120

[search]
enabled = true
path = "/var/lib/leasekit/index.bleve"

[log]
level = "debug"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Store.Backend != "nats" || cfg.Store.URL != "nats://nats.internal:4222" || cfg.Store.Bucket != "tasks" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Reaper.LockTTLSeconds != 120 {
		t.Errorf("expected lock TTL 120s, got %d", cfg.Reaper.LockTTLSeconds)
	}
	if !cfg.Search.Enabled || cfg.Search.Path != "/var/lib/leasekit/index.bleve" {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "warn"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected default backend memory, got %s", cfg.Store.Backend)
	}
	if cfg.Reaper.LockTTLSeconds != 60 {
		t.Errorf("expected default lock TTL 60s, got %d", cfg.Reaper.LockTTLSeconds)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Log.Level)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeConfig(t, `store = [not toml`)

	_, err := LoadFile(path)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "postgres" }, wantErr: true},
		{name: "nats without url", mutate: func(c *Config) { c.Store.Backend = "nats"; c.Store.URL = "" }, wantErr: true},
		{name: "nats without bucket", mutate: func(c *Config) { c.Store.Backend = "nats"; c.Store.Bucket = "" }, wantErr: true},
		{name: "negative lock ttl", mutate: func(c *Config) { c.Reaper.LockTTLSeconds = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestLockTTL(t *testing.T) {
	cfg := Default()
	if cfg.Reaper.LockTTL().Seconds() != 60 {
		t.Errorf("expected 60s, got %v", cfg.Reaper.LockTTL())
	}
}

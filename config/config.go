// Package config loads engine configuration from standard locations.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/leasekit/errors"
)

// Config holds engine configuration loaded from leasekit.toml.
type Config struct {
	// Store selects the state backend.
	Store StoreConfig `toml:"store"`

	// Reaper configures the expiry sweep.
	Reaper ReaperConfig `toml:"reaper"`

	// Search configures the full-text task index.
	Search SearchConfig `toml:"search"`

	// Log configures logging.
	Log LogConfig `toml:"log"`
}

// StoreConfig selects and configures the state backend.
type StoreConfig struct {
	// Backend is "memory" or "nats".
	Backend string `toml:"backend"`

	// URL is the NATS server URL. Used only by the nats backend.
	URL string `toml:"url"`

	// Bucket is the JetStream KV bucket name.
	Bucket string `toml:"bucket"`
}

// ReaperConfig configures the expiry sweep.
type ReaperConfig struct {
	// LockTTLSeconds bounds how long a crashed sweep blocks the next.
	LockTTLSeconds int `toml:"lock_ttl_seconds"`
}

// LockTTL returns the sweep lock TTL as a duration.
func (r ReaperConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// SearchConfig configures the full-text task index.
type SearchConfig struct {
	// Enabled turns the index on.
	Enabled bool `toml:"enabled"`

	// Path is the index directory. Empty means in-memory.
	Path string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "memory",
			URL:     "nats://localhost:4222",
			Bucket:  "leasekit",
		},
		Reaper: ReaperConfig{LockTTLSeconds: 60},
		Log:    LogConfig{Level: "info"},
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"leasekit.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "leasekit", "leasekit.toml"))
		paths = append(paths, filepath.Join(home, ".leasekit", "leasekit.toml"))
	}

	return paths
}

// Load loads configuration from the first available standard location.
// No file found is not an error; defaults apply.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return Default(), "", nil
}

// LoadFile loads configuration from a specific file. Missing fields
// keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.InvalidInput("config file failed to parse",
			errors.WithCause(err), errors.WithMetadata("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "nats":
	default:
		return errors.InvalidInput("store backend must be memory or nats",
			errors.WithMetadata("backend", c.Store.Backend))
	}
	if c.Store.Backend == "nats" {
		if c.Store.URL == "" {
			return errors.InvalidInput("nats backend requires a server URL")
		}
		if c.Store.Bucket == "" {
			return errors.InvalidInput("nats backend requires a bucket name")
		}
	}
	if c.Reaper.LockTTLSeconds < 0 {
		return errors.InvalidInput("reaper lock TTL must not be negative")
	}
	return nil
}

// Package config loads the focal configuration file. Settings live in TOML
// under ~/.focal; a missing file means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FocalDir is the per-user directory holding configuration, saved state,
// and the event journal.
const FocalDir = ".focal"

// Config holds the tunable settings for the focal daemon and CLI.
type Config struct {
	// EventLogPath is the SQLite journal location.
	EventLogPath string `toml:"event_log_path"`

	// StatePath is the YAML saved-state location.
	StatePath string `toml:"state_path"`

	// DebounceMS is the head-watcher debounce window in milliseconds.
	DebounceMS int `toml:"debounce_ms"`
}

// ValidationError reports a config field that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Reason)
}

// DefaultPath returns the default config file location: ~/.focal/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, FocalDir, "config.toml"), nil
}

// Default returns the built-in configuration rooted under the user's home.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, FocalDir)
	return Config{
		EventLogPath: filepath.Join(dir, "events.db"),
		StatePath:    filepath.Join(dir, "state.yaml"),
		DebounceMS:   100,
	}, nil
}

// Load reads the config file at path, layering it over the defaults. A
// missing file yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path is controlled by the application
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.EventLogPath == "" {
		return &ValidationError{Field: "event_log_path", Reason: "must not be empty"}
	}
	if c.StatePath == "" {
		return &ValidationError{Field: "state_path", Reason: "must not be empty"}
	}
	if c.DebounceMS < 0 {
		return &ValidationError{Field: "debounce_ms", Reason: "must not be negative"}
	}
	return nil
}

// Debounce returns the head-watcher debounce window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

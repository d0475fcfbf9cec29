package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"focal/pkg/gitpool"
)

// LoadState reads saved session state from a YAML file. A missing file is
// not an error: the session simply starts with no saved preference.
func LoadState(path string) (gitpool.SavedState, error) {
	data, err := os.ReadFile(path) //nolint:gosec // state path is controlled by the application
	if errors.Is(err, os.ErrNotExist) {
		return gitpool.SavedState{}, nil
	}
	if err != nil {
		return gitpool.SavedState{}, fmt.Errorf("read state %s: %w", path, err)
	}

	var saved gitpool.SavedState
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return gitpool.SavedState{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	return saved, nil
}

// SaveState writes saved session state as YAML, creating parent directories
// as needed.
func SaveState(path string, saved gitpool.SavedState) error {
	data, err := yaml.Marshal(saved)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}

package infra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// StatusFile persists domain.DaemonStatus as JSON for the CLI.
type StatusFile struct {
	path string
}

// NewStatusFile creates a StatusFile at path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Path returns the file path.
func (f *StatusFile) Path() string {
	return f.path
}

// Write replaces the file atomically so readers never see a partial document.
func (f *StatusFile) Write(status domain.DaemonStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if err := writeFileAtomic(f.path, data, 0600); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

// Read loads the status. A missing file returns an error satisfying os.IsNotExist.
func (f *StatusFile) Read() (*domain.DaemonStatus, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var status domain.DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Remove deletes the file; a missing file is not an error.
func (f *StatusFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

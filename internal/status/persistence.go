// Package status persists the outcome of DataSource load cycles.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go Persistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// Persistence stores the last load cycle's status
type Persistence interface {
	// SaveStatus replaces the stored status
	SaveStatus(ctx context.Context, status *CycleStatus) error

	// LoadStatus returns the stored status, or an empty one on first run
	LoadStatus(ctx context.Context) (*CycleStatus, error)
}

type filePersistence struct {
	basePath string
}

// NewFilePersistence stores the status as JSON under basePath
func NewFilePersistence(basePath string) Persistence {
	return &filePersistence{
		basePath: basePath,
	}
}

func (f *filePersistence) path() string {
	return filepath.Join(f.basePath, StatusFileName)
}

// SaveStatus writes to a temporary file and renames it into place
func (f *filePersistence) SaveStatus(_ context.Context, status *CycleStatus) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	filePath := f.path()
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

func (f *filePersistence) LoadStatus(_ context.Context) (*CycleStatus, error) {
	// #nosec G304 -- path is basePath from configuration plus a fixed file name
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return &CycleStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status CycleStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}

package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/flock"
)

// Store persists summaries.
type Store interface {
	Save(ctx context.Context, path string, s *ExecutionSummary) error
	Load(ctx context.Context, path string) (*ExecutionSummary, error)
}

// FileStore writes summaries as indented JSON files.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes s to path atomically.
func (f *FileStore) Save(ctx context.Context, path string, s *ExecutionSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := flock.WriteFile(ctx, path, data, constants.LockTimeout); err != nil {
		return fmt.Errorf("failed to save summary %s: %w", path, err)
	}
	return nil
}

// Load reads a summary written by Save.
func (f *FileStore) Load(ctx context.Context, path string) (*ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //#nosec G304 -- path under the output directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, tabulaerrors.ErrSummaryNotFound)
		}
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var s ExecutionSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return &s, nil
}

// NopStore discards summaries.
type NopStore struct{}

// Save does nothing.
func (NopStore) Save(context.Context, string, *ExecutionSummary) error { return nil }

// Load always fails.
func (NopStore) Load(_ context.Context, path string) (*ExecutionSummary, error) {
	return nil, fmt.Errorf("%s: %w", path, tabulaerrors.ErrSummaryNotFound)
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = NopStore{}
)

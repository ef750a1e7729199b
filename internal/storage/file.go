// Package storage provides best-solution stores backed by a JSON file and Redis.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// DefaultFilePath is where the file store writes when no path is configured
const DefaultFilePath = "best_strategy.json"

// FileStore keeps the best solution in a single JSON document. Writes go to
// a temporary file that is renamed over the target, so readers never see a
// half-written record.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file store at path
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

// Path returns the file the store writes to
func (s *FileStore) Path() string {
	return s.path
}

// Save implements evolution.Store
func (s *FileStore) Save(ctx context.Context, record *evolution.BestSolutionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".best_strategy-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	log.Debug().
		Str("path", s.path).
		Str("run_id", record.RunID).
		Float64("fitness", record.Fitness).
		Msg("Best solution written to file")

	return nil
}

// Load implements evolution.Store
func (s *FileStore) Load(ctx context.Context) (*evolution.BestSolutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, evolution.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var record evolution.BestSolutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return &record, nil
}

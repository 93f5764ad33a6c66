package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cpunion/molt-bot/pkg/policy"
)

// FileStore keeps the state as a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file.
func (s *FileStore) Load(ctx context.Context) (policy.PolicyState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy.PolicyState{}, ErrNotFound
		}
		return policy.PolicyState{}, err
	}

	var state policy.PolicyState
	if err := json.Unmarshal(data, &state); err != nil {
		return policy.PolicyState{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return state.Normalize(), nil
}

// Save writes the state to a temporary file and renames it over the previous
// one, so a crash mid-write never leaves a truncated file behind.
func (s *FileStore) Save(ctx context.Context, state policy.PolicyState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state.Normalize(), "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

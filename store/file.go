package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/araea/oaibot/internal/fsstore"
	"github.com/araea/oaibot/persona"
)

// FileStore keeps the snapshot as a single JSON file, written atomically.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. The parent directory is
// created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (persona.Config, bool, error) {
	var cfg persona.Config
	ok, err := fsstore.ReadJSON(s.path, &cfg)
	if err != nil {
		return persona.Config{}, false, fmt.Errorf("load %s: %w", s.path, err)
	}
	return cfg, ok, nil
}

func (s *FileStore) Save(_ context.Context, cfg persona.Config) error {
	if err := fsstore.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	if err := fsstore.WriteJSONAtomic(s.path, cfg); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

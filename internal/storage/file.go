package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FileStore keeps one JSON document per phone under a directory. Writes go to a temp
// file that is renamed into place, so a reader never sees a partial document.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '+', r == '-':
			return r
		}
		return '_'
	}, id)
	return filepath.Join(f.dir, clean+".json")
}

func (f *FileStore) Get(_ context.Context, id string) (*Record, error) {
	p := f.path(id)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	rec := &Record{ID: id, Data: data}
	if info, err := os.Stat(p); err == nil {
		rec.UpdatedAt = info.ModTime()
	}
	return rec, nil
}

func (f *FileStore) Put(_ context.Context, rec *Record) error {
	return renameio.WriteFile(f.path(rec.ID), rec.Data, 0o600)
}

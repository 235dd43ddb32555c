// Package storage is the byte sink the download pipeline writes through.
// The pipeline never touches the filesystem directly; everything goes via
// Put so the output layout stays swappable.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists a blob at a relative path.
type Storage interface {
	Put(path string, data []byte) error
}

// Remover is optionally implemented by storages that can delete paths;
// used to drop per-page files once a chapter archive exists.
type Remover interface {
	RemoveDir(path string) error
}

// Dir is the filesystem-backed storage rooted at one output directory.
type Dir struct {
	Root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Dir{Root: root}, nil
}

func (d *Dir) Put(path string, data []byte) error {
	full := filepath.Join(d.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return os.WriteFile(full, data, 0644)
}

func (d *Dir) RemoveDir(path string) error {
	return os.RemoveAll(filepath.Join(d.Root, filepath.FromSlash(path)))
}

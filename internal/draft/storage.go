package draft

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for scan image storage
type Storage interface {
	// Save saves an image and returns the stored filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves an image by its stored filename
	Get(filename string) ([]byte, error)

	// Delete removes an image
	Delete(filename string) error
}

// LocalStorage keeps scan images on the local filesystem, fanned out
// into two-character shard directories so years of receipts never pile
// up in a single flat directory. Stored filenames start with the draft
// ID, so the shard is simply its first two characters.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// shardFor maps a stored filename to its shard directory.
func shardFor(name string) string {
	if len(name) < 2 {
		return "00"
	}
	return name[:2]
}

// imagePath resolves a stored filename to its on-disk location. Any
// path components smuggled in through an upload name are stripped, so
// a crafted filename cannot escape the storage root.
func (l *LocalStorage) imagePath(filename string) (string, string) {
	name := filepath.Base(filename)
	return name, filepath.Join(l.basePath, shardFor(name), name)
}

// Save writes an image into its shard directory
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name, path := l.imagePath(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads an image from its shard directory
func (l *LocalStorage) Get(filename string) ([]byte, error) {
	_, path := l.imagePath(filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an image from its shard directory
func (l *LocalStorage) Delete(filename string) error {
	_, path := l.imagePath(filename)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

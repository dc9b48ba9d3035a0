package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the minimal key/value persistence the cache store needs.
// Keys are hex digests; implementations must make Write atomic (a concurrent
// Read observes either the old or the new record, never a torn one).
type Storage interface {
	// Read returns the record bytes, or an error wrapping fs.ErrNotExist
	// when no record exists for the key.
	Read(key string) ([]byte, error)

	// Write persists the record, overwriting any existing one.
	Write(key string, data []byte) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(key string) error

	// List returns the keys of all persisted records.
	List() ([]string, error)
}

// recordExt is the filename extension of persisted cache records.
const recordExt = ".json"

// FileStorage persists one JSON file per cache key inside a directory.
// Writes go through a temp file followed by rename, which is atomic on
// POSIX filesystems.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed and returns the storage.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+recordExt)
}

// Read implements Storage.
func (s *FileStorage) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading cache record: %w", err)
	}
	return data, nil
}

// Write implements Storage.
func (s *FileStorage) Write(key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, key+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp record: %w", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publishing cache record: %w", err)
	}
	return nil
}

// Delete implements Storage. A missing record is treated as already gone so
// a sweep racing a lazy-expiry delete counts each record at most once.
func (s *FileStorage) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("deleting cache record: %w", err)
	}
	return nil
}

// List implements Storage.
func (s *FileStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, recordExt))
	}
	return keys, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// File keeps every key in its own file inside location directory.
// Writes go to a temp file first and renamed, so readers never see a partial value.
type File struct {
	location string
	mu       sync.Mutex
}

// NewFile makes file store for given location, creating the directory if needed
func NewFile(location string) (*File, error) {
	if err := os.MkdirAll(location, 0o700); err != nil {
		return nil, fmt.Errorf("can't make %s: %w", location, err)
	}
	return &File{location: location}, nil
}

// Get reads the file for key. Missing file is not an error
func (f *File) Get(key string) (value string, ok bool, err error) {
	fname, err := f.fileName(key)
	if err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(fname) // nolint gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", fname, err)
	}
	return string(data), true, nil
}

// Set writes value for key atomically
func (f *File) Set(key, value string) error {
	fname, err := f.fileName(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.location, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, fname); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, fname, err)
	}
	log.Printf("[DEBUG] saved %d bytes to %s", len(value), fname)
	return nil
}

// fileName maps key to the file inside location. Keys able to escape location are rejected.
func (f *File) fileName(key string) (string, error) {
	if key == "" || key == "." || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.location, key+".save"), nil
}

func (f *File) String() string {
	return fmt.Sprintf("file:%s", f.location)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cubeio/flatstore/internal/logger"
)

// Sentinel errors returned by Store operations. Callers match on these to
// pick the client-facing error message.
var (
	// ErrNotFound indicates the named file does not exist under the root.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName indicates a name that failed ValidFilename. The store
	// re-checks every name itself: it is the only place a client-supplied
	// name is joined into a path.
	ErrInvalidName = errors.New("invalid filename")
)

// Store is a flat-directory file store.
//
// Every file lives directly under the root; there are no subdirectories and
// no metadata beyond the file bytes themselves.
//
// Thread safety:
// The underlying filesystem operations are safe at the OS level, but
// concurrent writes to the same name race (last writer wins) and a read
// racing a concurrent write may observe either version. The protocol makes
// no stronger promise, so the store takes no locks.
type Store struct {
	root string
}

// Entry describes one stored file.
type Entry struct {
	Name string
	Size int64
}

// NewStore creates a store rooted at root, creating the directory if it
// does not exist.
func NewStore(ctx context.Context, root string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	logger.Debug("Storage root ready: %s", root)

	return &Store{root: root}, nil
}

// Root returns the storage root path.
func (s *Store) Root() string {
	return s.root
}

// path joins a validated name into the root. Returns ErrInvalidName for
// anything that fails validation, so no other method ever builds a path
// from an unchecked name.
func (s *Store) path(name string) (string, error) {
	if !ValidFilename(name) {
		return "", ErrInvalidName
	}

	return filepath.Join(s.root, name), nil
}

// Write stores data under name, overwriting any existing file. Returns the
// number of bytes written.
func (s *Store) Write(ctx context.Context, name string, data []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path, err := s.path(name)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", name, err)
	}

	return int64(len(data)), nil
}

// Read returns the full contents of the named file. Returns ErrNotFound if
// the file does not exist.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// List enumerates the regular files directly under the root. Enumeration
// order is whatever the OS and runtime yield; it is not a contract.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list storage root: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			// File removed between enumeration and stat. Skip it.
			continue
		}

		entries = append(entries, Entry{Name: de.Name(), Size: info.Size()})
	}

	return entries, nil
}

// Remove deletes the named file. Returns ErrNotFound if it does not exist.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

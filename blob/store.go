// Package blob stores recorded audio. Refs are opaque file names; the
// metadata row in the database is the only thing that points at a blob.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when the ref does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is the blob collaborator used by recordings and retention.
type Store interface {
	// Put persists data under a fresh ref ending in ext and returns the ref.
	Put(ctx context.Context, data []byte, ext string) (string, error)
	// Get reads the bytes behind ref.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes ref. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

// NewRef returns a random ref such as "3f6c...-....webm".
func NewRef(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return uuid.NewString() + ext
}

// ValidRef rejects refs that could escape the storage root or prefix.
func ValidRef(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}
	return !strings.ContainsAny(ref, `/\`) && !strings.Contains(ref, "..")
}

// LocalStore keeps blobs as files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(ctx context.Context, data []byte, ext string) (string, error) {
	ref := NewRef(ext)
	path := filepath.Join(s.dir, ref)

	// write to temp, then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return ref, nil
}

func (s *LocalStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if !ValidRef(ref) {
		return nil, fmt.Errorf("invalid ref %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if !ValidRef(ref) {
		return fmt.Errorf("invalid ref %q", ref)
	}
	if err := os.Remove(filepath.Join(s.dir, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested path does not exist in storage.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by Create when the path is already taken.
	ErrExists = errors.New("already exists")
)

// Storage provides an abstraction over key-value style file storage.
// Paths are slash separated and relative to the storage root.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	// Create writes data only if nothing exists at path yet.
	Create(ctx context.Context, path string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Package storage is the file-system abstraction behind the publish inbox.
package storage

import (
	"errors"
	"time"
)

// ErrExists is returned by Move when the target path is taken.
var ErrExists = errors.New("storage: target exists")

// Entry describes a request file found by List.
type Entry struct {
	Path      string // relative to the store root
	Size      int64
	Checksum  string // sha256 of the content, hex
	UpdatedAt time.Time
}

// Provider is the interface for inbox file operations. Paths are relative to
// the store root and may not escape it.
type Provider interface {
	// List returns the non-empty files directly inside dir whose name ends in
	// ext, oldest first.
	List(dir, ext string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath without replacing an existing file.
	Move(oldPath, newPath string) error
	// Abs resolves path to an absolute file-system path.
	Abs(path string) (string, error)
}

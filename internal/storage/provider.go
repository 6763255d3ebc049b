// Package storage defines the filesystem abstraction the repositories run on.
package storage

import (
	"errors"
	"time"
)

// ErrOutsideRoot is returned for any path that resolves outside the root.
var ErrOutsideRoot = errors.New("storage: path escapes root")

// FileInfo describes an entry under the root. Path is slash-separated and
// relative to the directory that was listed or walked.
type FileInfo struct {
	Path    string
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Provider is the interface for root-relative file operations.
// Missing entries are reported with errors wrapping fs.ErrNotExist and
// collisions with errors wrapping fs.ErrExist.
type Provider interface {
	// Root returns the absolute root directory (informational for Mem).
	Root() string
	// Exists reports whether path is present.
	Exists(path string) (bool, error)
	// Stat returns metadata for path.
	Stat(path string) (FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parents.
	Write(path string, content []byte) error
	// CreateExclusive writes a new file, failing with fs.ErrExist if path is taken.
	CreateExclusive(path string, content []byte) error
	// Mkdir creates a directory, failing with fs.ErrExist if path is taken.
	Mkdir(path string) error
	// ReadDir lists the direct children of dir.
	ReadDir(dir string) ([]FileInfo, error)
	// Walk returns every regular file under dir, with paths relative to dir.
	Walk(dir string) ([]FileInfo, error)
	// Delete removes path; directories are removed recursively.
	Delete(path string) error
}

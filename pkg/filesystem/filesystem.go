// Package filesystem defines the storage capability exposed by the file editor.
//
// A Filesystem is a rooted, hierarchical namespace of regular files and
// directories. Every path handed to a Filesystem is absolute and slash
// separated ("/", "/config", "/config/wifi.json") and has been produced by
// CleanPath. Implementations never resolve a path outside their root.
//
// Backends:
//   - local:  a directory on the host disk (pkg/filesystem/local)
//   - memory: an in-memory tree with an optional capacity (pkg/filesystem/memory)
//   - badger: a BadgerDB key-value store (pkg/filesystem/badger)
//   - sqlite: a SQLite database (pkg/filesystem/sqlite)
//   - s3:     an S3 bucket under a key prefix (pkg/filesystem/s3)
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writers to the
// same path are NOT serialized: the result is undefined (last writer wins,
// possibly interleaved bytes). The capability offers no locking primitive.
//
// Durability:
// Writes are not transactional. A crash in the middle of a write may leave a
// partially written file.
package filesystem

import (
	"context"
	"io"
	"time"
)

// EntryType is the kind of a directory entry.
type EntryType string

const (
	// EntryTypeFile is a regular file.
	EntryTypeFile EntryType = "file"

	// EntryTypeDirectory is a directory.
	EntryTypeDirectory EntryType = "dir"
)

// FileInfo describes a single entry.
type FileInfo struct {
	// Name is the last path segment ("" for the root).
	Name string

	// Path is the absolute path of the entry.
	Path string

	// Size is the content length in bytes. Always 0 for directories.
	Size int64

	// Type is file or dir.
	Type EntryType

	// ModTime is the last modification time, when the backend tracks it.
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (fi *FileInfo) IsDir() bool {
	return fi.Type == EntryTypeDirectory
}

// Stats reports storage usage.
type Stats struct {
	// TotalBytes is the capacity of the backend, 0 when unknown or unbounded.
	TotalBytes uint64 `json:"total_bytes"`

	// UsedBytes is the sum of all file sizes.
	UsedBytes uint64 `json:"used_bytes"`

	// Files is the number of regular files.
	Files uint64 `json:"files"`

	// Directories is the number of directories, root excluded.
	Directories uint64 `json:"directories"`
}

// FileWriter is an open write handle returned by Create.
//
// Bytes are appended in call order. Close must be called exactly once on
// every exit path; it flushes buffered data and releases the handle. Writes
// after Close fail.
type FileWriter interface {
	io.Writer
	io.Closer
}

// Aborter is implemented by writers that publish their content only on
// Close. Abort discards what was written and releases the handle in place
// of Close; the previous content at the path, if any, is left untouched.
type Aborter interface {
	Abort() error
}

// Filesystem is the storage capability consumed by the editor.
type Filesystem interface {
	// Stat returns information about the entry at path.
	//
	// Returns ErrNotFound if nothing exists at path.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Open returns a reader over the content of the regular file at path.
	// The caller must close the reader.
	//
	// Returns ErrNotFound or ErrIsDirectory.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create opens path for writing, creating the file or truncating an
	// existing one. The parent directory must already exist.
	//
	// Returns ErrNotFound (missing parent), ErrNotDirectory (parent is a
	// file), ErrIsDirectory (path is a directory), ErrStorageFull,
	// ErrReadOnly or ErrInvalidPath (root).
	Create(ctx context.Context, path string) (FileWriter, error)

	// ReadDir lists the direct children of the directory at path in the
	// backend's natural enumeration order.
	//
	// Returns ErrNotFound or ErrNotDirectory.
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)

	// Remove deletes a regular file or an empty directory.
	//
	// Returns ErrNotFound, ErrNotEmpty, ErrReadOnly or ErrInvalidPath (root).
	Remove(ctx context.Context, path string) error

	// Mkdir creates a single directory. The parent must already exist.
	//
	// Returns ErrExists, ErrNotFound (missing parent), ErrNotDirectory,
	// ErrReadOnly or ErrStorageFull.
	Mkdir(ctx context.Context, path string) error

	// Stats returns storage usage.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases backend resources.
	Close() error
}

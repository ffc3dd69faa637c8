package filesystem

import "errors"

// Standard filesystem errors.
//
// Backends wrap these with context and callers test them with errors.Is:
//
//	if errors.Is(err, filesystem.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound indicates the path, or its parent, does not exist.
	//
	// HTTP: 404 Not Found
	ErrNotFound = errors.New("no such file or directory")

	// ErrExists indicates an entry already exists at the path.
	//
	// HTTP: 409 Conflict
	ErrExists = errors.New("file exists")

	// ErrNotEmpty indicates a directory removal was rejected because the
	// directory still has children.
	//
	// HTTP: 409 Conflict
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNotDirectory indicates a directory operation hit a regular file.
	//
	// HTTP: 409 Conflict
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory indicates a file operation hit a directory.
	//
	// HTTP: 409 Conflict
	ErrIsDirectory = errors.New("is a directory")

	// ErrInvalidPath indicates a malformed path or one that escapes the root.
	// Returned before any storage access.
	//
	// HTTP: 400 Bad Request
	ErrInvalidPath = errors.New("invalid path")

	// ErrStorageFull indicates the backend has no space left.
	//
	// HTTP: 507 Insufficient Storage
	ErrStorageFull = errors.New("storage full")

	// ErrReadOnly indicates the backend rejects mutations.
	//
	// HTTP: 403 Forbidden
	ErrReadOnly = errors.New("filesystem is read-only")

	// ErrClosed indicates a write on a handle that was already closed.
	ErrClosed = errors.New("file already closed")
)

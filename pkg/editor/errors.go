package editor

import (
	"errors"
	"net/http"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Error is an error with a stable code and the HTTP status it maps to. Its
// message is safe to show to clients.
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

// NewError constructs an Error.
func NewError(code, message string, statusCode int) Error {
	return Error{Code: code, Message: message, StatusCode: statusCode}
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// body is what the client sees.
func (e Error) body() string {
	return e.Code + ": " + e.Message + "\n"
}

var (
	ErrUnauthorized     = NewError("ERR_UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
	ErrInvalidPath      = NewError("ERR_INVALID_PATH", "invalid path", http.StatusBadRequest)
	ErrBadRequest       = NewError("ERR_BAD_REQUEST", "malformed request", http.StatusBadRequest)
	ErrMissingPath      = NewError("ERR_BAD_REQUEST", "missing path parameter", http.StatusBadRequest)
	ErrMissingDir       = NewError("ERR_BAD_REQUEST", "missing dir field", http.StatusBadRequest)
	ErrChunkOrder       = NewError("ERR_BAD_REQUEST", "upload chunk out of order", http.StatusBadRequest)
	ErrUploadTruncated  = NewError("ERR_BAD_REQUEST", "upload body ended before the final chunk", http.StatusBadRequest)
	ErrNoUpload         = NewError("ERR_BAD_REQUEST", "no data field in upload", http.StatusBadRequest)
	ErrNotFound         = NewError("ERR_NOT_FOUND", "file not found", http.StatusNotFound)
	ErrExists           = NewError("ERR_EXISTS", "file exists", http.StatusConflict)
	ErrNotEmpty         = NewError("ERR_NOT_EMPTY", "directory not empty", http.StatusConflict)
	ErrConflict         = NewError("ERR_CONFLICT", "path conflicts with an existing entry", http.StatusConflict)
	ErrReadOnly         = NewError("ERR_READ_ONLY", "filesystem is read-only", http.StatusForbidden)
	ErrMethodNotAllowed = NewError("ERR_METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
	ErrStorageFull      = NewError("ERR_STORAGE_FULL", "no space left on device", http.StatusInsufficientStorage)
	ErrIO               = NewError("ERR_IO", "filesystem error", http.StatusInternalServerError)
)

// errorFromFilesystem maps a filesystem error to the Error sent to the
// client. Errors that already are an Error pass through unchanged.
func errorFromFilesystem(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, filesystem.ErrInvalidPath):
		return ErrInvalidPath
	case errors.Is(err, filesystem.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, filesystem.ErrExists):
		return ErrExists
	case errors.Is(err, filesystem.ErrNotEmpty):
		return ErrNotEmpty
	case errors.Is(err, filesystem.ErrNotDirectory), errors.Is(err, filesystem.ErrIsDirectory):
		return ErrConflict
	case errors.Is(err, filesystem.ErrReadOnly):
		return ErrReadOnly
	case errors.Is(err, filesystem.ErrStorageFull):
		return ErrStorageFull
	default:
		return ErrIO
	}
}

// writeError sends e with a plain text body.
func writeError(w http.ResponseWriter, e Error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write([]byte(e.body()))
}

package editor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/metrics"
)

// maxFieldSize bounds the non-file multipart fields (path, dir).
const maxFieldSize = 4096

type sessionState int

const (
	stateWriting sessionState = iota
	stateClosed
	stateAborted
)

// uploadSession is the open write handle of one request.
type uploadSession struct {
	mu      sync.Mutex
	path    string
	w       filesystem.FileWriter
	written int64
	state   sessionState
	err     error
}

// HandleUpload processes one chunk of an upload.
//
// Chunks of one key arrive in increasing index order; index is the byte
// offset of data in the file. The chunk at index 0 validates p and opens it
// (create or truncate). final closes the file. A first chunk that is also
// final with no data creates an empty file.
//
// Once a session is aborted, later chunks for the key return the error that
// aborted it. An index that does not match the bytes written so far aborts
// the session with ErrChunkOrder. Bytes already written are left in place.
func (h *Handler) HandleUpload(ctx context.Context, key, p string, index int64, data []byte, final bool) error {
	h.mu.Lock()
	s := h.sessions[key]
	h.mu.Unlock()

	if index == 0 {
		if s != nil {
			s.mu.Lock()
			aborted, prevErr := s.state == stateAborted, s.err
			s.mu.Unlock()
			if aborted {
				return prevErr
			}
			// A new file part of the same request; drop any unfinished one.
			h.AbortUpload(key)
		}
		s = h.openSession(ctx, key, p)
	}

	if s == nil {
		return ErrChunkOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateAborted:
		return s.err
	case stateClosed:
		return ErrChunkOrder
	}

	if index != s.written {
		logger.Warn("Editor: upload of %s got chunk at %d after %d bytes", s.path, index, s.written)
		h.abortLocked(s, ErrChunkOrder)
		return ErrChunkOrder
	}

	if len(data) > 0 {
		n, err := s.w.Write(data)
		s.written += int64(n)
		h.metrics.RecordBytesTransferred(metrics.DirectionWrite, int64(n))
		if err != nil {
			logger.Warn("Editor: write to %s failed after %d bytes: %v", s.path, s.written, err)
			h.abortLocked(s, err)
			return err
		}
	}

	if !final {
		return nil
	}

	err := s.w.Close()
	s.w = nil
	if err != nil {
		logger.Warn("Editor: close of %s failed: %v", s.path, err)
		h.abortLocked(s, err)
		return err
	}

	s.state = stateClosed
	h.finish(metrics.UploadCompleted)
	h.dropSession(key, s)
	logger.Info("Editor: uploaded %s (%d bytes)", s.path, s.written)
	return nil
}

// dropSession removes s from the table unless key was reopened since.
func (h *Handler) dropSession(key string, s *uploadSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[key] == s {
		delete(h.sessions, key)
	}
}

// openSession registers a session for key. A failed validation or Create
// still registers it, already aborted, so later chunks are discarded.
func (h *Handler) openSession(ctx context.Context, key, p string) *uploadSession {
	s := &uploadSession{path: p}

	clean, err := h.cleanPath(p)
	if err == nil && filesystem.IsRoot(clean) {
		err = ErrInvalidPath
	}
	if err == nil {
		s.path = clean
		s.w, err = h.fs.Create(ctx, clean)
	}

	if err != nil {
		logger.Warn("Editor: cannot open %s for upload: %v", p, err)
		s.state = stateAborted
		s.err = err
		h.metrics.RecordUploadFinished(metrics.UploadFailed)
	} else {
		s.state = stateWriting
		h.metrics.RecordUploadStarted()
		h.metrics.SetActiveUploads(int(h.active.Add(1)))
		logger.Debug("Editor: upload of %s started", clean)
	}

	h.mu.Lock()
	h.sessions[key] = s
	h.mu.Unlock()
	return s
}

// abortLocked releases the handle of a Writing session and marks it aborted.
// Writers that can discard their content are aborted instead of closed.
// Caller must hold s.mu.
func (h *Handler) abortLocked(s *uploadSession, cause error) {
	if s.state != stateWriting {
		return
	}
	if s.w != nil {
		var err error
		if a, ok := s.w.(filesystem.Aborter); ok {
			err = a.Abort()
		} else {
			err = s.w.Close()
		}
		if err != nil {
			logger.Debug("Editor: release of aborted upload %s: %v", s.path, err)
		}
		s.w = nil
	}
	s.state = stateAborted
	s.err = cause
	h.finish(metrics.UploadAborted)
}

// finish accounts for a session leaving Writing.
func (h *Handler) finish(outcome string) {
	h.metrics.RecordUploadFinished(outcome)
	h.metrics.SetActiveUploads(int(h.active.Add(-1)))
}

// AbortUpload releases the session of key: an open handle is closed and the
// session is dropped. It reports whether a handle was still open. Safe to
// call on every exit path, including after a completed upload.
func (h *Handler) AbortUpload(key string) bool {
	h.mu.Lock()
	s := h.sessions[key]
	delete(h.sessions, key)
	h.mu.Unlock()

	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateWriting {
		return false
	}
	logger.Warn("Editor: upload of %s aborted after %d bytes", s.path, s.written)
	h.abortLocked(s, ErrUploadTruncated)
	return true
}

// ActiveUploads returns the number of open upload handles.
func (h *Handler) ActiveUploads() int {
	return int(h.active.Load())
}

// isMultipart reports whether r carries a multipart/form-data body.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// handleMultipart walks the parts of a multipart POST in order:
//   - path: base directory for the parts that follow
//   - dir:  directory to create
//   - data: file to upload, cut into chunks and fed to HandleUpload
//
// Other parts are skipped. The first failure ends the request; the deferred
// AbortUpload releases whatever handle is still open.
func (h *Handler) handleMultipart(w http.ResponseWriter, r *http.Request) error {
	key := uuid.NewString()
	defer h.AbortUpload(key)

	if id := web.RequestIDFromContext(r.Context()); id != "" {
		logger.Debug("Editor: request %s uses upload key %s", id, key)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return ErrBadRequest
	}

	ctx := r.Context()
	base := filesystem.Root
	done := 0

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ErrUploadTruncated
		}

		switch part.FormName() {
		case "path":
			if base, err = readField(part); err != nil {
				return err
			}

		case "dir":
			name, err := readField(part)
			if err != nil {
				return err
			}
			p, err := h.targetPath(base, name)
			if err != nil {
				return err
			}
			if filesystem.IsRoot(p) {
				return ErrExists
			}
			if err := h.fs.Mkdir(ctx, p); err != nil {
				return err
			}
			logger.Info("Editor: created directory %s", p)
			done++

		case "data":
			if part.FileName() == "" {
				return ErrBadRequest
			}
			p, err := h.targetPath(base, part.FileName())
			if err != nil {
				return err
			}
			if err := h.streamPart(ctx, key, p, part); err != nil {
				return err
			}
			done++

		default:
			_, _ = io.Copy(io.Discard, part)
		}
		_ = part.Close()
	}

	if done == 0 {
		return ErrNoUpload
	}
	writeOK(w)
	return nil
}

// streamPart cuts part into chunks of the configured size and hands them to
// HandleUpload. A chunk is final when the part has no byte left after it.
func (h *Handler) streamPart(ctx context.Context, key, p string, part io.Reader) error {
	size := h.config.UploadChunkSize
	br := bufio.NewReaderSize(part, size)
	buf := make([]byte, size)

	var index int64
	for {
		n, err := readChunk(br, buf)
		final := false
		switch {
		case errors.Is(err, io.EOF):
			final = true
		case err != nil:
			return ErrUploadTruncated
		default:
			if _, perr := br.Peek(1); errors.Is(perr, io.EOF) {
				final = true
			} else if perr != nil {
				return ErrUploadTruncated
			}
		}

		if err := h.HandleUpload(ctx, key, p, index, buf[:n], final); err != nil {
			return err
		}
		index += int64(n)

		if final {
			return nil
		}
	}
}

// readChunk fills buf from r. It returns io.EOF only once r is exhausted,
// possibly together with a short chunk.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// readField reads a small text field.
func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", ErrUploadTruncated
	}
	if len(data) > maxFieldSize {
		return "", ErrInvalidPath
	}
	return strings.TrimSpace(string(data)), nil
}

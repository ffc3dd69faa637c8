package editor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

// writeOK sends an empty 200.
func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

// handleDelete removes a file or an empty directory.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) error {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		return ErrMissingPath
	}
	p, err := h.cleanPath(raw)
	if err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return ErrInvalidPath
	}

	if err := h.fs.Remove(r.Context(), p); err != nil {
		return err
	}

	logger.Info("Editor: removed %s", p)
	writeOK(w)
	return nil
}

// handlePut creates an empty file, or a directory when the raw path ends in
// a slash. An existing entry is a conflict.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) error {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		return ErrMissingPath
	}
	p, err := h.cleanPath(raw)
	if err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return ErrExists
	}

	if strings.HasSuffix(raw, "/") {
		return h.mkdir(w, r.Context(), p)
	}

	if _, err := h.fs.Stat(r.Context(), p); err == nil {
		return ErrExists
	} else if !errors.Is(err, filesystem.ErrNotFound) {
		return err
	}

	fw, err := h.fs.Create(r.Context(), p)
	if err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}

	logger.Info("Editor: created %s", p)
	writeOK(w)
	return nil
}

// handleMkdir creates the directory named by the dir field of a query or
// urlencoded form, relative to the optional path field.
func (h *Handler) handleMkdir(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return ErrBadRequest
	}
	dir := r.Form.Get("dir")
	if dir == "" {
		return ErrMissingDir
	}

	p, err := h.targetPath(r.Form.Get("path"), dir)
	if err != nil {
		return err
	}
	return h.mkdir(w, r.Context(), p)
}

// mkdir creates p and answers 200. The root always exists.
func (h *Handler) mkdir(w http.ResponseWriter, ctx context.Context, p string) error {
	if filesystem.IsRoot(p) {
		return ErrExists
	}
	if err := h.fs.Mkdir(ctx, p); err != nil {
		return err
	}

	logger.Info("Editor: created directory %s", p)
	writeOK(w)
	return nil
}

// targetPath resolves name against the base directory given by a path
// field. An absolute name ignores the base. A relative name may not climb
// out of the base directory.
func (h *Handler) targetPath(base, name string) (string, error) {
	rel, err := h.cleanPath(name)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(name, "/") {
		return rel, nil
	}

	dir, err := h.cleanPath(base)
	if err != nil {
		return "", err
	}
	return h.cleanPath(filesystem.Join(dir, rel))
}

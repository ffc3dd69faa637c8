package editor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/metrics"
)

// DirectoryEntry is one element of a listing.
type DirectoryEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// writeJSON sends v with status 200.
func writeJSON(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

// handleList sends the listing of dir in the driver's enumeration order.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, dir string) error {
	infos, err := h.fs.ReadDir(r.Context(), dir)
	if err != nil {
		return err
	}

	entries := make([]DirectoryEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, DirectoryEntry{
			Name: fi.Name,
			Size: fi.Size,
			Type: string(fi.Type),
		})
	}

	logger.Debug("Editor: listed %s (%d entries)", dir, len(entries))
	return writeJSON(w, entries)
}

// handleGet streams a regular file or lists a directory.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) error {
	p, err := h.cleanPath(r.URL.Query().Get("path"))
	if err != nil {
		return err
	}

	info, err := h.fs.Stat(r.Context(), p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return h.handleList(w, r, p)
	}

	rc, err := h.fs.Open(r.Context(), p)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	// No Content-Length: the file can change between Stat and Open.
	w.Header().Set("Content-Type", contentType(info.Name))
	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(info.Name))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rc)
	h.metrics.RecordBytesTransferred(metrics.DirectionRead, n)
	if err != nil && !errors.Is(err, r.Context().Err()) {
		// Headers are gone; the client sees a short body.
		logger.Warn("Editor: read of %s stopped after %d bytes: %v", p, n, err)
	}
	return nil
}

// handleStats sends filesystem usage.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.fs.Stats(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, stats)
}

// Package editor implements the HTTP file editor: a handler that lists,
// reads, creates, deletes and uploads files on a filesystem.Filesystem.
//
// Endpoints, relative to the mount prefix (default /edit):
//
//	GET    /edit                      listing of the root as JSON
//	GET    /edit?path=<p>[&download]  file content, or listing for a directory
//	GET    /edit?stats                filesystem usage as JSON
//	DELETE /edit?path=<p>             remove a file or empty directory
//	PUT    /edit?path=<p>             create an empty file (or directory for a trailing /)
//	POST   /edit  dir=<p>             create a directory
//	POST   /edit  multipart data      chunked upload (optional path field first)
//
// When credentials are configured every request must carry matching HTTP
// Basic credentials; otherwise it gets 401 before any filesystem access.
package editor

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/identity"
	"github.com/marmos91/fseditor/pkg/metrics"
)

// DeviceIDHeader carries the chip identity on every response when an
// identity provider is set.
const DeviceIDHeader = "X-Device-Id"

// Config holds the editor settings.
//
// Default values (applied by New if zero):
//   - MountPrefix: /edit
//   - Realm: Login Required
//   - UploadChunkSize: 4096
//   - MaxPathLength: 255
type Config struct {
	// MountPrefix is the URL path the editor answers on.
	MountPrefix string `mapstructure:"mount_prefix" yaml:"mount_prefix" validate:"omitempty,startswith=/"`

	// Username and Password enable Basic authentication when either is set.
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Realm is sent in the WWW-Authenticate challenge.
	Realm string `mapstructure:"realm" yaml:"realm"`

	// UploadChunkSize is the size of the chunks an upload body is cut into
	// before being written.
	UploadChunkSize int `mapstructure:"upload_chunk_size" yaml:"upload_chunk_size" validate:"min=0,max=16777216"`

	// MaxPathLength rejects longer paths with 400. Set from the filesystem
	// section of the configuration.
	MaxPathLength int `mapstructure:"-" yaml:"-" json:"-"`
}

func (c *Config) applyDefaults() {
	if c.MountPrefix == "" {
		c.MountPrefix = "/edit"
	}
	if len(c.MountPrefix) > 1 {
		c.MountPrefix = strings.TrimRight(c.MountPrefix, "/")
	}
	if c.Realm == "" {
		c.Realm = DefaultRealm
	}
	if c.UploadChunkSize <= 0 {
		c.UploadChunkSize = 4096
	}
	if c.MaxPathLength <= 0 {
		c.MaxPathLength = 255
	}
}

// Handler is the file editor. It implements web.Handler.
//
// Credentials, the filesystem and the metrics sink are fixed at
// construction. Upload sessions live in a table keyed by request and never
// outlive the request that opened them.
//
// Thread safety:
// ServeHTTP is called concurrently by net/http. The session table is
// guarded by a mutex; the filesystem must be safe for concurrent use.
type Handler struct {
	config      Config
	credentials Credentials
	fs          filesystem.Filesystem
	metrics     metrics.EditorMetrics
	chipID      func() uint32

	mu       sync.Mutex
	sessions map[string]*uploadSession
	active   atomic.Int64
}

// New creates a Handler serving fs.
//
// Parameters:
//   - fs: The filesystem to expose (required)
//   - config: Editor settings; zero values get defaults
//   - m: Optional metrics sink (nil = no-op)
//
// Panics if fs is nil.
func New(fs filesystem.Filesystem, config Config, m metrics.EditorMetrics) *Handler {
	if fs == nil {
		panic("filesystem cannot be nil")
	}
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoopEditorMetrics()
	}

	h := &Handler{
		config:      config,
		credentials: Credentials{Username: config.Username, Password: config.Password},
		fs:          fs,
		metrics:     m,
		sessions:    make(map[string]*uploadSession),
	}

	if h.credentials.Enabled() {
		logger.Debug("Editor mounted at %s with Basic authentication (realm %q)", config.MountPrefix, config.Realm)
	} else {
		logger.Warn("Editor mounted at %s without authentication", config.MountPrefix)
	}
	return h
}

// SetIdentity sets the chip identity provider. Each response then carries
// the X-Device-Id header. Must be called before serving.
func (h *Handler) SetIdentity(provider func() uint32) {
	h.chipID = provider
}

// MountPrefix returns the normalized prefix.
func (h *Handler) MountPrefix() string {
	return h.config.MountPrefix
}

// CanHandle reports whether r targets the editor: the path is the mount
// prefix (a trailing slash is tolerated) and the method is GET, POST,
// DELETE or PUT.
func (h *Handler) CanHandle(r *http.Request) bool {
	p := r.URL.Path
	if p != h.config.MountPrefix && p != h.config.MountPrefix+"/" {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPut:
		return true
	default:
		return false
	}
}

// statusWriter records the status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(p)
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// ServeHTTP authenticates the request and dispatches it by method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	op := operation(r)

	defer func() {
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordRequest(op, status, time.Since(start))
	}()

	if h.chipID != nil {
		sw.Header().Set(DeviceIDHeader, identity.Format(h.chipID()))
	}

	if !h.authenticate(r) {
		logger.Debug("Editor: rejected unauthenticated %s from %s", r.Method, r.RemoteAddr)
		h.challenge(sw)
		return
	}

	var err error
	switch op {
	case opList:
		err = h.handleList(sw, r, filesystem.Root)
	case opRead:
		err = h.handleGet(sw, r)
	case opStats:
		err = h.handleStats(sw, r)
	case opDelete:
		err = h.handleDelete(sw, r)
	case opCreate:
		err = h.handlePut(sw, r)
	case opMkdir:
		err = h.handleMkdir(sw, r)
	case opUpload:
		err = h.handleMultipart(sw, r)
	default:
		err = ErrMethodNotAllowed
	}

	if err != nil {
		h.fail(sw, r, op, err)
	}
}

// fail logs err and sends its coarse form.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := errorFromFilesystem(err)
	if e.StatusCode >= http.StatusInternalServerError {
		logger.Error("Editor %s %s failed: %v", op, r.URL.RawQuery, err)
	} else {
		logger.Debug("Editor %s %s rejected: %v", op, r.URL.RawQuery, err)
	}
	writeError(w, e)
}

// Operation names used in logs and metrics.
const (
	opList   = "list"
	opRead   = "read"
	opStats  = "stats"
	opDelete = "delete"
	opCreate = "create"
	opMkdir  = "mkdir"
	opUpload = "upload"
	opOther  = "other"
)

// operation classifies r without reading its body.
func operation(r *http.Request) string {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		if q.Has("stats") {
			return opStats
		}
		if q.Get("path") == "" {
			return opList
		}
		return opRead
	case http.MethodDelete:
		return opDelete
	case http.MethodPut:
		return opCreate
	case http.MethodPost:
		if isMultipart(r) {
			return opUpload
		}
		return opMkdir
	default:
		return opOther
	}
}

// cleanPath validates a client path and returns its canonical form.
func (h *Handler) cleanPath(raw string) (string, error) {
	if len(raw) > h.config.MaxPathLength {
		return "", ErrInvalidPath
	}
	p, err := filesystem.CleanPath(raw)
	if err != nil {
		return "", ErrInvalidPath
	}
	return p, nil
}

package editor

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/filesystem/memory"
	"github.com/stretchr/testify/require"
)

// countingFS counts every call that reaches the filesystem.
type countingFS struct {
	filesystem.Filesystem
	calls atomic.Int64
}

func (c *countingFS) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	c.calls.Add(1)
	return c.Filesystem.Stat(ctx, p)
}

func (c *countingFS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	c.calls.Add(1)
	return c.Filesystem.Open(ctx, p)
}

func (c *countingFS) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	c.calls.Add(1)
	return c.Filesystem.Create(ctx, p)
}

func (c *countingFS) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	c.calls.Add(1)
	return c.Filesystem.ReadDir(ctx, p)
}

func (c *countingFS) Remove(ctx context.Context, p string) error {
	c.calls.Add(1)
	return c.Filesystem.Remove(ctx, p)
}

func (c *countingFS) Mkdir(ctx context.Context, p string) error {
	c.calls.Add(1)
	return c.Filesystem.Mkdir(ctx, p)
}

func (c *countingFS) Stats(ctx context.Context) (*filesystem.Stats, error) {
	c.calls.Add(1)
	return c.Filesystem.Stats(ctx)
}

// recordingMetrics keeps what the editor reports.
type recordingMetrics struct {
	mu       sync.Mutex
	requests map[string][]int
	written  int64
	read     int64
	started  int
	finished map[string]int
	active   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{requests: map[string][]int{}, finished: map[string]int{}}
}

func (m *recordingMetrics) RecordRequest(op string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[op] = append(m.requests[op], status)
}

func (m *recordingMetrics) RecordBytesTransferred(direction string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if direction == "read" {
		m.read += n
	} else {
		m.written += n
	}
}

func (m *recordingMetrics) RecordUploadStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RecordUploadFinished(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[outcome]++
}

func (m *recordingMetrics) SetActiveUploads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

// fixture bundles a handler with the filesystem behind it.
type fixture struct {
	h       *Handler
	fs      *countingFS
	metrics *recordingMetrics
}

func newFixture(t *testing.T, cfg Config) *fixture {
	return newFixtureWith(t, cfg, memory.Config{})
}

func newFixtureWith(t *testing.T, cfg Config, memCfg memory.Config) *fixture {
	t.Helper()
	mem, err := memory.NewMemoryFilesystem(context.Background(), memCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	fs := &countingFS{Filesystem: mem}
	m := newRecordingMetrics()
	return &fixture{h: New(fs, cfg, m), fs: fs, metrics: m}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (f *fixture) del(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodDelete, target, nil))
}

func (f *fixture) put(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodPut, target, nil))
}

// formPart is one multipart field; a non-empty filename makes it a file.
type formPart struct {
	name     string
	filename string
	content  []byte
}

func field(name, value string) formPart {
	return formPart{name: name, content: []byte(value)}
}

func file(filename string, content []byte) formPart {
	return formPart{name: "data", filename: filename, content: content}
}

// multipartBody encodes parts and returns the body with its content type.
func multipartBody(t *testing.T, parts ...formPart) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.name, p.filename)
		} else {
			w, err = mw.CreateFormField(p.name)
		}
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func uploadRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/edit", bytes.NewReader(body))
	req.Header.Set("Content-Type", ct)
	return req
}

func formRequest(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// pattern returns n deterministic bytes.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + i/256)
	}
	return b
}

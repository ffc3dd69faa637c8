package editor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/filesystem/memory"
	fstesting "github.com/marmos91/fseditor/pkg/filesystem/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanHandle(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		method string
		target string
		want   bool
	}{
		{http.MethodGet, "/edit", true},
		{http.MethodGet, "/edit/", true},
		{http.MethodGet, "/edit?path=a.txt", true},
		{http.MethodPost, "/edit", true},
		{http.MethodDelete, "/edit", true},
		{http.MethodPut, "/edit", true},
		{http.MethodHead, "/edit", false},
		{http.MethodPatch, "/edit", false},
		{http.MethodGet, "/editor", false},
		{http.MethodGet, "/edit/sub", false},
		{http.MethodGet, "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			assert.Equal(t, tt.want, f.h.CanHandle(req))
		})
	}
	assert.Zero(t, f.fs.calls.Load(), "CanHandle must not touch the filesystem")
}

func TestCanHandle_CustomPrefix(t *testing.T) {
	f := newFixture(t, Config{MountPrefix: "/fs/"})
	assert.Equal(t, "/fs", f.h.MountPrefix())
	assert.True(t, f.h.CanHandle(httptest.NewRequest(http.MethodGet, "/fs", nil)))
	assert.False(t, f.h.CanHandle(httptest.NewRequest(http.MethodGet, "/edit", nil)))
}

func TestAuthentication(t *testing.T) {
	cfg := Config{Username: "admin", Password: "secret"}

	requests := map[string]func() *http.Request{
		"list":   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit", nil) },
		"read":   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit?path=a.txt", nil) },
		"stats":  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit?stats", nil) },
		"delete": func() *http.Request { return httptest.NewRequest(http.MethodDelete, "/edit?path=a.txt", nil) },
		"put":    func() *http.Request { return httptest.NewRequest(http.MethodPut, "/edit?path=a.txt", nil) },
		"mkdir":  func() *http.Request { return formRequest("/edit", "dir=logs") },
		"upload": func() *http.Request { return uploadRequest(t, file("a.txt", []byte("hello"))) },
	}

	for name, build := range requests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, cfg)

			rec := f.do(build())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `Basic realm="Login Required"`, rec.Header().Get("WWW-Authenticate"))

			req := build()
			req.SetBasicAuth("admin", "wrong")
			rec = f.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req = build()
			req.SetBasicAuth("wrong", "secret")
			rec = f.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			assert.Zero(t, f.fs.calls.Load(), "rejected requests must not touch the filesystem")
			assert.Zero(t, f.h.ActiveUploads())
		})
	}
}

func TestAuthentication_Accepted(t *testing.T) {
	f := newFixture(t, Config{Username: "admin", Password: "secret", Realm: "device"})

	req := httptest.NewRequest(http.MethodGet, "/edit", nil)
	req.SetBasicAuth("admin", "secret")
	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Evaluated per request, nothing is remembered.
	rec = f.get("/edit")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="device"`, rec.Header().Get("WWW-Authenticate"))
}

func TestCredentials(t *testing.T) {
	assert.False(t, Credentials{}.Enabled())
	assert.True(t, Credentials{Username: "u"}.Enabled())
	assert.True(t, Credentials{Password: "p"}.Enabled())
	assert.True(t, Credentials{Username: "u", Password: "p"}.Matches("u", "p"))
	assert.False(t, Credentials{Username: "u", Password: "p"}.Matches("u", "p2"))
	assert.False(t, Credentials{Username: "u", Password: "p"}.Matches("", ""))
}

func TestPathTraversal(t *testing.T) {
	requests := map[string]func() *http.Request{
		"read":        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit?path=../etc/passwd", nil) },
		"read nested": func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit?path=a/../../b", nil) },
		"nul":         func() *http.Request { return httptest.NewRequest(http.MethodGet, "/edit?path=a%00b", nil) },
		"delete":      func() *http.Request { return httptest.NewRequest(http.MethodDelete, "/edit?path=../../x", nil) },
		"put":         func() *http.Request { return httptest.NewRequest(http.MethodPut, "/edit?path=../x", nil) },
		"mkdir":       func() *http.Request { return formRequest("/edit", "dir=../x") },
		"upload base": func() *http.Request { return uploadRequest(t, field("path", "../.."), file("x.txt", []byte("x"))) },
		"upload dir":  func() *http.Request { return uploadRequest(t, field("dir", "../up")) },
	}

	for name, build := range requests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Config{})
			rec := f.do(build())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "ERR_INVALID_PATH")
			assert.Zero(t, f.fs.calls.Load(), "invalid paths must be rejected before any filesystem call")
		})
	}
}

func TestPathTooLong(t *testing.T) {
	f := newFixture(t, Config{MaxPathLength: 8})
	rec := f.get("/edit?path=/abcdefghij")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.fs.calls.Load())
}

func TestList_EmptyRoot(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.get("/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", rec.Body.String())
}

func TestList_Entries(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(uploadRequest(t, file("a.txt", []byte("abc")))).Code)
	require.Equal(t, http.StatusOK, f.do(formRequest("/edit", "dir=logs")).Code)

	rec := f.get("/edit")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []DirectoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.ElementsMatch(t, []DirectoryEntry{
		{Name: "a.txt", Size: 3, Type: "file"},
		{Name: "logs", Size: 0, Type: "dir"},
	}, entries)
}

func TestGet_DirectoryListsIt(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(formRequest("/edit", "dir=logs")).Code)
	require.Equal(t, http.StatusOK,
		f.do(uploadRequest(t, field("path", "/logs"), file("boot.log", []byte("ok")))).Code)

	rec := f.get("/edit?path=logs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"boot.log","size":2,"type":"file"}]`, rec.Body.String())
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.get("/edit?path=missing.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_NOT_FOUND: file not found\n", rec.Body.String())
}

func TestGet_ContentTypeAndDownload(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(uploadRequest(t,
		file("index.html", []byte("<html></html>")),
		file("blob", []byte{1, 2, 3}),
	)).Code)

	rec := f.get("/edit?path=index.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html></html>", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	rec = f.get("/edit?path=blob&download")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="blob"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}

// growingFS reports a size from before the last write, as Stat does when an
// upload lands between Stat and Open.
type growingFS struct {
	filesystem.Filesystem
}

func (g *growingFS) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	info, err := g.Filesystem.Stat(ctx, p)
	if err != nil || info.IsDir() {
		return info, err
	}
	stale := *info
	stale.Size += 100
	return &stale, nil
}

func TestGet_SizeChangedSinceStat(t *testing.T) {
	mem, err := memory.NewMemoryFilesystem(context.Background(), memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	fstesting.MustWriteFile(t, mem, "/a.txt", []byte("hello"), 5)

	srv := httptest.NewServer(New(&growingFS{Filesystem: mem}, Config{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/edit?path=a.txt")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestStats(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(uploadRequest(t, file("a.bin", pattern(10)))).Code)
	require.Equal(t, http.StatusOK, f.do(formRequest("/edit", "dir=d")).Code)

	rec := f.get("/edit?stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats filesystem.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(10), stats.UsedBytes)
	assert.Equal(t, uint64(1), stats.Files)
	assert.Equal(t, uint64(1), stats.Directories)
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(uploadRequest(t, file("a.txt", []byte("x")))).Code)

	assert.Equal(t, http.StatusOK, f.del("/edit?path=a.txt").Code)
	assert.Equal(t, http.StatusNotFound, f.del("/edit?path=a.txt").Code)
}

func TestDelete_Rejections(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusOK, f.do(formRequest("/edit", "dir=d")).Code)
	require.Equal(t, http.StatusOK, f.do(uploadRequest(t, field("path", "d"), file("x", []byte("x")))).Code)

	rec := f.del("/edit?path=d")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_EMPTY")

	assert.Equal(t, http.StatusBadRequest, f.del("/edit").Code)
	assert.Equal(t, http.StatusBadRequest, f.del("/edit?path=/").Code)

	assert.Equal(t, http.StatusOK, f.del("/edit?path=d/x").Code)
	assert.Equal(t, http.StatusOK, f.del("/edit?path=d").Code)
}

func TestMkdir(t *testing.T) {
	f := newFixture(t, Config{})

	assert.Equal(t, http.StatusOK, f.do(formRequest("/edit", "dir=logs")).Code)

	rec := f.do(formRequest("/edit", "dir=logs"))
	assert.Equal(t, http.StatusConflict, rec.Code, "existing directory is a conflict")
	assert.Contains(t, rec.Body.String(), "ERR_EXISTS")

	assert.Equal(t, http.StatusNotFound, f.do(formRequest("/edit", "dir=missing/child")).Code)
	assert.Equal(t, http.StatusOK, f.do(formRequest("/edit?dir=logs/2024", "")).Code, "dir in the query")
	assert.Equal(t, http.StatusOK, f.do(formRequest("/edit", "path=logs&dir=2025")).Code, "dir relative to path")
	assert.Equal(t, http.StatusBadRequest, f.do(formRequest("/edit", "")).Code)

	require.Equal(t, http.StatusOK, f.do(uploadRequest(t, file("f.txt", []byte("x")))).Code)
	assert.Equal(t, http.StatusConflict, f.do(formRequest("/edit", "dir=f.txt")).Code, "name taken by a file")

	rec = f.get("/edit?path=logs")
	assert.JSONEq(t, `[{"name":"2024","size":0,"type":"dir"},{"name":"2025","size":0,"type":"dir"}]`, rec.Body.String())
}

func TestMkdir_Multipart(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(uploadRequest(t, field("dir", "www")))
	assert.Equal(t, http.StatusOK, rec.Code)

	info, err := f.fs.Stat(t.Context(), "/www")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPut(t *testing.T) {
	f := newFixture(t, Config{})

	assert.Equal(t, http.StatusOK, f.put("/edit?path=new.txt").Code)
	rec := f.get("/edit?path=new.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusConflict, f.put("/edit?path=new.txt").Code)

	assert.Equal(t, http.StatusOK, f.put("/edit?path=conf/").Code)
	info, err := f.fs.Stat(t.Context(), "/conf")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, http.StatusBadRequest, f.put("/edit").Code)
	assert.Equal(t, http.StatusNotFound, f.put("/edit?path=nope/file").Code)
}

func TestReadOnlyFilesystem(t *testing.T) {
	f := newFixture(t, Config{})
	h := New(filesystem.ReadOnly(f.fs), Config{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, formRequest("/edit", "dir=x"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, file("a.txt", []byte("x"))))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, h.ActiveUploads())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/edit", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeviceIDHeader(t *testing.T) {
	f := newFixture(t, Config{Username: "u", Password: "p"})
	f.h.SetIdentity(func() uint32 { return 0xCCDDEEFF })

	rec := f.get("/edit")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "CCDDEEFF", rec.Header().Get(DeviceIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(httptest.NewRequest(http.MethodPatch, "/edit", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	f.get("/edit")
	f.get("/edit?path=missing")
	f.do(uploadRequest(t, file("a.txt", []byte("hello"))))
	f.get("/edit?path=a.txt")

	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	assert.Equal(t, []int{200}, f.metrics.requests["list"])
	assert.Equal(t, []int{404, 200}, f.metrics.requests["read"])
	assert.Equal(t, []int{200}, f.metrics.requests["upload"])
	assert.Equal(t, int64(5), f.metrics.written)
	assert.Equal(t, int64(5), f.metrics.read)
	assert.Equal(t, 1, f.metrics.started)
	assert.Equal(t, 1, f.metrics.finished["completed"])
	assert.Equal(t, 0, f.metrics.active)
}

func TestErrorFromFilesystem(t *testing.T) {
	tests := []struct {
		err  error
		want Error
	}{
		{filesystem.ErrInvalidPath, ErrInvalidPath},
		{filesystem.ErrNotFound, ErrNotFound},
		{filesystem.ErrExists, ErrExists},
		{filesystem.ErrNotEmpty, ErrNotEmpty},
		{filesystem.ErrNotDirectory, ErrConflict},
		{filesystem.ErrIsDirectory, ErrConflict},
		{filesystem.ErrReadOnly, ErrReadOnly},
		{filesystem.ErrStorageFull, ErrStorageFull},
		{assert.AnError, ErrIO},
		{ErrChunkOrder, ErrChunkOrder},
	}
	for _, tt := range tests {
		t.Run(tt.want.Code+"/"+tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorFromFilesystem(tt.err))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/html", contentType("index.HTM"))
	assert.Equal(t, "application/json", contentType("config.json"))
	assert.Equal(t, "application/x-gzip", contentType("app.js.gz"))
	assert.Equal(t, "application/octet-stream", contentType("firmware"))
	assert.Equal(t, "application/octet-stream", contentType("data.zzunknown"))
}

package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/identity"
	"github.com/marmos91/fseditor/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFilesystem_Local(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := &FilesystemConfig{
		Type:  "local",
		Local: map[string]any{"path": dir, "create_dir": true},
	}

	fs, err := CreateFilesystem(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	require.NoError(t, fs.Mkdir(context.Background(), "/www"))
	info, err := fs.Stat(context.Background(), "/www")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateFilesystem_LocalMissingPath(t *testing.T) {
	cfg := &FilesystemConfig{Type: "local", Local: map[string]any{}}

	_, err := CreateFilesystem(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestCreateFilesystem_Memory(t *testing.T) {
	// Values coming from env vars are strings
	cfg := &FilesystemConfig{Type: "memory", Memory: map[string]any{"max_bytes": "10"}}

	fs, err := CreateFilesystem(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	w, err := fs.Create(context.Background(), "/a.bin")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 11))
	assert.ErrorIs(t, err, filesystem.ErrStorageFull)
	_ = w.Close()
}

func TestCreateFilesystem_Badger(t *testing.T) {
	cfg := &FilesystemConfig{Type: "badger", Badger: map[string]any{"in_memory": true}}

	fs, err := CreateFilesystem(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	entries, err := fs.ReadDir(context.Background(), filesystem.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateFilesystem_BadgerMissingPath(t *testing.T) {
	cfg := &FilesystemConfig{Type: "badger", Badger: map[string]any{}}

	_, err := CreateFilesystem(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_path is required")
}

func TestCreateFilesystem_SQLite(t *testing.T) {
	cfg := &FilesystemConfig{
		Type:   "sqlite",
		SQLite: map[string]any{"path": filepath.Join(t.TempDir(), "fs.db")},
	}

	fs, err := CreateFilesystem(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	_, err = fs.Stat(context.Background(), filesystem.Root)
	assert.NoError(t, err)
}

func TestCreateFilesystem_S3MissingOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		wantErr string
	}{
		{"no bucket", map[string]any{"region": "eu-west-1"}, "bucket is required"},
		{"no region", map[string]any{"bucket": "devices"}, "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "s3", S3: tt.options})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeS3Options(t *testing.T) {
	opts, err := decodeS3Options(map[string]any{
		"region":           "us-east-1",
		"bucket":           "devices",
		"key_prefix":       "abc/",
		"endpoint":         "http://localhost:4566",
		"force_path_style": "true",
		"part_size":        "5242880",
	})
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", opts.Region)
	assert.Equal(t, "devices", opts.Bucket)
	assert.Equal(t, "abc/", opts.KeyPrefix)
	assert.Equal(t, "http://localhost:4566", opts.Endpoint)
	assert.True(t, opts.ForcePathStyle)
	assert.Equal(t, int64(5242880), opts.PartSize)
}

func TestCreateFilesystem_UnknownType(t *testing.T) {
	_, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "floppy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filesystem type")
}

func TestCreateFilesystem_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateFilesystem(ctx, &FilesystemConfig{Type: "memory"})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestCreateFilesystem_ReadOnly(t *testing.T) {
	cfg := &FilesystemConfig{Type: "memory", ReadOnly: true}

	fs, err := CreateFilesystem(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	assert.ErrorIs(t, fs.Mkdir(context.Background(), "/www"), filesystem.ErrReadOnly)
	_, err = fs.ReadDir(context.Background(), filesystem.Root)
	assert.NoError(t, err)
}

func TestCreateIdentitySource(t *testing.T) {
	src, err := CreateIdentitySource(&IdentityConfig{Source: "static", MAC: "aa:bb:cc:dd:ee:ff"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCCDDEEFF), identity.ChipID(src))

	src, err = CreateIdentitySource(&IdentityConfig{Source: "interface", Interface: "eth0"})
	require.NoError(t, err)
	assert.Equal(t, identity.InterfaceSource{Name: "eth0"}, src)

	src, err = CreateIdentitySource(&IdentityConfig{Source: "none"})
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = CreateIdentitySource(&IdentityConfig{Source: "static", MAC: "zz"})
	assert.Error(t, err)

	_, err = CreateIdentitySource(&IdentityConfig{Source: "serial"})
	assert.Error(t, err)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	m := InitializeMetrics(cfg)
	assert.Nil(t, m.Server)
	require.NotNil(t, m.EditorMetrics)
	m.EditorMetrics.RecordUploadStarted()
}

func TestCreateAdapters(t *testing.T) {
	fs, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	cfg := GetDefaultConfig()
	cfg.Editor.MountPrefix = "/files"

	m := &MetricsResult{
		Server:        metrics.NewServer(metrics.ServerConfig{Port: 0}),
		EditorMetrics: metrics.NewNoopEditorMetrics(),
	}

	adapters, err := CreateAdapters(cfg, fs, m, func() uint32 { return 0xCCDDEEFF })
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.Equal(t, "HTTP", adapters[0].Protocol())
	assert.Equal(t, "metrics", adapters[1].Protocol())

	httpAdapter, ok := adapters[0].(*web.HTTPAdapter)
	require.True(t, ok)

	rec := httptest.NewRecorder()
	httpAdapter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "CCDDEEFF", rec.Header().Get("X-Device-Id"))
}

func TestCreateAdapters_WithoutMetrics(t *testing.T) {
	fs, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	adapters, err := CreateAdapters(GetDefaultConfig(), fs, nil, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, 8080, adapters[0].Port())
}

func TestCreateAdapters_NoneEnabled(t *testing.T) {
	fs, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	cfg := GetDefaultConfig()
	cfg.Adapters.HTTP.Enabled = false

	_, err = CreateAdapters(cfg, fs, nil, nil)
	assert.Error(t, err)
}

func TestCreateAdapters_GarbageCollector(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.Type = "badger"
	cfg.Filesystem.Badger = map[string]any{"in_memory": true}
	cfg.Filesystem.GC.Enabled = true

	fs, err := CreateFilesystem(context.Background(), &cfg.Filesystem)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	adapters, err := CreateAdapters(cfg, fs, nil, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.Equal(t, "gc", adapters[1].Protocol())
	assert.Zero(t, adapters[1].Port())
}

func TestCreateAdapters_GarbageCollectorUnsupported(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.GC.Enabled = true

	fs, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	adapters, err := CreateAdapters(cfg, fs, nil, nil)
	require.NoError(t, err)
	assert.Len(t, adapters, 1, "the memory backend never orphans content")
}

package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/config"
	"github.com/marmos91/fseditor/pkg/identity"
	"github.com/marmos91/fseditor/pkg/server"
)

// TestContext provides a complete testing environment with:
// - a running fseditor server on an ephemeral port
// - an HTTP client pointed at the editor mount
// - cleanup registered on T
type TestContext struct {
	T       *testing.T
	Config  *TestConfig
	Editor  *config.Config
	BaseURL string
	Client  *http.Client

	cancel context.CancelFunc
	done   chan error
}

// Option adjusts the server configuration before start.
type Option func(*config.Config)

// NewTestContext starts a server for config and waits until it accepts
// connections.
func NewTestContext(t *testing.T, testCfg *TestConfig, opts ...Option) *TestContext {
	t.Helper()

	if testing.Verbose() {
		logger.SetLevel("DEBUG")
	}

	fsCfg, err := testCfg.FilesystemConfig(t.TempDir())
	if err != nil {
		t.Fatalf("Invalid test configuration: %v", err)
	}

	cfg := config.GetDefaultConfig()
	cfg.Filesystem = fsCfg
	cfg.Identity.Source = "none"
	cfg.Adapters.HTTP.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	for _, opt := range opts {
		opt(cfg)
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Invalid server configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tc := &TestContext{
		T:      t,
		Config: testCfg,
		Editor: cfg,
		Client: &http.Client{Timeout: 30 * time.Second},
		cancel: cancel,
		done:   make(chan error, 1),
	}

	httpAdapter := tc.startServer(ctx)

	select {
	case <-httpAdapter.Ready():
	case err := <-tc.done:
		cancel()
		t.Fatalf("Server exited before listening: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("Timed out waiting for the HTTP listener")
	}

	tc.BaseURL = fmt.Sprintf("http://127.0.0.1:%d%s", httpAdapter.Port(), cfg.Editor.MountPrefix)
	t.Cleanup(tc.Cleanup)
	return tc
}

// startServer wires the server the same way the fseditor binary does and
// serves it in the background.
func (tc *TestContext) startServer(ctx context.Context) *web.HTTPAdapter {
	tc.T.Helper()
	cfg := tc.Editor

	fs, err := config.CreateFilesystem(ctx, &cfg.Filesystem)
	if err != nil {
		tc.T.Fatalf("Failed to create filesystem: %v", err)
	}

	var chipID func() uint32
	src, err := config.CreateIdentitySource(&cfg.Identity)
	if err != nil {
		_ = fs.Close()
		tc.T.Fatalf("Failed to create identity source: %v", err)
	}
	if src != nil {
		chipID = identity.NewProvider(src)
	}

	adapters, err := config.CreateAdapters(cfg, fs, nil, chipID)
	if err != nil {
		_ = fs.Close()
		tc.T.Fatalf("Failed to create adapters: %v", err)
	}

	srv := server.New(fs, cfg.Server.ShutdownTimeout)
	var httpAdapter *web.HTTPAdapter
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = fs.Close()
			tc.T.Fatalf("Failed to add %s adapter: %v", a.Protocol(), err)
		}
		if h, ok := a.(*web.HTTPAdapter); ok {
			httpAdapter = h
		}
	}
	if httpAdapter == nil {
		_ = fs.Close()
		tc.T.Fatal("No HTTP adapter configured")
	}

	go func() { tc.done <- srv.Serve(ctx) }()
	return httpAdapter
}

// Cleanup stops the server and waits for it to release the filesystem.
func (tc *TestContext) Cleanup() {
	tc.cancel()

	select {
	case err := <-tc.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			tc.T.Errorf("Server stopped with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		tc.T.Error("Timed out waiting for the server to stop")
	}
}

// runOnAllConfigs runs fn once per backend, each with its own server.
func runOnAllConfigs(t *testing.T, fn func(t *testing.T, tc *TestContext), opts ...Option) {
	t.Helper()

	for _, cfg := range AllConfigs() {
		t.Run(cfg.Name, func(t *testing.T) {
			fn(t, NewTestContext(t, cfg, opts...))
		})
	}
}

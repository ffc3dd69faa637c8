package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/fseditor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Filesystem.Type = "memory"
	cfg.Identity.Source = "static"
	cfg.Identity.MAC = "aa:bb:cc:dd:ee:ff"
	cfg.Adapters.HTTP.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidBackend(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Filesystem.Type = "sqlite"

	err := run(context.Background(), cfg)
	assert.ErrorContains(t, err, "path is required")
}

func TestConfigureLogging_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fseditor.log")
	require.NoError(t, configureLogging(&config.LoggingConfig{Level: "INFO", Format: "json", Output: path}))
	t.Cleanup(func() {
		_ = configureLogging(&config.LoggingConfig{Level: "INFO", Format: "text", Output: "stderr"})
	})

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

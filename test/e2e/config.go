package e2e

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/fseditor/pkg/config"
)

// BackendType represents the filesystem backend a test run uses
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendLocal  BackendType = "local"
	BackendBadger BackendType = "badger"
	BackendSQLite BackendType = "sqlite"
)

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name    string
	Backend BackendType
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return string(tc.Backend)
}

// FilesystemConfig returns the filesystem section for the backend, with any
// on-disk state placed under dir.
func (tc *TestConfig) FilesystemConfig(dir string) (config.FilesystemConfig, error) {
	cfg := config.FilesystemConfig{
		Type:          string(tc.Backend),
		MaxPathLength: 255,
	}

	switch tc.Backend {
	case BackendMemory:
	case BackendLocal:
		cfg.Local = map[string]any{"path": filepath.Join(dir, "data"), "create_dir": true}
	case BackendBadger:
		cfg.Badger = map[string]any{"db_path": filepath.Join(dir, "badger")}
	case BackendSQLite:
		cfg.SQLite = map[string]any{"path": filepath.Join(dir, "fs.db")}
	default:
		return cfg, fmt.Errorf("unknown backend type: %s", tc.Backend)
	}
	return cfg, nil
}

// AllConfigs returns every backend that runs without external services.
// S3 is covered by the integration tests of pkg/filesystem/s3.
func AllConfigs() []*TestConfig {
	return []*TestConfig{
		{Name: "memory", Backend: BackendMemory},
		{Name: "local", Backend: BackendLocal},
		{Name: "badger", Backend: BackendBadger},
		{Name: "sqlite", Backend: BackendSQLite},
	}
}

package config

import (
	"strings"
	"time"

	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/editor"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the backends themselves
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyEditorDefaults(&cfg.Editor, cfg.Filesystem.MaxPathLength)
	applyIdentityDefaults(&cfg.Identity)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyFilesystemDefaults selects the local backend rooted at ./data when
// nothing is configured.
func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	if cfg.MaxPathLength == 0 {
		cfg.MaxPathLength = 255
	}

	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = 24 * time.Hour
	}
	if cfg.GC.BatchSize == 0 {
		cfg.GC.BatchSize = 1000
	}
	if cfg.GC.RunTimeout == 0 {
		cfg.GC.RunTimeout = 10 * time.Minute
	}

	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if _, ok := cfg.Local["path"]; !ok {
		cfg.Local["path"] = "./data"
	}
	if _, ok := cfg.Local["create_dir"]; !ok {
		cfg.Local["create_dir"] = true
	}
}

func applyEditorDefaults(cfg *editor.Config, maxPathLength int) {
	if cfg.MountPrefix == "" {
		cfg.MountPrefix = "/edit"
	}
	if cfg.Realm == "" {
		cfg.Realm = editor.DefaultRealm
	}
	if cfg.UploadChunkSize == 0 {
		cfg.UploadChunkSize = 4096
	}
	cfg.MaxPathLength = maxPathLength
}

func applyIdentityDefaults(cfg *IdentityConfig) {
	if cfg.Source == "" {
		cfg.Source = "interface"
	}
	cfg.Source = strings.ToLower(cfg.Source)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the HTTP adapter when it looks unconfigured (no port either), so
	// that a config loaded without a file has an adapter to serve. An
	// explicit enabled: false with a port keeps it disabled.
	if !cfg.HTTP.Enabled && cfg.HTTP.Port == 0 {
		cfg.HTTP.Enabled = true
	}

	applyHTTPDefaults(&cfg.HTTP)
}

func applyHTTPDefaults(cfg *web.HTTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			HTTP: web.HTTPConfig{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

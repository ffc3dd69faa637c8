package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/editor"
	"github.com/marmos91/fseditor/pkg/gc"
	"github.com/spf13/viper"
)

// Config represents the complete fseditor configuration.
//
// This structure captures all configurable aspects of the editor service:
//   - Logging configuration
//   - Server-wide settings
//   - Filesystem backend selection and backend-specific options
//   - Editor settings (mount prefix, credentials, upload chunking)
//   - Device identity source
//   - Metrics endpoint
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FSEDITOR_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Backend Configuration Pattern:
// Each filesystem backend defines its own configuration type. The Filesystem
// section holds one option map per backend (filesystem.local,
// filesystem.s3, ...) and only the map matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Filesystem selects the storage backend the editor exposes
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// Editor configures the HTTP file editor
	Editor editor.Config `mapstructure:"editor" yaml:"editor"`

	// Identity selects where the device chip id comes from
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// FilesystemConfig specifies the storage backend.
//
// The Type field determines which backend is used. Only the corresponding
// option map is decoded.
type FilesystemConfig struct {
	// Type specifies which backend to use
	// Valid values: local, memory, badger, sqlite, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=local memory badger sqlite s3"`

	// ReadOnly rejects every mutation with a 403
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// MaxPathLength rejects longer client paths with a 400
	MaxPathLength int `mapstructure:"max_path_length" yaml:"max_path_length" validate:"gte=1,lte=4096"`

	// GC configures the collector of orphaned content
	// Only backends that can orphan content (badger) run it
	GC gc.Config `mapstructure:"gc" yaml:"gc"`

	// Local contains options of the host directory backend
	// Only used when Type = "local"
	Local map[string]any `mapstructure:"local" yaml:"local,omitempty"`

	// Memory contains options of the in-memory backend
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger contains options of the BadgerDB backend
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// SQLite contains options of the SQLite backend
	// Only used when Type = "sqlite"
	SQLite map[string]any `mapstructure:"sqlite" yaml:"sqlite,omitempty"`

	// S3 contains options of the S3 backend
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// IdentityConfig selects the source of the 48-bit hardware address the chip
// id is derived from.
type IdentityConfig struct {
	// Source is one of:
	//   - interface: address of a host network interface
	//   - static: the address given in MAC
	//   - none: no identity, X-Device-Id is not sent
	Source string `mapstructure:"source" yaml:"source" validate:"required,oneof=interface static none"`

	// Interface names the network interface (empty = first non-loopback)
	Interface string `mapstructure:"interface" yaml:"interface"`

	// MAC is the address used by the static source, e.g. aa:bb:cc:dd:ee:ff
	MAC string `mapstructure:"mac" yaml:"mac" validate:"required_if=Source static"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port the metrics server listens on
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// HTTP contains the HTTP adapter configuration.
	// Uses the web.HTTPConfig type directly to avoid duplication.
	HTTP web.HTTPConfig `mapstructure:"http" yaml:"http"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FSEDITOR_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FSEDITOR_ prefix and underscores
	// Example: FSEDITOR_ADAPTERS_HTTP_PORT=8081
	v.SetEnvPrefix("FSEDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about; bind every
	// leaf so that an env var works without a config file.
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/fseditor/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// configKeys lists the dotted mapstructure keys of the leaves of t.
// Option maps are skipped; their keys are backend specific.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		switch {
		case f.Type.Kind() == reflect.Map:
		case f.Type.Kind() == reflect.Struct:
			keys = append(keys, configKeys(f.Type, key)...)
		default:
			keys = append(keys, key)
		}
	}
	return keys
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing file, searched for or given explicitly, means defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fseditor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fseditor")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

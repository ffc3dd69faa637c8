package config

import (
	"github.com/marmos91/fseditor/pkg/metrics"
	promMetrics "github.com/marmos91/fseditor/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// EditorMetrics is the collector for the editor (never nil, no-op if disabled)
	EditorMetrics metrics.EditorMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Must be called at most once per process with metrics enabled; the
// collectors register on the global registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			EditorMetrics: metrics.NewNoopEditorMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:        metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		EditorMetrics: promMetrics.NewEditorMetrics(),
	}
}

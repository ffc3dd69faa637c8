package config

import (
	"fmt"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/adapter"
	"github.com/marmos91/fseditor/pkg/adapter/web"
	"github.com/marmos91/fseditor/pkg/editor"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/gc"
	"github.com/marmos91/fseditor/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// The HTTP adapter serves the editor mounted on fs. When the metrics server
// is enabled it is returned as a second adapter so that the server lifecycle
// starts and stops it too. The garbage collector is added the same way when
// it is enabled and the backend can leave orphaned content behind.
//
// Parameters:
//   - cfg: The complete fseditor configuration
//   - fs: The filesystem the editor exposes
//   - m: Metrics components from InitializeMetrics (nil = no metrics)
//   - chipID: Identity provider for X-Device-Id (nil = header not sent)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, fs filesystem.Filesystem, m *MetricsResult, chipID func() uint32) ([]adapter.Adapter, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}

	var adapters []adapter.Adapter

	if cfg.Adapters.HTTP.Enabled {
		var editorMetrics metrics.EditorMetrics
		if m != nil {
			editorMetrics = m.EditorMetrics
		}

		h := editor.New(fs, cfg.Editor, editorMetrics)
		if chipID != nil {
			h.SetIdentity(chipID)
		}
		adapters = append(adapters, web.New(cfg.Adapters.HTTP, h))
	}

	if m != nil && m.Server != nil {
		adapters = append(adapters, m.Server)
	}

	if cfg.Filesystem.GC.Enabled {
		if store, ok := fs.(gc.Store); ok {
			adapters = append(adapters, gc.NewCollector(store, cfg.Filesystem.GC))
		} else {
			logger.Debug("Garbage collection not supported by the %s backend", cfg.Filesystem.Type)
		}
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

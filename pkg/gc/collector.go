// Package gc removes file content that no longer belongs to any file.
//
// Backends that keep content apart from the file entry (badger stores chunks
// under their own keys) can leave content behind when the process dies
// between deleting an entry and deleting its chunks. The collector finds
// such content and removes it.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/fseditor/internal/logger"
)

// Store is implemented by backends whose content can outlive its entry.
type Store interface {
	// ChunkOwners lists every path that has content stored.
	ChunkOwners(ctx context.Context) ([]string, error)

	// FilePaths lists every path that has a file entry.
	FilePaths(ctx context.Context) ([]string, error)

	// DeleteOrphans drops the content of each path that still has no entry.
	// Per-path failures are returned in the map.
	DeleteOrphans(ctx context.Context, paths []string) (map[string]error, error)
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled runs the collector in the background
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between two runs (default: 24h)
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`

	// BatchSize is how many orphaned paths are deleted per call (default: 1000)
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=0"`

	// DryRun logs what would be deleted without deleting it
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// RunTimeout bounds a single run (default: 10m)
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout" validate:"gte=0"`
}

// Collector periodically removes orphaned content from a Store.
//
// It implements adapter.Adapter so that the server stops it before the
// filesystem is closed.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store  Store
	config Config

	// runMu serializes runs between the worker and RunNow
	runMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector. Zero values in config take their
// defaults.
func NewCollector(store Store, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = 10 * time.Minute
	}

	return &Collector{
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Serve runs a collection every Interval until ctx is cancelled or Stop is
// called.
//
// Returns:
//   - the context error after cancellation
//   - nil after Stop
func (c *Collector) Serve(ctx context.Context) error {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("Garbage collector started: interval=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.BatchSize, c.config.DryRun)

	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
			stats, err := c.collect(runCtx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Garbage collector stopped")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop signals Serve to return and waits for an in-progress run.
// Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Protocol returns "gc".
func (c *Collector) Protocol() string {
	return "gc"
}

// Port returns 0: the collector does not listen.
func (c *Collector) Port() int {
	return 0
}

// RunNow performs one collection immediately and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)")
	return c.collect(ctx)
}

// collect performs a single run:
//  1. List paths owning content
//  2. List paths with a file entry
//  3. orphaned = owners - files
//  4. Delete orphaned content in batches
//
// Owners are listed before entries: content is written after its entry, so
// a file created during the run is always seen in step 2.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	owners, err := c.store.ChunkOwners(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content owners: %w", err)
	}
	stats.OwnerCount = uint64(len(owners))

	files, err := c.store.FilePaths(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list files: %w", err)
	}
	stats.FileCount = uint64(len(files))

	referenced := make(map[string]struct{}, len(files))
	for _, p := range files {
		referenced[p] = struct{}{}
	}

	var orphaned []string
	for _, p := range owners {
		if _, ok := referenced[p]; !ok {
			orphaned = append(orphaned, p)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Debug("GC: no orphaned content")
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would delete content of %d paths", len(orphaned))
		for i, p := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", p)
		}
		return stats, nil
	}

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch := orphaned[i:min(i+c.config.BatchSize, len(orphaned))]

		failures, err := c.store.DeleteOrphans(ctx, batch)
		if err != nil {
			logger.Warn("GC: batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			continue
		}

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))
		for p, ferr := range failures {
			logger.Debug("GC: failed to delete content of %s: %v", p, ferr)
		}
	}

	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime     time.Time
	EndTime       time.Time
	OwnerCount    uint64 // paths owning content
	FileCount     uint64 // paths with a file entry
	OrphanedCount uint64
	DeletedCount  uint64
	FailedCount   uint64
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("owners=%d files=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.OwnerCount, s.FileCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}

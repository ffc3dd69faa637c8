package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

// entry is the persisted record of a file or directory.
type entry struct {
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`

	// Chunks is the next chunk sequence number of a file.
	Chunks uint64 `json:"chunks"`
}

// Config holds the options of the badger backend.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching the disk. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// MaxBytes caps the total file content. 0 means unbounded.
	MaxBytes uint64 `mapstructure:"max_bytes"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, DefaultOptions with WARNING logging are used.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// BadgerFilesystem implements filesystem.Filesystem on top of BadgerDB.
//
// Suitable for deployments that want a single-directory, crash-safe store
// instead of a plain directory tree. See keys.go for the storage layout.
//
// Thread Safety:
// Metadata changes run inside BadgerDB transactions. A mutex guards the
// usage counter used to enforce MaxBytes.
type BadgerFilesystem struct {
	db       *badger.DB
	maxBytes uint64

	mu        sync.Mutex
	usedBytes uint64
}

// NewBadgerFilesystem opens (or creates) a BadgerDB database and makes sure
// the root directory entry exists.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Backend options
//
// Returns:
//   - *BadgerFilesystem: Ready filesystem
//   - error: If the database cannot be opened or initialized
func NewBadgerFilesystem(ctx context.Context, cfg Config) (*BadgerFilesystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Open BadgerDB
	// ========================================================================

	var opts badger.Options
	switch {
	case cfg.BadgerOptions != nil:
		opts = *cfg.BadgerOptions
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	default:
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger filesystem: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	fs := &BadgerFilesystem{db: db, maxBytes: cfg.MaxBytes}

	// ========================================================================
	// Step 2: Create the root entry on first open
	// ========================================================================

	err = db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(filesystem.Root))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putEntry(txn, filesystem.Root, &entry{Dir: true, ModTime: time.Now()})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root: %w", err)
	}

	// ========================================================================
	// Step 3: Load current usage
	// ========================================================================

	stats, err := fs.Stats(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	fs.usedBytes = stats.UsedBytes

	return fs, nil
}

func putEntry(txn *badger.Txn, p string, e *entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize entry %s: %w", p, err)
	}
	return txn.Set(entryKey(p), data)
}

// getEntry loads the entry at p, returning ErrNotFound when absent.
func getEntry(txn *badger.Txn, p string) (*entry, error) {
	item, err := txn.Get(entryKey(p))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", p, err)
	}

	var e entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize entry %s: %w", p, err)
	}
	return &e, nil
}

// getParentDir loads the parent of p and checks it is a directory.
func getParentDir(txn *badger.Txn, p string) error {
	parent, err := getEntry(txn, filesystem.Parent(p))
	if err != nil {
		return err
	}
	if !parent.Dir {
		return fmt.Errorf("%s: %w", filesystem.Parent(p), filesystem.ErrNotDirectory)
	}
	return nil
}

func toInfo(p string, e *entry) *filesystem.FileInfo {
	info := &filesystem.FileInfo{
		Name:    filesystem.Base(p),
		Path:    p,
		Type:    filesystem.EntryTypeFile,
		Size:    e.Size,
		ModTime: e.ModTime,
	}
	if e.Dir {
		info.Type = filesystem.EntryTypeDirectory
		info.Size = 0
	}
	return info
}

// Stat returns information about the entry at p.
func (b *BadgerFilesystem) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var info *filesystem.FileInfo
	err := b.db.View(func(txn *badger.Txn) error {
		e, err := getEntry(txn, p)
		if err != nil {
			return err
		}
		info = toInfo(p, e)
		return nil
	})
	return info, err
}

// ReadDir lists the children of p in lexical order.
func (b *BadgerFilesystem) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []filesystem.FileInfo{}
	err := b.db.View(func(txn *badger.Txn) error {
		dir, err := getEntry(txn, p)
		if err != nil {
			return err
		}
		if !dir.Dir {
			return fmt.Errorf("%s: %w", p, filesystem.ErrNotDirectory)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = childPrefix(p)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			childPath := filesystem.Join(p, childName(it.Item().Key()))
			child, err := getEntry(txn, childPath)
			if err != nil {
				return err
			}
			entries = append(entries, *toInfo(childPath, child))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Mkdir creates a single directory.
func (b *BadgerFilesystem) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := getParentDir(txn, p); err != nil {
			return err
		}
		if _, err := getEntry(txn, p); err == nil {
			return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
		} else if !errors.Is(err, filesystem.ErrNotFound) {
			return err
		}

		if err := putEntry(txn, p, &entry{Dir: true, ModTime: time.Now()}); err != nil {
			return err
		}
		return txn.Set(childKey(filesystem.Parent(p), filesystem.Base(p)), nil)
	})
}

// Remove deletes a file or an empty directory.
func (b *BadgerFilesystem) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("cannot remove root: %w", filesystem.ErrInvalidPath)
	}

	var removed *entry
	err := b.db.Update(func(txn *badger.Txn) error {
		e, err := getEntry(txn, p)
		if err != nil {
			return err
		}

		if e.Dir {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = childPrefix(p)
			it := txn.NewIterator(opts)
			it.Rewind()
			hasChildren := it.Valid()
			it.Close()
			if hasChildren {
				return fmt.Errorf("%s: %w", p, filesystem.ErrNotEmpty)
			}
		}

		if err := txn.Delete(entryKey(p)); err != nil {
			return err
		}
		if err := txn.Delete(childKey(filesystem.Parent(p), filesystem.Base(p))); err != nil {
			return err
		}
		removed = e
		return nil
	})
	if err != nil {
		return err
	}

	if !removed.Dir {
		if err := b.dropChunks(p); err != nil {
			return err
		}
		b.release(uint64(removed.Size))
	}
	return nil
}

// dropChunks deletes every content chunk of p. Runs outside the metadata
// transaction so that large files do not hit ErrTxnTooBig.
func (b *BadgerFilesystem) dropChunks(p string) error {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = chunkPrefix(p)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan chunks of %s: %w", p, err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("failed to delete chunk of %s: %w", p, err)
		}
	}
	return wb.Flush()
}

func (b *BadgerFilesystem) release(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usedBytes -= min(n, b.usedBytes)
}

// Stats scans all entries.
func (b *BadgerFilesystem) Stats(ctx context.Context) (*filesystem.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &filesystem.Stats{TotalBytes: b.maxBytes}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if string(item.Key()) == string(entryKey(filesystem.Root)) {
				continue
			}
			var e entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			if e.Dir {
				stats.Directories++
			} else {
				stats.Files++
				stats.UsedBytes += uint64(e.Size)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

// Close closes the database.
func (b *BadgerFilesystem) Close() error {
	return b.db.Close()
}

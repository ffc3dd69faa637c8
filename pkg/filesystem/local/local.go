package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Config holds the options of the local backend.
type Config struct {
	// Path is the host directory exposed as the filesystem root.
	Path string `mapstructure:"path" validate:"required"`

	// CreateDir creates Path (and its parents) when missing.
	CreateDir bool `mapstructure:"create_dir"`
}

// LocalFilesystem implements filesystem.Filesystem on a host directory.
//
// All access goes through an os.Root, so no operation can reach outside
// the configured directory, including through symlinks.
//
// Thread Safety:
// Safe for concurrent use; each operation maps to independent OS calls.
type LocalFilesystem struct {
	root *os.Root
	base string
}

// NewLocalFilesystem opens cfg.Path as a filesystem root.
//
// Parameters:
//   - ctx: Context for cancellation (checked before touching the disk)
//   - cfg: Backend options
//
// Returns:
//   - *LocalFilesystem: Filesystem rooted at cfg.Path
//   - error: If the directory is missing (and CreateDir is false) or not a directory
func NewLocalFilesystem(ctx context.Context, cfg Config) (*LocalFilesystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("local filesystem: path is required")
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	root, err := os.OpenRoot(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open base directory %s: %w", cfg.Path, err)
	}

	return &LocalFilesystem{root: root, base: cfg.Path}, nil
}

// rel converts a clean absolute path to a name relative to the root.
func rel(p string) string {
	if filesystem.IsRoot(p) {
		return "."
	}
	return strings.TrimPrefix(p, "/")
}

// mapError translates OS errors to filesystem sentinels.
func mapError(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrNotFound)
	case errors.Is(err, syscall.ENOTEMPTY):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrNotEmpty)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrExists)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrNotDirectory)
	case errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrIsDirectory)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrStorageFull)
	case errors.Is(err, syscall.EROFS):
		return fmt.Errorf("%s %s: %w", op, p, filesystem.ErrReadOnly)
	default:
		return fmt.Errorf("%s %s: %w", op, p, err)
	}
}

func toInfo(p string, fi fs.FileInfo) *filesystem.FileInfo {
	info := &filesystem.FileInfo{
		Name:    filesystem.Base(p),
		Path:    p,
		Type:    filesystem.EntryTypeFile,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if fi.IsDir() {
		info.Type = filesystem.EntryTypeDirectory
		info.Size = 0
	}
	return info
}

// Stat returns information about the entry at p.
func (l *LocalFilesystem) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := l.root.Stat(rel(p))
	if err != nil {
		return nil, mapError("stat", p, err)
	}
	return toInfo(p, fi), nil
}

// Open opens the regular file at p for reading.
func (l *LocalFilesystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.root.Open(rel(p))
	if err != nil {
		return nil, mapError("open", p, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapError("open", p, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", p, filesystem.ErrIsDirectory)
	}

	return f, nil
}

// Create opens p for writing, creating or truncating it.
func (l *LocalFilesystem) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("cannot create root: %w", filesystem.ErrInvalidPath)
	}
	if err := l.checkParent(p); err != nil {
		return nil, err
	}

	if fi, err := l.root.Stat(rel(p)); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("create %s: %w", p, filesystem.ErrIsDirectory)
	}

	f, err := l.root.OpenFile(rel(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, mapError("create", p, err)
	}

	return &localWriter{file: f, path: p}, nil
}

// checkParent verifies the parent of p exists and is a directory.
func (l *LocalFilesystem) checkParent(p string) error {
	parent := filesystem.Parent(p)
	fi, err := l.root.Stat(rel(parent))
	if err != nil {
		return mapError("stat", parent, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s: %w", parent, filesystem.ErrNotDirectory)
	}
	return nil
}

// ReadDir lists the children of p in directory order.
func (l *LocalFilesystem) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.root.Open(rel(p))
	if err != nil {
		return nil, mapError("readdir", p, err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, mapError("readdir", p, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("readdir %s: %w", p, filesystem.ErrNotDirectory)
	}

	dirents, err := f.ReadDir(-1)
	if err != nil {
		return nil, mapError("readdir", p, err)
	}

	entries := make([]filesystem.FileInfo, 0, len(dirents))
	for _, d := range dirents {
		info, err := d.Info()
		if err != nil {
			// Entry vanished between listing and stat.
			continue
		}
		entries = append(entries, *toInfo(filesystem.Join(p, d.Name()), info))
	}
	return entries, nil
}

// Remove deletes a file or an empty directory.
func (l *LocalFilesystem) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("cannot remove root: %w", filesystem.ErrInvalidPath)
	}

	fi, err := l.root.Stat(rel(p))
	if err != nil {
		return mapError("remove", p, err)
	}
	if fi.IsDir() {
		children, err := l.ReadDir(ctx, p)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("remove %s: %w", p, filesystem.ErrNotEmpty)
		}
	}

	return mapError("remove", p, l.root.Remove(rel(p)))
}

// Mkdir creates a single directory.
func (l *LocalFilesystem) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("mkdir %s: %w", p, filesystem.ErrExists)
	}
	if err := l.checkParent(p); err != nil {
		return err
	}

	return mapError("mkdir", p, l.root.Mkdir(rel(p), 0755))
}

// Stats walks the tree and sums file sizes.
func (l *LocalFilesystem) Stats(ctx context.Context) (*filesystem.Stats, error) {
	stats := &filesystem.Stats{}

	err := fs.WalkDir(l.root.FS(), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if name == "." {
			return nil
		}
		if d.IsDir() {
			stats.Directories++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.Files++
		stats.UsedBytes += uint64(info.Size())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", l.base, err)
	}

	return stats, nil
}

// Close releases the root handle.
func (l *LocalFilesystem) Close() error {
	return l.root.Close()
}

// localWriter wraps an *os.File so that errors map to filesystem sentinels.
type localWriter struct {
	file   *os.File
	path   string
	closed bool
}

func (w *localWriter) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	n, err := w.file.Write(data)
	return n, mapError("write", w.path, err)
}

func (w *localWriter) Close() error {
	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true
	return mapError("close", w.path, w.file.Close())
}

package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// node is a single entry of the in-memory tree.
type node struct {
	name     string
	dir      bool
	data     []byte
	modTime  time.Time
	children map[string]*node

	// removed is set when the node is unlinked so that open writers stop
	// accepting data.
	removed bool
}

// MemoryFilesystem implements filesystem.Filesystem as an in-memory tree.
//
// It's designed for:
//   - Testing and development
//   - Ephemeral scratch storage
//   - Emulating a small flash partition through MaxBytes
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. File content is copied on
// read so readers never observe a later write.
type MemoryFilesystem struct {
	root *node

	// maxBytes caps the sum of file sizes. 0 means unbounded.
	maxBytes uint64

	// usedBytes is the current sum of file sizes.
	usedBytes uint64

	mu     sync.RWMutex
	closed bool
}

// Config holds the options of the memory backend.
type Config struct {
	// MaxBytes caps the total file content. 0 means unbounded.
	MaxBytes uint64 `mapstructure:"max_bytes"`
}

// NewMemoryFilesystem creates an empty in-memory filesystem.
//
// Parameters:
//   - ctx: Context for cancellation (checked before initialization)
//   - cfg: Backend options
//
// Returns:
//   - *MemoryFilesystem: Initialized filesystem holding only the root
//   - error: Only returns error if context is cancelled
func NewMemoryFilesystem(ctx context.Context, cfg Config) (*MemoryFilesystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryFilesystem{
		root:     newDir(""),
		maxBytes: cfg.MaxBytes,
	}, nil
}

func newDir(name string) *node {
	return &node{
		name:     name,
		dir:      true,
		modTime:  time.Now(),
		children: make(map[string]*node),
	}
}

// lookup walks the tree to p. Caller must hold mu.
func (m *MemoryFilesystem) lookup(p string) (*node, error) {
	cur := m.root
	if filesystem.IsRoot(p) {
		return cur, nil
	}

	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if !cur.dir {
			return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotDirectory)
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// lookupParent resolves the directory that should contain p. Caller must
// hold mu.
func (m *MemoryFilesystem) lookupParent(p string) (*node, error) {
	parent, err := m.lookup(filesystem.Parent(p))
	if err != nil {
		return nil, err
	}
	if !parent.dir {
		return nil, fmt.Errorf("%s: %w", filesystem.Parent(p), filesystem.ErrNotDirectory)
	}
	return parent, nil
}

func (m *MemoryFilesystem) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return fmt.Errorf("memory filesystem: %w", filesystem.ErrClosed)
	}
	return nil
}

func infoOf(p string, n *node) *filesystem.FileInfo {
	info := &filesystem.FileInfo{
		Name:    filesystem.Base(p),
		Path:    p,
		Type:    filesystem.EntryTypeFile,
		Size:    int64(len(n.data)),
		ModTime: n.modTime,
	}
	if n.dir {
		info.Type = filesystem.EntryTypeDirectory
		info.Size = 0
	}
	return info
}

// Stat returns information about the entry at p.
func (m *MemoryFilesystem) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}

	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	return infoOf(p, n), nil
}

// Open returns a reader over a copy of the file content.
func (m *MemoryFilesystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}

	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	}

	return io.NopCloser(bytes.NewReader(bytes.Clone(n.data))), nil
}

// ReadDir lists the children of p sorted by name.
func (m *MemoryFilesystem) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}

	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotDirectory)
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]filesystem.FileInfo, 0, len(names))
	for _, name := range names {
		entries = append(entries, *infoOf(filesystem.Join(p, name), n.children[name]))
	}
	return entries, nil
}

// Mkdir creates a single directory.
func (m *MemoryFilesystem) Mkdir(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	}

	parent, err := m.lookupParent(p)
	if err != nil {
		return err
	}

	name := filesystem.Base(p)
	if _, ok := parent.children[name]; ok {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	}

	parent.children[name] = newDir(name)
	parent.modTime = time.Now()
	return nil
}

// Remove deletes a file or an empty directory.
func (m *MemoryFilesystem) Remove(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	if filesystem.IsRoot(p) {
		return fmt.Errorf("cannot remove root: %w", filesystem.ErrInvalidPath)
	}

	parent, err := m.lookupParent(p)
	if err != nil {
		return err
	}

	name := filesystem.Base(p)
	n, ok := parent.children[name]
	if !ok {
		return fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
	}
	if n.dir && len(n.children) > 0 {
		return fmt.Errorf("%s: %w", p, filesystem.ErrNotEmpty)
	}

	m.usedBytes -= uint64(len(n.data))
	n.removed = true
	delete(parent.children, name)
	parent.modTime = time.Now()
	return nil
}

// Stats walks the tree and reports usage.
func (m *MemoryFilesystem) Stats(ctx context.Context) (*filesystem.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}

	stats := &filesystem.Stats{
		TotalBytes: m.maxBytes,
		UsedBytes:  m.usedBytes,
	}

	var walk func(n *node)
	walk = func(n *node) {
		for _, child := range n.children {
			if child.dir {
				stats.Directories++
				walk(child)
			} else {
				stats.Files++
			}
		}
	}
	walk(m.root)

	return stats, nil
}

// Close drops the tree. Subsequent calls fail with ErrClosed.
func (m *MemoryFilesystem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.root = newDir("")
	m.usedBytes = 0
	return nil
}

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Create opens p for writing, truncating any existing content.
//
// The file is visible (empty) as soon as Create returns. Each Write appends
// directly to the node, so a reader opened mid-upload sees a prefix.
func (m *MemoryFilesystem) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("cannot create root: %w", filesystem.ErrInvalidPath)
	}

	parent, err := m.lookupParent(p)
	if err != nil {
		return nil, err
	}

	name := filesystem.Base(p)
	n, ok := parent.children[name]
	switch {
	case ok && n.dir:
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	case ok:
		m.usedBytes -= uint64(len(n.data))
		n.data = nil
		n.modTime = time.Now()
	default:
		n = &node{name: name, modTime: time.Now()}
		parent.children[name] = n
		parent.modTime = n.modTime
	}

	return &memoryWriter{fs: m, node: n, path: p}, nil
}

// memoryWriter appends to a node under the filesystem lock.
type memoryWriter struct {
	fs     *MemoryFilesystem
	node   *node
	path   string
	closed bool
}

func (w *memoryWriter) Write(data []byte) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	if w.node.removed || w.fs.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrNotFound)
	}

	if w.fs.maxBytes > 0 && w.fs.usedBytes+uint64(len(data)) > w.fs.maxBytes {
		return 0, fmt.Errorf("write %s: %d bytes requested, %d free: %w",
			w.path, len(data), w.fs.maxBytes-w.fs.usedBytes, filesystem.ErrStorageFull)
	}

	w.node.data = append(w.node.data, data...)
	w.node.modTime = time.Now()
	w.fs.usedBytes += uint64(len(data))
	return len(data), nil
}

func (w *memoryWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true
	return nil
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

// maxChunkSize bounds a single stored value. Larger writes are split.
const maxChunkSize = 1 << 20

// Create opens p for writing, creating it or truncating existing content.
func (b *BadgerFilesystem) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("cannot create root: %w", filesystem.ErrInvalidPath)
	}

	// ========================================================================
	// Step 1: Reset (or create) the entry
	// ========================================================================

	var truncated *entry
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := getParentDir(txn, p); err != nil {
			return err
		}

		existing, err := getEntry(txn, p)
		switch {
		case err == nil && existing.Dir:
			return fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
		case err == nil:
			truncated = existing
		case !errors.Is(err, filesystem.ErrNotFound):
			return err
		}

		if err := putEntry(txn, p, &entry{ModTime: time.Now()}); err != nil {
			return err
		}
		return txn.Set(childKey(filesystem.Parent(p), filesystem.Base(p)), nil)
	})
	if err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Drop old content
	// ========================================================================

	if truncated != nil {
		if err := b.dropChunks(p); err != nil {
			return nil, err
		}
		b.release(uint64(truncated.Size))
	}

	return &badgerWriter{fs: b, path: p}, nil
}

// reserve accounts n bytes against MaxBytes.
func (b *BadgerFilesystem) reserve(p string, n uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxBytes > 0 && b.usedBytes+n > b.maxBytes {
		return fmt.Errorf("write %s: %d bytes requested, %d free: %w",
			p, n, b.maxBytes-min(b.usedBytes, b.maxBytes), filesystem.ErrStorageFull)
	}
	b.usedBytes += n
	return nil
}

// badgerWriter appends chunks and bumps the entry size in one transaction
// per chunk.
type badgerWriter struct {
	fs     *BadgerFilesystem
	path   string
	closed bool
}

func (w *badgerWriter) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}

	written := 0
	for written < len(data) {
		chunk := data[written:min(written+maxChunkSize, len(data))]
		if err := w.appendChunk(chunk); err != nil {
			return written, err
		}
		written += len(chunk)
	}
	return written, nil
}

func (w *badgerWriter) appendChunk(chunk []byte) error {
	if err := w.fs.reserve(w.path, uint64(len(chunk))); err != nil {
		return err
	}

	err := w.fs.db.Update(func(txn *badger.Txn) error {
		e, err := getEntry(txn, w.path)
		if err != nil {
			return err
		}
		if e.Dir {
			return fmt.Errorf("%s: %w", w.path, filesystem.ErrIsDirectory)
		}

		if err := txn.Set(chunkKey(w.path, e.Chunks), chunk); err != nil {
			return err
		}
		e.Chunks++
		e.Size += int64(len(chunk))
		e.ModTime = time.Now()
		return putEntry(txn, w.path, e)
	})
	if err != nil {
		w.fs.release(uint64(len(chunk)))
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func (w *badgerWriter) Close() error {
	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true
	return nil
}

// Open returns a reader that streams the chunks of p in order.
func (b *BadgerFilesystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chunks uint64
	err := b.db.View(func(txn *badger.Txn) error {
		e, err := getEntry(txn, p)
		if err != nil {
			return err
		}
		if e.Dir {
			return fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
		}
		chunks = e.Chunks
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &badgerReader{fs: b, path: p, chunks: chunks}, nil
}

// badgerReader loads one chunk at a time.
type badgerReader struct {
	fs     *BadgerFilesystem
	path   string
	chunks uint64
	next   uint64
	buf    []byte
}

func (r *badgerReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.next >= r.chunks {
			return 0, io.EOF
		}
		if err := r.load(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *badgerReader) load() error {
	return r.fs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(r.path, r.next))
		if errors.Is(err, badger.ErrKeyNotFound) {
			// File was truncated or removed while reading.
			r.chunks = r.next
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", r.path, err)
		}
		r.buf, err = item.ValueCopy(nil)
		r.next++
		return err
	})
}

func (r *badgerReader) Close() error {
	r.buf = nil
	return nil
}

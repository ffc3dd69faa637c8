package filesystem

import (
	"context"
	"fmt"
	"io"
)

// readOnly wraps a Filesystem and rejects every mutation with ErrReadOnly.
type readOnly struct {
	fs Filesystem
}

// ReadOnly returns a view of fs in which Create, Remove and Mkdir fail with
// ErrReadOnly. Reads pass through. Closing the view closes fs.
func ReadOnly(fs Filesystem) Filesystem {
	return &readOnly{fs: fs}
}

func (r *readOnly) Stat(ctx context.Context, p string) (*FileInfo, error) {
	return r.fs.Stat(ctx, p)
}

func (r *readOnly) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	return r.fs.Open(ctx, p)
}

func (r *readOnly) Create(_ context.Context, p string) (FileWriter, error) {
	return nil, fmt.Errorf("create %s: %w", p, ErrReadOnly)
}

func (r *readOnly) ReadDir(ctx context.Context, p string) ([]FileInfo, error) {
	return r.fs.ReadDir(ctx, p)
}

func (r *readOnly) Remove(_ context.Context, p string) error {
	return fmt.Errorf("remove %s: %w", p, ErrReadOnly)
}

func (r *readOnly) Mkdir(_ context.Context, p string) error {
	return fmt.Errorf("mkdir %s: %w", p, ErrReadOnly)
}

func (r *readOnly) Stats(ctx context.Context) (*Stats, error) {
	return r.fs.Stats(ctx)
}

func (r *readOnly) Close() error {
	return r.fs.Close()
}

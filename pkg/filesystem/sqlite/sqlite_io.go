package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Create opens p for writing, creating it or truncating existing content.
func (s *SQLiteFilesystem) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("cannot create root: %w", filesystem.ErrInvalidPath)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkParent(ctx, tx, p); err != nil {
			return err
		}

		existing, err := getRow(ctx, tx, p)
		switch {
		case err == nil && existing.dir:
			return fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
		case err != nil && !errors.Is(err, filesystem.ErrNotFound):
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, p); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries (path, parent, name, is_dir, size, next_seq, mod_time)
			VALUES (?, ?, ?, 0, 0, 0, ?)
			ON CONFLICT (path) DO UPDATE SET size = 0, next_seq = 0, mod_time = excluded.mod_time`,
			p, filesystem.Parent(p), filesystem.Base(p), time.Now().UnixNano())
		return err
	})
	if err != nil {
		return nil, err
	}

	return &sqliteWriter{fs: s, path: p}, nil
}

// sqliteWriter inserts one chunk row per Write.
type sqliteWriter struct {
	fs     *SQLiteFilesystem
	path   string
	closed bool
}

func (w *sqliteWriter) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	if len(data) == 0 {
		return 0, nil
	}

	ctx := context.Background()
	err := w.fs.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRow(ctx, tx, w.path)
		if err != nil {
			return err
		}
		if r.dir {
			return fmt.Errorf("%s: %w", w.path, filesystem.ErrIsDirectory)
		}

		if w.fs.maxBytes > 0 {
			var used uint64
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(SUM(size), 0) FROM entries WHERE is_dir = 0`).Scan(&used)
			if err != nil {
				return err
			}
			if used+uint64(len(data)) > w.fs.maxBytes {
				return fmt.Errorf("%d bytes requested, %d free: %w",
					len(data), w.fs.maxBytes-min(used, w.fs.maxBytes), filesystem.ErrStorageFull)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (path, seq, data) VALUES (?, ?, ?)`, w.path, r.nextSeq, data); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE entries SET size = size + ?, next_seq = next_seq + 1, mod_time = ? WHERE path = ?`,
			len(data), time.Now().UnixNano(), w.path)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", w.path, err)
	}
	return len(data), nil
}

func (w *sqliteWriter) Close() error {
	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true
	return nil
}

// Open returns a reader that fetches chunks one query at a time, so no
// connection is held between reads.
func (s *SQLiteFilesystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	r, err := getRow(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	if r.dir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	}

	return &sqliteReader{fs: s, path: p, next: -1}, nil
}

type sqliteReader struct {
	fs   *SQLiteFilesystem
	path string
	next int64
	buf  []byte
	eof  bool
}

func (r *sqliteReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
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

// load fetches the chunk with the smallest sequence after the last one read.
func (r *sqliteReader) load() error {
	var seq int64
	var data []byte
	err := r.fs.db.QueryRow(
		`SELECT seq, data FROM chunks WHERE path = ? AND seq > ? ORDER BY seq LIMIT 1`,
		r.path, r.next,
	).Scan(&seq, &data)
	if errors.Is(err, sql.ErrNoRows) {
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", r.path, err)
	}

	r.next = seq
	r.buf = data
	return nil
}

func (r *sqliteReader) Close() error {
	r.buf = nil
	r.eof = true
	return nil
}

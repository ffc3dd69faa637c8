package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fseditor/pkg/filesystem"
	_ "modernc.org/sqlite"
)

// Config holds the options of the sqlite backend.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in RAM.
	Path string `mapstructure:"path" validate:"required"`

	// MaxBytes caps the total file content. 0 means unbounded.
	MaxBytes uint64 `mapstructure:"max_bytes"`
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path     TEXT PRIMARY KEY,
	parent   TEXT NOT NULL,
	name     TEXT NOT NULL,
	is_dir   INTEGER NOT NULL,
	size     INTEGER NOT NULL DEFAULT 0,
	next_seq INTEGER NOT NULL DEFAULT 0,
	mod_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_parent ON entries (parent, name);
CREATE TABLE IF NOT EXISTS chunks (
	path TEXT NOT NULL,
	seq  INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (path, seq)
);
`

// SQLiteFilesystem implements filesystem.Filesystem in a single SQLite file.
//
// Entries live in one table keyed by path, content in a second table as
// ordered chunks. The pool is limited to one connection so every operation
// is serialized by the driver, which also makes the MaxBytes check exact.
type SQLiteFilesystem struct {
	db       *sql.DB
	maxBytes uint64
}

// NewSQLiteFilesystem opens the database, creates the schema and the root.
func NewSQLiteFilesystem(ctx context.Context, cfg Config) (*SQLiteFilesystem, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite filesystem: path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entries (path, parent, name, is_dir, mod_time) VALUES (?, '', '', 1, ?)`,
		filesystem.Root, time.Now().UnixNano())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root: %w", err)
	}

	return &SQLiteFilesystem{db: db, maxBytes: cfg.MaxBytes}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type row struct {
	dir     bool
	size    int64
	nextSeq int64
	modTime int64
}

func getRow(ctx context.Context, q querier, p string) (*row, error) {
	var r row
	err := q.QueryRowContext(ctx,
		`SELECT is_dir, size, next_seq, mod_time FROM entries WHERE path = ?`, p,
	).Scan(&r.dir, &r.size, &r.nextSeq, &r.modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", p, err)
	}
	return &r, nil
}

func checkParent(ctx context.Context, q querier, p string) error {
	parent, err := getRow(ctx, q, filesystem.Parent(p))
	if err != nil {
		return err
	}
	if !parent.dir {
		return fmt.Errorf("%s: %w", filesystem.Parent(p), filesystem.ErrNotDirectory)
	}
	return nil
}

func toInfo(p string, r *row) *filesystem.FileInfo {
	info := &filesystem.FileInfo{
		Name:    filesystem.Base(p),
		Path:    p,
		Type:    filesystem.EntryTypeFile,
		Size:    r.size,
		ModTime: time.Unix(0, r.modTime),
	}
	if r.dir {
		info.Type = filesystem.EntryTypeDirectory
		info.Size = 0
	}
	return info
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteFilesystem) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Stat returns information about the entry at p.
func (s *SQLiteFilesystem) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	r, err := getRow(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	return toInfo(p, r), nil
}

// ReadDir lists the children of p ordered by name.
func (s *SQLiteFilesystem) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	dir, err := getRow(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	if !dir.dir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotDirectory)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, is_dir, size, next_seq, mod_time FROM entries WHERE parent = ? ORDER BY name`, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}
	defer func() { _ = rows.Close() }()

	entries := []filesystem.FileInfo{}
	for rows.Next() {
		var childPath string
		var r row
		if err := rows.Scan(&childPath, &r.dir, &r.size, &r.nextSeq, &r.modTime); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
		entries = append(entries, *toInfo(childPath, &r))
	}
	return entries, rows.Err()
}

// Mkdir creates a single directory.
func (s *SQLiteFilesystem) Mkdir(ctx context.Context, p string) error {
	if filesystem.IsRoot(p) {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkParent(ctx, tx, p); err != nil {
			return err
		}
		if _, err := getRow(ctx, tx, p); err == nil {
			return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
		} else if !errors.Is(err, filesystem.ErrNotFound) {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (path, parent, name, is_dir, mod_time) VALUES (?, ?, ?, 1, ?)`,
			p, filesystem.Parent(p), filesystem.Base(p), time.Now().UnixNano())
		return err
	})
}

// Remove deletes a file or an empty directory.
func (s *SQLiteFilesystem) Remove(ctx context.Context, p string) error {
	if filesystem.IsRoot(p) {
		return fmt.Errorf("cannot remove root: %w", filesystem.ErrInvalidPath)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRow(ctx, tx, p)
		if err != nil {
			return err
		}

		if r.dir {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE parent = ? LIMIT 1`, p).Scan(&one)
			if err == nil {
				return fmt.Errorf("%s: %w", p, filesystem.ErrNotEmpty)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, p); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, p)
		return err
	})
}

// Stats aggregates entry counts and sizes.
func (s *SQLiteFilesystem) Stats(ctx context.Context) (*filesystem.Stats, error) {
	stats := &filesystem.Stats{TotalBytes: s.maxBytes}

	rows, err := s.db.QueryContext(ctx,
		`SELECT is_dir, COUNT(*), COALESCE(SUM(size), 0) FROM entries WHERE path != ? GROUP BY is_dir`,
		filesystem.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var dir bool
		var count, size uint64
		if err := rows.Scan(&dir, &count, &size); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
		if dir {
			stats.Directories = count
		} else {
			stats.Files = count
			stats.UsedBytes = size
		}
	}
	return stats, rows.Err()
}

// Close closes the database.
func (s *SQLiteFilesystem) Close() error {
	return s.db.Close()
}

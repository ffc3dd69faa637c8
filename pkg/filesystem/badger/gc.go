package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/gc"
)

var _ gc.Store = (*BadgerFilesystem)(nil)

// chunkSuffixLen is the separator plus the big-endian sequence number.
const chunkSuffixLen = len(separator) + 8

// ChunkOwners lists every path that has at least one content chunk.
func (b *BadgerFilesystem) ChunkOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixChunk)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Chunks of one path are contiguous, NUL sorting before any path byte.
		last := ""
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if len(key) < len(prefixChunk)+chunkSuffixLen {
				continue
			}
			owner := string(key[len(prefixChunk) : len(key)-chunkSuffixLen])
			if owner != last {
				owners = append(owners, owner)
				last = owner
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	return owners, nil
}

// FilePaths lists every path that has an entry. Directories are included;
// they never own chunks.
func (b *BadgerFilesystem) FilePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths = append(paths, string(it.Item().Key()[len(prefixEntry):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}
	return paths, nil
}

// DeleteOrphans drops the chunks of every path in paths that has no entry.
// Paths that gained an entry since they were listed are left alone.
func (b *BadgerFilesystem) DeleteOrphans(ctx context.Context, paths []string) (map[string]error, error) {
	failures := make(map[string]error)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		err := b.db.View(func(txn *badger.Txn) error {
			_, err := getEntry(txn, p)
			return err
		})
		switch {
		case err == nil:
			continue
		case !errors.Is(err, filesystem.ErrNotFound):
			failures[p] = err
			continue
		}

		if err := b.dropChunks(p); err != nil {
			failures[p] = err
		}
	}
	return failures, nil
}

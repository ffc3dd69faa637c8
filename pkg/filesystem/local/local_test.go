package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	fstesting "github.com/marmos91/fseditor/pkg/filesystem/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilesystem(t *testing.T) {
	suite := &fstesting.FilesystemTestSuite{
		NewFilesystem: func(t *testing.T) filesystem.Filesystem {
			fs, err := NewLocalFilesystem(context.Background(), Config{Path: t.TempDir()})
			require.NoError(t, err)
			return fs
		},
	}

	suite.Run(t)
}

func TestLocalFilesystem_CreateDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")

	_, err := NewLocalFilesystem(context.Background(), Config{Path: base})
	require.Error(t, err)

	fs, err := NewLocalFilesystem(context.Background(), Config{Path: base, CreateDir: true})
	require.NoError(t, err)
	defer func() { _ = fs.Close() }()

	fi, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestLocalFilesystem_WritesLandOnDisk(t *testing.T) {
	base := t.TempDir()
	fs, err := NewLocalFilesystem(context.Background(), Config{Path: base})
	require.NoError(t, err)
	defer func() { _ = fs.Close() }()

	fstesting.MustWriteFile(t, fs, "/hello.txt", []byte("hello"), 2)

	data, err := os.ReadFile(filepath.Join(base, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalFilesystem_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0644))

	base := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "link")))

	fs, err := NewLocalFilesystem(context.Background(), Config{Path: base})
	require.NoError(t, err)
	defer func() { _ = fs.Close() }()

	_, err = fs.Open(context.Background(), "/link/secret")
	assert.Error(t, err)
}

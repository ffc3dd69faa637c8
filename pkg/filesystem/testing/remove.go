package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRemoveTests covers Remove.
func (suite *FilesystemTestSuite) RunRemoveTests(t *testing.T) {
	t.Run("File", suite.testRemoveFile)
	t.Run("Twice", suite.testRemoveTwice)
	t.Run("EmptyDirectory", suite.testRemoveEmptyDirectory)
	t.Run("NonEmptyDirectory", suite.testRemoveNonEmptyDirectory)
	t.Run("Root", suite.testRemoveRoot)
}

func (suite *FilesystemTestSuite) testRemoveFile(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/hello.txt", []byte("hello"), 0)

	require.NoError(t, fs.Remove(testContext(), "/hello.txt"))

	_, err := fs.Stat(testContext(), "/hello.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testRemoveTwice(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/hello.txt", []byte("hello"), 0)

	require.NoError(t, fs.Remove(testContext(), "/hello.txt"))
	err := fs.Remove(testContext(), "/hello.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testRemoveEmptyDirectory(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/tmp")

	require.NoError(t, fs.Remove(testContext(), "/tmp"))

	entries, err := fs.ReadDir(testContext(), "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *FilesystemTestSuite) testRemoveNonEmptyDirectory(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")
	MustWriteFile(t, fs, "/www/index.htm", []byte("x"), 0)

	err := fs.Remove(testContext(), "/www")
	assert.ErrorIs(t, err, filesystem.ErrNotEmpty)

	assert.Equal(t, []byte("x"), MustReadFile(t, fs, "/www/index.htm"))
}

func (suite *FilesystemTestSuite) testRemoveRoot(t *testing.T) {
	fs := suite.newFilesystem(t)

	err := fs.Remove(testContext(), "/")
	assert.ErrorIs(t, err, filesystem.ErrInvalidPath)
}

// RunStatsTests covers Stats.
func (suite *FilesystemTestSuite) RunStatsTests(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")
	MustWriteFile(t, fs, "/www/a.txt", []byte("abc"), 0)
	MustWriteFile(t, fs, "/b.txt", []byte("de"), 0)

	stats, err := fs.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.UsedBytes)
	assert.Equal(t, uint64(2), stats.Files)
	assert.Equal(t, uint64(1), stats.Directories)
}

// RunConcurrencyTests writes distinct files from several goroutines.
func (suite *FilesystemTestSuite) RunConcurrencyTests(t *testing.T) {
	fs := suite.newFilesystem(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := fs.Create(testContext(), fmt.Sprintf("/file-%d.bin", i))
			if err != nil {
				errs <- err
				return
			}
			data := Pattern(1000 + i)
			for off := 0; off < len(data); off += 100 {
				if _, err := w.Write(data[off:min(off+100, len(data))]); err != nil {
					errs <- err
					_ = w.Close()
					return
				}
			}
			errs <- w.Close()
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i := 0; i < writers; i++ {
		assert.Equal(t, Pattern(1000+i), MustReadFile(t, fs, fmt.Sprintf("/file-%d.bin", i)))
	}
}

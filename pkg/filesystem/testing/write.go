package testing

import (
	"fmt"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests covers Create and FileWriter.
func (suite *FilesystemTestSuite) RunWriteTests(t *testing.T) {
	t.Run("RoundTrip", suite.testRoundTrip)
	t.Run("EmptyFile", suite.testEmptyFile)
	t.Run("Truncate", suite.testTruncate)
	t.Run("MissingParent", suite.testCreateMissingParent)
	t.Run("ParentIsFile", suite.testCreateParentIsFile)
	t.Run("OverDirectory", suite.testCreateOverDirectory)
	t.Run("Root", suite.testCreateRoot)
	t.Run("WriteAfterClose", suite.testWriteAfterClose)
	t.Run("Nested", suite.testCreateNested)
}

func (suite *FilesystemTestSuite) testRoundTrip(t *testing.T) {
	sizes := []struct {
		size  int
		chunk int
	}{
		{1, 1},
		{4096, 1000},
		{4096, 4096},
		{70 * 1024, 1460},
	}

	for _, tc := range sizes {
		t.Run(fmt.Sprintf("%d_bytes_%d_chunk", tc.size, tc.chunk), func(t *testing.T) {
			fs := suite.newFilesystem(t)
			data := Pattern(tc.size)

			MustWriteFile(t, fs, "/blob.bin", data, tc.chunk)

			assert.Equal(t, data, MustReadFile(t, fs, "/blob.bin"))

			info, err := fs.Stat(testContext(), "/blob.bin")
			require.NoError(t, err)
			assert.Equal(t, int64(tc.size), info.Size)
		})
	}
}

func (suite *FilesystemTestSuite) testEmptyFile(t *testing.T) {
	fs := suite.newFilesystem(t)

	w, err := fs.Create(testContext(), "/empty.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := fs.Stat(testContext(), "/empty.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(0), info.Size)
	assert.Empty(t, MustReadFile(t, fs, "/empty.txt"))
}

func (suite *FilesystemTestSuite) testTruncate(t *testing.T) {
	fs := suite.newFilesystem(t)

	MustWriteFile(t, fs, "/config.json", []byte(`{"ssid":"a-very-long-network-name"}`), 0)
	MustWriteFile(t, fs, "/config.json", []byte(`{}`), 0)

	assert.Equal(t, []byte(`{}`), MustReadFile(t, fs, "/config.json"))
}

func (suite *FilesystemTestSuite) testCreateMissingParent(t *testing.T) {
	fs := suite.newFilesystem(t)

	_, err := fs.Create(testContext(), "/nope/file.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testCreateParentIsFile(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/file.txt", []byte("x"), 0)

	_, err := fs.Create(testContext(), "/file.txt/child.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotDirectory)
}

func (suite *FilesystemTestSuite) testCreateOverDirectory(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")

	_, err := fs.Create(testContext(), "/www")
	assert.ErrorIs(t, err, filesystem.ErrIsDirectory)
}

func (suite *FilesystemTestSuite) testCreateRoot(t *testing.T) {
	fs := suite.newFilesystem(t)

	_, err := fs.Create(testContext(), "/")
	assert.ErrorIs(t, err, filesystem.ErrInvalidPath)
}

func (suite *FilesystemTestSuite) testWriteAfterClose(t *testing.T) {
	fs := suite.newFilesystem(t)

	w, err := fs.Create(testContext(), "/closed.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}

func (suite *FilesystemTestSuite) testCreateNested(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")
	MustMkdir(t, fs, "/www/css")

	MustWriteFile(t, fs, "/www/css/site.css", []byte("body{}"), 2)

	assert.Equal(t, []byte("body{}"), MustReadFile(t, fs, "/www/css/site.css"))
}

package testing

import (
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers Stat and Open.
func (suite *FilesystemTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Stat_Root", suite.testStatRoot)
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("Stat_File", suite.testStatFile)
	t.Run("Open_NotFound", suite.testOpenNotFound)
	t.Run("Open_Directory", suite.testOpenDirectory)
	t.Run("ReadDir_EmptyRoot", suite.testReadDirEmptyRoot)
}

func (suite *FilesystemTestSuite) testStatRoot(t *testing.T) {
	fs := suite.newFilesystem(t)

	info, err := fs.Stat(testContext(), "/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Path)
}

func (suite *FilesystemTestSuite) testStatNotFound(t *testing.T) {
	fs := suite.newFilesystem(t)

	_, err := fs.Stat(testContext(), "/missing.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testStatFile(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/hello.txt", []byte("hello"), 0)

	info, err := fs.Stat(testContext(), "/hello.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "hello.txt", info.Name)
	assert.Equal(t, "/hello.txt", info.Path)
	assert.Equal(t, int64(5), info.Size)
}

func (suite *FilesystemTestSuite) testOpenNotFound(t *testing.T) {
	fs := suite.newFilesystem(t)

	_, err := fs.Open(testContext(), "/missing.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testOpenDirectory(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")

	_, err := fs.Open(testContext(), "/www")
	assert.ErrorIs(t, err, filesystem.ErrIsDirectory)
}

func (suite *FilesystemTestSuite) testReadDirEmptyRoot(t *testing.T) {
	fs := suite.newFilesystem(t)

	entries, err := fs.ReadDir(testContext(), "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

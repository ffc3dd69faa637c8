package testing

import (
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDirectoryTests covers Mkdir and ReadDir.
func (suite *FilesystemTestSuite) RunDirectoryTests(t *testing.T) {
	t.Run("Mkdir", suite.testMkdir)
	t.Run("Mkdir_Exists", suite.testMkdirExists)
	t.Run("Mkdir_OverFile", suite.testMkdirOverFile)
	t.Run("Mkdir_MissingParent", suite.testMkdirMissingParent)
	t.Run("ReadDir_Entries", suite.testReadDirEntries)
	t.Run("ReadDir_NotFound", suite.testReadDirNotFound)
	t.Run("ReadDir_File", suite.testReadDirFile)
}

func (suite *FilesystemTestSuite) testMkdir(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/logs")

	info, err := fs.Stat(testContext(), "/logs")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "logs", info.Name)
	assert.Equal(t, int64(0), info.Size)
}

func (suite *FilesystemTestSuite) testMkdirExists(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/logs")

	err := fs.Mkdir(testContext(), "/logs")
	assert.ErrorIs(t, err, filesystem.ErrExists)

	err = fs.Mkdir(testContext(), "/")
	assert.ErrorIs(t, err, filesystem.ErrExists)
}

func (suite *FilesystemTestSuite) testMkdirOverFile(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/logs", []byte("x"), 0)

	err := fs.Mkdir(testContext(), "/logs")
	assert.ErrorIs(t, err, filesystem.ErrExists)
}

func (suite *FilesystemTestSuite) testMkdirMissingParent(t *testing.T) {
	fs := suite.newFilesystem(t)

	err := fs.Mkdir(testContext(), "/a/b")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testReadDirEntries(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustMkdir(t, fs, "/www")
	MustWriteFile(t, fs, "/index.htm", []byte("<html>"), 0)
	MustWriteFile(t, fs, "/www/app.js", []byte("x"), 0)

	entries, err := fs.ReadDir(testContext(), "/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"www", "index.htm"}, Names(entries))

	for _, e := range entries {
		switch e.Name {
		case "www":
			assert.Equal(t, filesystem.EntryTypeDirectory, e.Type)
			assert.Equal(t, "/www", e.Path)
		case "index.htm":
			assert.Equal(t, filesystem.EntryTypeFile, e.Type)
			assert.Equal(t, int64(6), e.Size)
		}
	}

	nested, err := fs.ReadDir(testContext(), "/www")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, Names(nested))
}

func (suite *FilesystemTestSuite) testReadDirNotFound(t *testing.T) {
	fs := suite.newFilesystem(t)

	_, err := fs.ReadDir(testContext(), "/missing")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func (suite *FilesystemTestSuite) testReadDirFile(t *testing.T) {
	fs := suite.newFilesystem(t)
	MustWriteFile(t, fs, "/file.txt", []byte("x"), 0)

	_, err := fs.ReadDir(testContext(), "/file.txt")
	assert.ErrorIs(t, err, filesystem.ErrNotDirectory)
}

package testing

import (
	"context"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
)

// FilesystemTestSuite is a conformance suite for filesystem.Filesystem
// implementations. It exercises the interface contract only, so the same
// suite runs against every backend.
//
// Usage:
//
//	func TestMyFilesystem(t *testing.T) {
//	    suite := &fstesting.FilesystemTestSuite{
//	        NewFilesystem: func(t *testing.T) filesystem.Filesystem {
//	            return myfs.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type FilesystemTestSuite struct {
	// NewFilesystem returns a fresh, empty filesystem for each test.
	// Cleanup (Close) is registered by the suite.
	NewFilesystem func(t *testing.T) filesystem.Filesystem

	// SkipConcurrency disables the concurrent writer tests, for backends
	// that are exercised against slow remote services.
	SkipConcurrency bool
}

// Run executes all tests in the suite.
func (suite *FilesystemTestSuite) Run(t *testing.T) {
	t.Run("Basic", suite.RunBasicTests)
	t.Run("Write", suite.RunWriteTests)
	t.Run("Directory", suite.RunDirectoryTests)
	t.Run("Remove", suite.RunRemoveTests)
	t.Run("Stats", suite.RunStatsTests)
	if !suite.SkipConcurrency {
		t.Run("Concurrency", suite.RunConcurrencyTests)
	}
}

func (suite *FilesystemTestSuite) newFilesystem(t *testing.T) filesystem.Filesystem {
	t.Helper()
	fs := suite.NewFilesystem(t)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func testContext() context.Context {
	return context.Background()
}

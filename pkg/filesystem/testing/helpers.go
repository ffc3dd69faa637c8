package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/stretchr/testify/require"
)

// MustWriteFile creates p and writes data in chunks of chunkSize bytes.
// A chunkSize <= 0 writes everything in one call.
func MustWriteFile(t *testing.T, fs filesystem.Filesystem, p string, data []byte, chunkSize int) {
	t.Helper()

	w, err := fs.Create(testContext(), p)
	require.NoError(t, err, "create %s", p)

	if chunkSize <= 0 {
		chunkSize = len(data)
	}
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		n, err := w.Write(data[off:end])
		require.NoError(t, err, "write %s at %d", p, off)
		require.Equal(t, end-off, n)
	}

	require.NoError(t, w.Close(), "close %s", p)
}

// MustReadFile opens p and returns its full content.
func MustReadFile(t *testing.T, fs filesystem.Filesystem, p string) []byte {
	t.Helper()

	r, err := fs.Open(testContext(), p)
	require.NoError(t, err, "open %s", p)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err, "read %s", p)
	return data
}

// MustMkdir creates a directory.
func MustMkdir(t *testing.T, fs filesystem.Filesystem, p string) {
	t.Helper()
	require.NoError(t, fs.Mkdir(testContext(), p), "mkdir %s", p)
}

// Pattern returns n bytes of a repeating, position dependent pattern so
// that reordered or dropped chunks are detected.
func Pattern(n int) []byte {
	var buf bytes.Buffer
	buf.Grow(n)
	for i := 0; i < n; i++ {
		buf.WriteByte(byte(i*7 + i/251))
	}
	return buf.Bytes()
}

// Names returns the entry names of a listing.
func Names(entries []filesystem.FileInfo) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

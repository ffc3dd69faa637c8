package s3

import (
	"context"
	"testing"

	"github.com/marmos91/fseditor/pkg/filesystem"
	fstesting "github.com/marmos91/fseditor/pkg/filesystem/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Filesystem(t *testing.T) {
	suite := &fstesting.FilesystemTestSuite{
		NewFilesystem: func(t *testing.T) filesystem.Filesystem {
			fs, err := NewS3Filesystem(context.Background(), S3FilesystemConfig{
				Client:    newFakeS3(),
				Bucket:    "fseditor",
				KeyPrefix: "devices/test",
			})
			require.NoError(t, err)
			return fs
		},
	}

	suite.Run(t)
}

func TestNewS3Filesystem_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Filesystem(ctx, S3FilesystemConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3Filesystem(ctx, S3FilesystemConfig{Client: newFakeS3()})
	assert.Error(t, err)

	_, err = NewS3Filesystem(ctx, S3FilesystemConfig{Client: newFakeS3(), Bucket: "b", PartSize: 1024})
	assert.Error(t, err)
}

func TestS3Filesystem_Multipart(t *testing.T) {
	fake := newFakeS3()
	fs := newS3Filesystem(fake, "fseditor", "", 1024)

	data := fstesting.Pattern(5000)
	fstesting.MustWriteFile(t, fs, "/firmware.bin", data, 700)

	assert.Equal(t, data, fstesting.MustReadFile(t, fs, "/firmware.bin"))
	assert.Empty(t, fake.uploads)
}

func TestS3Filesystem_MultipartAbortOnFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fs := newS3Filesystem(fake, "fseditor", "", 1024)

	w, err := fs.Create(ctx, "/firmware.bin")
	require.NoError(t, err)

	_, err = w.Write(make([]byte, 1024))
	require.NoError(t, err)

	fake.failUploadPart = true
	_, err = w.Write(make([]byte, 1024))
	require.Error(t, err)

	assert.Error(t, w.Close())
	assert.Len(t, fake.aborted, 1)
	assert.Empty(t, fake.uploads)

	_, err = fs.Stat(ctx, "/firmware.bin")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestS3Filesystem_AbortKeepsExistingObject(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"single put", 10},
		{"multipart", 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake := newFakeS3()
			fake.objects["firmware.bin"] = []byte("intact")
			fs := newS3Filesystem(fake, "fseditor", "", 1024)

			w, err := fs.Create(ctx, "/firmware.bin")
			require.NoError(t, err)
			_, err = w.Write(make([]byte, tt.size))
			require.NoError(t, err)

			aborter, ok := w.(filesystem.Aborter)
			require.True(t, ok)
			require.NoError(t, aborter.Abort())

			assert.Empty(t, fake.uploads)
			assert.Equal(t, []byte("intact"), fstesting.MustReadFile(t, fs, "/firmware.bin"))

			_, err = w.Write([]byte("x"))
			assert.ErrorIs(t, err, filesystem.ErrClosed)
			assert.ErrorIs(t, aborter.Abort(), filesystem.ErrClosed)
		})
	}
}

func TestS3Filesystem_ImplicitDirectories(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["www/css/site.css"] = []byte("body{}")
	fs := newS3Filesystem(fake, "fseditor", "", defaultPartSize)

	info, err := fs.Stat(ctx, "/www")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := fs.ReadDir(ctx, "/www")
	require.NoError(t, err)
	assert.Equal(t, []string{"css"}, fstesting.Names(entries))

	stats, err := fs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Files)
	assert.Equal(t, uint64(2), stats.Directories)
	assert.Equal(t, uint64(6), stats.UsedBytes)
}

func TestS3Filesystem_KeyPrefix(t *testing.T) {
	fake := newFakeS3()
	fs, err := NewS3Filesystem(context.Background(), S3FilesystemConfig{
		Client:    fake,
		Bucket:    "fseditor",
		KeyPrefix: "devices/abc",
	})
	require.NoError(t, err)

	fstesting.MustMkdir(t, fs, "/www")
	fstesting.MustWriteFile(t, fs, "/www/index.htm", []byte("x"), 0)

	assert.Contains(t, fake.objects, "devices/abc/www/")
	assert.Contains(t, fake.objects, "devices/abc/www/index.htm")
}

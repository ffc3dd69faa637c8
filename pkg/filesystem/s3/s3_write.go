package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Create validates the target and returns a buffering writer. Nothing is
// stored until the first part fills up or Close is called.
func (s *S3Filesystem) Create(ctx context.Context, p string) (filesystem.FileWriter, error) {
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("cannot create root: %w", filesystem.ErrInvalidPath)
	}
	if err := s.requireParentDir(ctx, p); err != nil {
		return nil, err
	}

	info, err := s.Stat(ctx, p)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	case err != nil && !errors.Is(err, filesystem.ErrNotFound):
		return nil, err
	}

	return &s3Writer{
		fs:   s,
		ctx:  context.WithoutCancel(ctx),
		path: p,
		key:  s.objectKey(p),
	}, nil
}

var _ filesystem.Aborter = (*s3Writer)(nil)

// s3Writer buffers one part at a time.
type s3Writer struct {
	fs   *S3Filesystem
	ctx  context.Context
	path string
	key  string

	buf bytes.Buffer

	// Multipart state, set once the first part is flushed.
	uploadID string
	parts    []types.CompletedPart

	closed bool
	failed error
}

func (w *s3Writer) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	if w.failed != nil {
		return 0, w.failed
	}

	w.buf.Write(data)
	for int64(w.buf.Len()) >= w.fs.partSize {
		if err := w.flushPart(w.buf.Next(int(w.fs.partSize))); err != nil {
			w.fail(err)
			return 0, w.failed
		}
	}
	return len(data), nil
}

// flushPart uploads one part, starting the multipart upload if needed.
func (w *s3Writer) flushPart(part []byte) error {
	if w.uploadID == "" {
		out, err := w.fs.client.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.fs.bucket),
			Key:    aws.String(w.key),
		})
		if err != nil {
			return fmt.Errorf("failed to create multipart upload: %w", err)
		}
		w.uploadID = aws.ToString(out.UploadId)
	}

	partNumber := int32(len(w.parts) + 1)
	out, err := w.fs.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.fs.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(part),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

// fail records err and aborts any in-flight multipart upload.
func (w *s3Writer) fail(err error) {
	w.failed = fmt.Errorf("write %s: %w", w.path, err)
	w.buf.Reset()
	if abortErr := w.abortMultipart(); abortErr != nil {
		w.failed = errors.Join(w.failed, abortErr)
	}
}

// abortMultipart drops the in-flight multipart upload, if any.
func (w *s3Writer) abortMultipart() error {
	if w.uploadID == "" {
		return nil
	}

	_, err := w.fs.client.AbortMultipartUpload(w.ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.fs.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	w.uploadID = ""
	var noSuchUpload *types.NoSuchUpload
	if err != nil && !errors.As(err, &noSuchUpload) {
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}
	return nil
}

// Abort discards the buffered data and any uploaded parts. No object is
// written, so an existing object at the key survives.
func (w *s3Writer) Abort() error {
	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true
	w.buf.Reset()
	w.parts = nil
	return w.abortMultipart()
}

func (w *s3Writer) Close() error {
	if w.closed {
		return fmt.Errorf("%s: %w", w.path, filesystem.ErrClosed)
	}
	w.closed = true

	if w.failed != nil {
		return w.failed
	}

	// ========================================================================
	// Small file: single PutObject
	// ========================================================================

	if w.uploadID == "" {
		_, err := w.fs.client.PutObject(w.ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.fs.bucket),
			Key:    aws.String(w.key),
			Body:   bytes.NewReader(w.buf.Bytes()),
		})
		if err != nil {
			return fmt.Errorf("failed to put object %s: %w", w.path, err)
		}
		return nil
	}

	// ========================================================================
	// Large file: flush the tail and complete
	// ========================================================================

	if w.buf.Len() > 0 {
		if err := w.flushPart(w.buf.Bytes()); err != nil {
			w.fail(err)
			return w.failed
		}
	}

	_, err := w.fs.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.fs.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		w.fail(fmt.Errorf("failed to complete multipart upload: %w", err))
		return w.failed
	}
	return nil
}

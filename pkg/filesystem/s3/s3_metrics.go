package s3

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Metrics provides observability for S3 requests.
//
// This interface is optional - with nil the client is used as is.
type S3Metrics interface {
	// ObserveOperation records an S3 operation with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred; operation is "read" or "write"
	RecordBytes(operation string, bytes int64)

	// RecordMultipartUpload records a multipart upload event
	// status can be: "initiated", "completed", "aborted"
	RecordMultipartUpload(status string)
}

// metricsReadCloser wraps an io.ReadCloser to track bytes read
type metricsReadCloser struct {
	io.ReadCloser
	metrics   S3Metrics
	bytesRead int64
}

func (m *metricsReadCloser) Read(p []byte) (n int, err error) {
	n, err = m.ReadCloser.Read(p)
	m.bytesRead += int64(n)
	return n, err
}

func (m *metricsReadCloser) Close() error {
	err := m.ReadCloser.Close()
	// Record bytes read regardless of close error
	if m.bytesRead > 0 {
		m.metrics.RecordBytes("read", m.bytesRead)
	}
	return err
}

// instrumentedAPI times every call made through the wrapped client.
type instrumentedAPI struct {
	API
	metrics S3Metrics
}

func (c *instrumentedAPI) observe(operation string, start time.Time, err error) {
	c.metrics.ObserveOperation(operation, time.Since(start), err)
}

func (c *instrumentedAPI) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	start := time.Now()
	out, err := c.API.HeadBucket(ctx, in, opts...)
	c.observe("HeadBucket", start, err)
	return out, err
}

func (c *instrumentedAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	start := time.Now()
	out, err := c.API.HeadObject(ctx, in, opts...)
	// A miss is how Stat learns that a path is not a file.
	if isNotFound(err) {
		c.observe("HeadObject", start, nil)
	} else {
		c.observe("HeadObject", start, err)
	}
	return out, err
}

func (c *instrumentedAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	start := time.Now()
	out, err := c.API.GetObject(ctx, in, opts...)
	c.observe("GetObject", start, err)
	if err == nil {
		out.Body = &metricsReadCloser{ReadCloser: out.Body, metrics: c.metrics}
	}
	return out, err
}

func (c *instrumentedAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	start := time.Now()
	out, err := c.API.PutObject(ctx, in, opts...)
	c.observe("PutObject", start, err)
	if err == nil {
		c.recordBodyLen(in.Body)
	}
	return out, err
}

func (c *instrumentedAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	start := time.Now()
	out, err := c.API.DeleteObject(ctx, in, opts...)
	c.observe("DeleteObject", start, err)
	return out, err
}

func (c *instrumentedAPI) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	start := time.Now()
	out, err := c.API.ListObjectsV2(ctx, in, opts...)
	c.observe("ListObjectsV2", start, err)
	return out, err
}

func (c *instrumentedAPI) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	start := time.Now()
	out, err := c.API.CreateMultipartUpload(ctx, in, opts...)
	c.observe("CreateMultipartUpload", start, err)
	if err == nil {
		c.metrics.RecordMultipartUpload("initiated")
	}
	return out, err
}

func (c *instrumentedAPI) UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	start := time.Now()
	out, err := c.API.UploadPart(ctx, in, opts...)
	c.observe("UploadPart", start, err)
	if err == nil {
		c.recordBodyLen(in.Body)
	}
	return out, err
}

func (c *instrumentedAPI) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	start := time.Now()
	out, err := c.API.CompleteMultipartUpload(ctx, in, opts...)
	c.observe("CompleteMultipartUpload", start, err)
	if err == nil {
		c.metrics.RecordMultipartUpload("completed")
	}
	return out, err
}

func (c *instrumentedAPI) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	start := time.Now()
	out, err := c.API.AbortMultipartUpload(ctx, in, opts...)
	c.observe("AbortMultipartUpload", start, err)
	if err == nil {
		c.metrics.RecordMultipartUpload("aborted")
	}
	return out, err
}

// recordBodyLen records the size of request bodies built by the writer.
func (c *instrumentedAPI) recordBodyLen(body io.Reader) {
	if sized, ok := body.(interface{ Size() int64 }); ok && sized.Size() > 0 {
		c.metrics.RecordBytes("write", sized.Size())
	}
}

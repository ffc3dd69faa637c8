package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

const (
	minPartSize     = 5 * 1024 * 1024
	maxPartSize     = 5 * 1024 * 1024 * 1024
	defaultPartSize = 10 * 1024 * 1024
)

// API is the subset of the S3 client used by the backend.
// *s3.Client satisfies it.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Filesystem implements filesystem.Filesystem on an S3 bucket.
//
// Key Layout:
//   - a file "/www/index.htm" is the object "<prefix>www/index.htm"
//   - a directory "/www" is the empty marker object "<prefix>www/"
//   - a key prefix with objects below it also counts as a directory, so
//     buckets populated by other tools can be browsed
//
// Write Semantics:
// Content is buffered in memory up to PartSize. Small files are stored with
// a single PutObject on Close; larger ones stream as a multipart upload that
// is aborted if any part fails. The object becomes visible on Close.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writers to the same path are last
// writer wins, following S3 semantics.
type S3Filesystem struct {
	client    API
	bucket    string
	keyPrefix string
	partSize  int64
}

// S3FilesystemConfig contains configuration for the S3 backend.
type S3FilesystemConfig struct {
	// Client is the configured S3 client.
	Client API

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "devices/abc/".
	KeyPrefix string

	// PartSize is the multipart part size (default: 10MB, min 5MB, max 5GB).
	PartSize int64

	// Metrics records every S3 request (nil = not recorded).
	Metrics S3Metrics
}

// NewS3Filesystem creates a new S3-backed filesystem and verifies bucket
// access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3Filesystem: Initialized filesystem
//   - error: If the configuration is invalid or the bucket is unreachable
func NewS3Filesystem(ctx context.Context, cfg S3FilesystemConfig) (*S3Filesystem, error) {
	// ========================================================================
	// Step 1: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = defaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	client := cfg.Client
	if cfg.Metrics != nil {
		client = &instrumentedAPI{API: client, metrics: cfg.Metrics}
	}

	// ========================================================================
	// Step 2: Verify bucket access
	// ========================================================================

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return newS3Filesystem(client, cfg.Bucket, prefix, partSize), nil
}

func newS3Filesystem(client API, bucket, prefix string, partSize int64) *S3Filesystem {
	return &S3Filesystem{
		client:    client,
		bucket:    bucket,
		keyPrefix: prefix,
		partSize:  partSize,
	}
}

// objectKey returns the key of the file at p.
func (s *S3Filesystem) objectKey(p string) string {
	return s.keyPrefix + strings.TrimPrefix(p, "/")
}

// dirKey returns the marker key of the directory at p. For the root it is
// the key prefix itself.
func (s *S3Filesystem) dirKey(p string) string {
	if filesystem.IsRoot(p) {
		return s.keyPrefix
	}
	return s.objectKey(p) + "/"
}

// pathOf converts an object key back to a clean path.
func (s *S3Filesystem) pathOf(key string) string {
	return "/" + strings.TrimSuffix(strings.TrimPrefix(key, s.keyPrefix), "/")
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

// Stat resolves p as a file, then as an explicit directory marker, then as
// an implicit directory.
func (s *S3Filesystem) Stat(ctx context.Context, p string) (*filesystem.FileInfo, error) {
	if filesystem.IsRoot(p) {
		return dirInfo(p), nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err == nil {
		info := &filesystem.FileInfo{
			Name: filesystem.Base(p),
			Path: p,
			Type: filesystem.EntryTypeFile,
			Size: aws.ToInt64(head.ContentLength),
		}
		if head.LastModified != nil {
			info.ModTime = *head.LastModified
		}
		return info, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to head object %s: %w", p, err)
	}

	isDir, err := s.dirExists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
	}
	return dirInfo(p), nil
}

// dirExists reports whether any key lives under the directory prefix of p,
// its marker included.
func (s *S3Filesystem) dirExists(ctx context.Context, p string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", p, err)
	}
	return len(out.Contents) > 0, nil
}

func dirInfo(p string) *filesystem.FileInfo {
	return &filesystem.FileInfo{
		Name: filesystem.Base(p),
		Path: p,
		Type: filesystem.EntryTypeDirectory,
	}
}

// requireParentDir checks that the parent of p is a directory.
func (s *S3Filesystem) requireParentDir(ctx context.Context, p string) error {
	parent, err := s.Stat(ctx, filesystem.Parent(p))
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("%s: %w", parent.Path, filesystem.ErrNotDirectory)
	}
	return nil
}

// Open streams the object body.
func (s *S3Filesystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if filesystem.IsRoot(p) {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err == nil {
		return out.Body, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	isDir, dirErr := s.dirExists(ctx, p)
	if dirErr != nil {
		return nil, dirErr
	}
	if isDir {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrIsDirectory)
	}
	return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotFound)
}

// ReadDir lists p with a "/" delimiter. Entries are sorted by name.
func (s *S3Filesystem) ReadDir(ctx context.Context, p string) ([]filesystem.FileInfo, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, filesystem.ErrNotDirectory)
	}

	prefix := s.dirKey(p)
	seen := make(map[string]bool)
	entries := []filesystem.FileInfo{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			childPath := s.pathOf(aws.ToString(cp.Prefix))
			if seen[childPath] {
				continue
			}
			seen[childPath] = true
			entries = append(entries, *dirInfo(childPath))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			childPath := s.pathOf(key)
			if seen[childPath] {
				continue
			}
			seen[childPath] = true

			e := filesystem.FileInfo{
				Name: filesystem.Base(childPath),
				Path: childPath,
				Type: filesystem.EntryTypeFile,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				e.ModTime = *obj.LastModified
			}
			entries = append(entries, e)
		}
	}

	slices.SortFunc(entries, func(a, b filesystem.FileInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// Mkdir stores an empty directory marker.
func (s *S3Filesystem) Mkdir(ctx context.Context, p string) error {
	if filesystem.IsRoot(p) {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	}
	if err := s.requireParentDir(ctx, p); err != nil {
		return err
	}

	if _, err := s.Stat(ctx, p); err == nil {
		return fmt.Errorf("%s: %w", p, filesystem.ErrExists)
	} else if !errors.Is(err, filesystem.ErrNotFound) {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(p)),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to create directory marker %s: %w", p, err)
	}
	return nil
}

// Remove deletes a file object or the marker of an empty directory.
func (s *S3Filesystem) Remove(ctx context.Context, p string) error {
	if filesystem.IsRoot(p) {
		return fmt.Errorf("cannot remove root: %w", filesystem.ErrInvalidPath)
	}

	info, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}

	key := s.objectKey(p)
	if info.IsDir() {
		key = s.dirKey(p)
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(key),
			MaxKeys: aws.Int32(2),
		})
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, obj := range out.Contents {
			if aws.ToString(obj.Key) != key {
				return fmt.Errorf("%s: %w", p, filesystem.ErrNotEmpty)
			}
		}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

// Stats lists every key under the prefix. Directories are counted from both
// markers and the parents of stored objects.
func (s *S3Filesystem) Stats(ctx context.Context) (*filesystem.Stats, error) {
	stats := &filesystem.Stats{}
	dirs := make(map[string]struct{})

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == s.keyPrefix {
				continue
			}

			p := s.pathOf(key)
			if strings.HasSuffix(key, "/") {
				dirs[p] = struct{}{}
			} else {
				stats.Files++
				stats.UsedBytes += uint64(aws.ToInt64(obj.Size))
			}
			for parent := filesystem.Parent(p); !filesystem.IsRoot(parent); parent = filesystem.Parent(parent) {
				dirs[parent] = struct{}{}
			}
		}
	}

	stats.Directories = uint64(len(dirs))
	return stats, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *S3Filesystem) Close() error {
	return nil
}

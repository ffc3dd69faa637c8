//go:build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/fseditor/pkg/filesystem"
	fstesting "github.com/marmos91/fseditor/pkg/filesystem/testing"
	"github.com/stretchr/testify/require"
)

// TestS3Filesystem_Integration runs the conformance suite against a real
// S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/filesystem/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Filesystem_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	bucket := "fseditor-test-bucket"
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	suite := &fstesting.FilesystemTestSuite{
		NewFilesystem: func(t *testing.T) filesystem.Filesystem {
			fs, err := NewS3Filesystem(ctx, S3FilesystemConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: "run-" + uuid.NewString(),
			})
			require.NoError(t, err)
			return fs
		},
		SkipConcurrency: true,
	}

	suite.Run(t)
}

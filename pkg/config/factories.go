package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/filesystem"
	"github.com/marmos91/fseditor/pkg/filesystem/badger"
	"github.com/marmos91/fseditor/pkg/filesystem/local"
	"github.com/marmos91/fseditor/pkg/filesystem/memory"
	"github.com/marmos91/fseditor/pkg/filesystem/s3"
	"github.com/marmos91/fseditor/pkg/filesystem/sqlite"
	"github.com/marmos91/fseditor/pkg/identity"
	promMetrics "github.com/marmos91/fseditor/pkg/metrics/prometheus"
	"github.com/mitchellh/mapstructure"
)

// CreateFilesystem creates the filesystem backend selected by cfg.Type.
//
// The options map matching the type is decoded into the backend's own
// configuration struct and passed to its constructor. With ReadOnly set the
// backend is wrapped so that every mutation fails with ErrReadOnly.
//
// Supported types:
//   - "local": a directory on the host (pkg/filesystem/local)
//   - "memory": ephemeral in-memory tree (pkg/filesystem/memory)
//   - "badger": BadgerDB database (pkg/filesystem/badger)
//   - "sqlite": single SQLite file (pkg/filesystem/sqlite)
//   - "s3": Amazon S3 or compatible bucket (pkg/filesystem/s3)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Filesystem configuration
//
// Returns:
//   - filesystem.Filesystem: Initialized backend
//   - error: Configuration or initialization error
func CreateFilesystem(ctx context.Context, cfg *FilesystemConfig) (filesystem.Filesystem, error) {
	fs, err := createBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ReadOnly {
		logger.Info("Filesystem %s is read-only", cfg.Type)
		return filesystem.ReadOnly(fs), nil
	}
	return fs, nil
}

func createBackend(ctx context.Context, cfg *FilesystemConfig) (filesystem.Filesystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "local":
		return createLocalFilesystem(ctx, cfg.Local)
	case "memory":
		return createMemoryFilesystem(ctx, cfg.Memory)
	case "badger":
		return createBadgerFilesystem(ctx, cfg.Badger)
	case "sqlite":
		return createSQLiteFilesystem(ctx, cfg.SQLite)
	case "s3":
		return createS3Filesystem(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown filesystem type: %q (supported: local, memory, badger, sqlite, s3)", cfg.Type)
	}
}

// decodeOptions decodes a backend option map into out. Input is weakly
// typed so that values coming from environment variables ("true", "1024")
// decode into their field types.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

func createLocalFilesystem(ctx context.Context, options map[string]any) (filesystem.Filesystem, error) {
	var fsCfg local.Config
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode local filesystem config: %w", err)
	}

	if fsCfg.Path == "" {
		return nil, fmt.Errorf("local filesystem: path is required")
	}

	fs, err := local.NewLocalFilesystem(ctx, fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create local filesystem: %w", err)
	}

	logger.Info("Local filesystem initialized: path=%s", fsCfg.Path)
	return fs, nil
}

func createMemoryFilesystem(ctx context.Context, options map[string]any) (filesystem.Filesystem, error) {
	var fsCfg memory.Config
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory filesystem config: %w", err)
	}

	fs, err := memory.NewMemoryFilesystem(ctx, fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory filesystem: %w", err)
	}

	logger.Info("Memory filesystem initialized: max_bytes=%d", fsCfg.MaxBytes)
	return fs, nil
}

func createBadgerFilesystem(ctx context.Context, options map[string]any) (filesystem.Filesystem, error) {
	var fsCfg badger.Config
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger filesystem config: %w", err)
	}

	if fsCfg.DBPath == "" && !fsCfg.InMemory {
		return nil, fmt.Errorf("badger filesystem: db_path is required")
	}

	fs, err := badger.NewBadgerFilesystem(ctx, fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger filesystem: %w", err)
	}

	logger.Info("Badger filesystem initialized: db_path=%s, in_memory=%v", fsCfg.DBPath, fsCfg.InMemory)
	return fs, nil
}

func createSQLiteFilesystem(ctx context.Context, options map[string]any) (filesystem.Filesystem, error) {
	var fsCfg sqlite.Config
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite filesystem config: %w", err)
	}

	if fsCfg.Path == "" {
		return nil, fmt.Errorf("sqlite filesystem: path is required")
	}

	fs, err := sqlite.NewSQLiteFilesystem(ctx, fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite filesystem: %w", err)
	}

	logger.Info("SQLite filesystem initialized: path=%s", fsCfg.Path)
	return fs, nil
}

// s3Options are the keys accepted under filesystem.s3.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func decodeS3Options(options map[string]any) (s3Options, error) {
	var opts s3Options
	if err := decodeOptions(options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode S3 filesystem config: %w", err)
	}
	if opts.Bucket == "" {
		return opts, fmt.Errorf("S3 filesystem: bucket is required")
	}
	if opts.Region == "" {
		return opts, fmt.Errorf("S3 filesystem: region is required")
	}
	return opts, nil
}

// createS3Filesystem builds an S3 client from the options and opens the
// bucket.
func createS3Filesystem(ctx context.Context, options map[string]any) (filesystem.Filesystem, error) {
	opts, err := decodeS3Options(options)
	if err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	// Without static keys the default credential chain applies
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := awsS3.NewFromConfig(awsCfg, func(o *awsS3.Options) {
		if opts.Endpoint != "" {
			// MinIO, Localstack and friends
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Filesystem
	// ========================================================================

	fs, err := s3.NewS3Filesystem(ctx, s3.S3FilesystemConfig{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
		PartSize:  opts.PartSize,
		Metrics:   promMetrics.NewS3Metrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 filesystem: %w", err)
	}

	logger.Info("S3 filesystem initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return fs, nil
}

// CreateIdentitySource returns the hardware address source selected by cfg,
// or nil for source "none".
func CreateIdentitySource(cfg *IdentityConfig) (identity.Source, error) {
	switch cfg.Source {
	case "interface":
		return identity.InterfaceSource{Name: cfg.Interface}, nil
	case "static":
		src, err := identity.ParseMAC(cfg.MAC)
		if err != nil {
			return nil, fmt.Errorf("identity: %w", err)
		}
		return src, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown identity source: %q (supported: interface, static, none)", cfg.Source)
	}
}

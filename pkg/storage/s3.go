// Package storage uploads tile files to an S3 compatible bucket such as AWS
// S3 or MinIO.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kiesman99/imslice/internal/logging"
)

// Config describes the target bucket.
type Config struct {
	// Endpoint overrides the service URL, e.g. http://localhost:9000 for MinIO.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	// PathStyle addresses the bucket in the URL path instead of the host name.
	PathStyle bool
}

// API is the subset of the S3 client used by Uploader.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts tile files into a bucket
type Uploader struct {
	client API
	cfg    Config
	logger *slog.Logger
}

// NewClient builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// NewUploader wraps client. A nil logger discards output.
func NewUploader(client API, cfg Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &Uploader{
		client: client,
		cfg:    cfg,
		logger: logging.OrNop(logger).With("comp", "storage"),
	}, nil
}

// Key returns the object key for a local file.
func (u *Uploader) Key(file string) string {
	return path.Join(u.cfg.Prefix, filepath.Base(file))
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.cfg.Bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("storage: head bucket %s: %w", u.cfg.Bucket, err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(u.cfg.Bucket)}
	if u.cfg.Region != "" && u.cfg.Region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(u.cfg.Region),
		}
	}
	if _, err := u.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", u.cfg.Bucket, err)
	}
	u.logger.Info("created bucket", "bucket", u.cfg.Bucket)
	return nil
}

// UploadFiles puts every file under the configured prefix and returns the
// object keys in the same order. It stops at the first failure.
func (u *Uploader) UploadFiles(ctx context.Context, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key, err := u.upload(ctx, file)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	u.logger.Info("uploaded tiles", "bucket", u.cfg.Bucket, "prefix", u.cfg.Prefix, "count", len(keys))
	return keys, nil
}

func (u *Uploader) upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", file, err)
	}
	defer f.Close()

	key := u.Key(file)
	in := &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", file, err)
	}
	u.logger.Debug("uploaded", "file", file, "key", key)
	return key, nil
}

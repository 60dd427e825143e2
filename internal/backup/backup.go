// Package backup snapshots a live database and ships the snapshot to
// S3-compatible object storage.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

// Uploader stores a snapshot under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// S3Options configures the S3 destination.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // for S3-compatible services; enables path-style addressing
	AccessKey string
	SecretKey string
}

// S3Uploader uploads snapshots to one bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader creates an uploader using the default AWS credential chain,
// or the static keys in opts when both are set.
func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("backup bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(ObjectKey(u.prefix, key)),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// ObjectKey joins prefix and name into an object key.
func ObjectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Snapshot writes a consistent copy of conn's database to a temporary file,
// hands it to up under key, and removes the temporary file.
//
// The caller must hold conn's Lock if conn is shared.
func Snapshot(ctx context.Context, conn *sqlite.Conn, up Uploader, key string) error {
	dir, err := os.MkdirTemp("", "lvsqlite-backup-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "snapshot.db")
	if err := conn.BackupTo(ctx, file); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat snapshot: %w", err)
	}

	if err := up.Upload(ctx, key, f); err != nil {
		return err
	}
	slog.Info("snapshot uploaded", "db", conn.Path(), "key", key, "bytes", info.Size())
	return nil
}

package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store moves staged dataset files into their final location and writes
// small metadata objects beside them. Datasets are staged locally first so
// a failed upload never leaves a partial object at the committed key.
type Store interface {
	// Publish moves the staged file to its final key. The staged file is
	// consumed on success.
	Publish(ctx context.Context, stagedPath, key string) error

	// PutBytes writes a small object (manifests, reports) at key.
	PutBytes(ctx context.Context, key string, data []byte) error

	// Root describes the store destination for logs and reports.
	Root() string
}

// FSStore publishes datasets into a local directory tree.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapError("init", dir, err)
	}
	return &FSStore{root: dir}, nil
}

// StagingDir returns the directory used for in-progress dataset files.
func (s *FSStore) StagingDir() string {
	return filepath.Join(s.root, ".staging")
}

func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Publish(_ context.Context, stagedPath, key string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return WrapError("publish", dst, err)
	}
	if err := os.Rename(stagedPath, dst); err != nil {
		// Rename fails across filesystems; fall back to copy+remove.
		if copyErr := copyFile(stagedPath, dst); copyErr != nil {
			return WrapError("publish", dst, copyErr)
		}
		_ = os.Remove(stagedPath)
	}
	return nil
}

func (s *FSStore) PutBytes(_ context.Context, key string, data []byte) error {
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return WrapError("write", dst, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return WrapError("write", dst, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (MinIO, R2). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store publishes datasets to an S3 bucket.
// Credentials come from the AWS SDK default chain.
type S3Store struct {
	client s3API
	cfg    S3Config
}

// NewS3Store creates an S3 store from the environment's AWS configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return &S3Store{client: s3.NewFromConfig(awsCfg, s3Opts...), cfg: cfg}, nil
}

func (s *S3Store) Root() string {
	if s.cfg.Prefix != "" {
		return "s3://" + s.cfg.Bucket + "/" + s.cfg.Prefix
	}
	return "s3://" + s.cfg.Bucket
}

func (s *S3Store) objectKey(key string) string {
	if s.cfg.Prefix != "" {
		return s.cfg.Prefix + "/" + key
	}
	return key
}

func (s *S3Store) Publish(ctx context.Context, stagedPath, key string) error {
	f, err := os.Open(stagedPath)
	if err != nil {
		return WrapError("publish", stagedPath, err)
	}
	defer f.Close()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   f,
	})
	if err != nil {
		return WrapError("publish", key, err)
	}
	f.Close()
	_ = os.Remove(stagedPath)
	return nil
}

func (s *S3Store) PutBytes(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	return WrapError("write", key, err)
}

package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection parameters for an S3 compatible store.
type MinioConfig struct {
	Endpoint        string // host:port, e.g. "localhost:9000"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

// MinioStore implements Store on a single bucket.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	logger     *slog.Logger
}

// NewMinioStore connects to the endpoint and creates the bucket if it does
// not exist yet.
func NewMinioStore(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.BucketName, err)
	}
	if !exists {
		logger.Info("creating backup bucket", "bucket", cfg.BucketName, "endpoint", cfg.Endpoint)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.BucketName, err)
		}
	}

	return &MinioStore{client: client, bucketName: cfg.BucketName, logger: logger}, nil
}

// Put implements Store.
func (s *MinioStore) Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error {
	name, err := ObjectPath(container, key)
	if err != nil {
		return err
	}

	info, err := s.client.PutObject(ctx, s.bucketName, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	s.logger.Debug("backup object stored", "bucket", s.bucketName, "object", name, "size", info.Size, "etag", info.ETag)
	return nil
}

// Get implements Store.
func (s *MinioStore) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	name, err := ObjectPath(container, key)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, s.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(name, err)
	}
	// GetObject is lazy; Stat surfaces NoSuchKey before the caller reads.
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, s.mapError(name, err)
	}
	return object, nil
}

func (s *MinioStore) mapError(name string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	return fmt.Errorf("get %s: %w", name, err)
}

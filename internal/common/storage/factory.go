package storage

import (
	"context"
	"fmt"

	"formflow/internal/common/aws"
	"formflow/internal/common/config"
)

// NewFromConfig creates the Storage backend named by cfg.Backend.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig, region string) (Storage, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStorage(), nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires storage.s3.bucket")
		}
		awsCfg, err := aws.LoadConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		client, uploader := aws.NewS3Client(awsCfg, aws.S3Options{
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		return NewS3Storage(uploader, client, cfg.S3.Bucket, cfg.PublicBaseURL), nil
	case "minio":
		client, err := NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return NewMinIOStorage(client, cfg.MinIO, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"formflow/internal/common/config"
	"formflow/internal/models"
)

// MinIOAPI is satisfied by *minio.Client.
type MinIOAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinIOStorage struct {
	client  MinIOAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewMinIOClient connects with static credentials.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// NewMinIOStorage builds object URLs from baseURL, or from the endpoint when baseURL is empty.
func NewMinIOStorage(client MinIOAPI, cfg config.MinIOConfig, baseURL string) *MinIOStorage {
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MinIOStorage{client: client, bucket: cfg.Bucket, baseURL: baseURL, now: time.Now}
}

func (m *MinIOStorage) Put(ctx context.Context, file models.FileUpload, folder string) (models.StorageReference, error) {
	key := ObjectKey(folder, file.Filename, m.now())

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(file.Data), file.Size(), minio.PutObjectOptions{
		ContentType: ContentType(file),
	})
	if err != nil {
		return models.StorageReference{}, &Failure{Op: "put", Key: key, Err: err}
	}
	return models.StorageReference{URL: joinURL(m.baseURL, key), StorageID: key}, nil
}

func (m *MinIOStorage) Delete(ctx context.Context, storageID string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, storageID, minio.RemoveObjectOptions{}); err != nil {
		return &Failure{Op: "delete", Key: storageID, Err: err}
	}
	return nil
}

var _ Storage = (*MinIOStorage)(nil)

package storage

import (
	"bytes"
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"formflow/internal/models"
)

// S3Uploader is satisfied by *manager.Uploader.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Deleter is satisfied by *s3.Client.
type S3Deleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	uploader      S3Uploader
	deleter       S3Deleter
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

func NewS3Storage(uploader S3Uploader, deleter S3Deleter, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		uploader:      uploader,
		deleter:       deleter,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
	}
}

func (s *S3Storage) Put(ctx context.Context, file models.FileUpload, folder string) (models.StorageReference, error) {
	key := ObjectKey(folder, file.Filename, s.now())

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(s.bucket),
		Key:           awssdk.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentType:   awssdk.String(ContentType(file)),
		ContentLength: awssdk.Int64(file.Size()),
	})
	if err != nil {
		return models.StorageReference{}, &Failure{Op: "put", Key: key, Err: err}
	}

	url := out.Location
	if s.publicBaseURL != "" || url == "" {
		url = joinURL(s.publicBaseURL, key)
	}
	return models.StorageReference{URL: url, StorageID: key}, nil
}

func (s *S3Storage) Delete(ctx context.Context, storageID string) error {
	_, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(storageID),
	})
	if err != nil {
		return &Failure{Op: "delete", Key: storageID, Err: err}
	}
	return nil
}

var _ Storage = (*S3Storage)(nil)

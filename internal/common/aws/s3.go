// internal/common/aws/s3.go
package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options tweaks the client for S3-compatible endpoints.
type S3Options struct {
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client returns the S3 client and a multipart-capable uploader sharing it.
func NewS3Client(cfg awssdk.Config, opts S3Options) (*s3.Client, *manager.Uploader) {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return client, manager.NewUploader(client)
}

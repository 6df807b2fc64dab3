// Package storage implements the object store the upload coordinator writes
// deploy assets to, backed by S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"skylift/internal/api"
	"skylift/internal/deploy"
)

// S3Store uploads objects to a single bucket using the short-lived
// credentials issued for one deploy.
type S3Store struct {
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store builds an S3-backed object store from deploy credentials.
// Transfer acceleration is enabled: deploys come from end-user networks all
// over the world, the bucket does not move.
func NewS3Store(ctx context.Context, creds *api.Credentials, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UseAccelerate = true
	})

	return &S3Store{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// Put streams one object to the bucket. The upload manager handles multipart
// for larger bodies transparently.
func (s *S3Store) Put(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
		Body:        body,
		ACL:         types.ObjectCannedACLAuthenticatedRead,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
			return deploy.NewError(deploy.CodeUploadAccessDenied,
				"permission to upload to bucket %s denied", s.bucket)
		}
		return fmt.Errorf("uploading to object storage: %w", err)
	}
	return nil
}

// Compile-time check that S3Store implements the coordinator's interface.
var _ deploy.ObjectStore = (*S3Store)(nil)

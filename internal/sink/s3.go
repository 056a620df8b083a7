package sink

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

type s3sink struct {
	uploader *s3manager.Uploader
	bucket   string
}

// NewS3 returns a Sink storing the files in an S3 compatible bucket.
func NewS3(cfg Config) (Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	config := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.S3Endpoint != "" {
		config.Endpoint = aws.String(cfg.S3Endpoint)
	}
	if cfg.S3AccessKeyID != "" {
		config.Credentials = credentials.NewStaticCredentials(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "s3: could not create session")
	}

	return &s3sink{
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.S3Bucket,
	}, nil
}

func (s *s3sink) Name() string {
	return KindS3
}

func (s *s3sink) Put(ctx context.Context, key, contentType string, r io.Reader, _ int64) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        r,
	})
	if err != nil {
		return "", errors.Wrap(err, "s3: could not upload object")
	}
	return out.Location, nil
}

func (s *s3sink) Close() error {
	return nil
}

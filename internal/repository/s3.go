package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog"
)

type S3BlobStore struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	logger     zerolog.Logger
}

// NewS3BlobStore reads credentials from the shared credentials file profile.
// A non-empty endpoint switches to path-style addressing for S3-compatible servers.
func NewS3BlobStore(region, profile, endpoint, bucket string, logger zerolog.Logger) (*S3BlobStore, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewSharedCredentials("", profile),
	}
	if endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	logger.Info().
		Str("region", region).
		Str("bucket", bucket).
		Msg("Connected to S3")

	return &S3BlobStore{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		bucket:     bucket,
		logger:     logger,
	}, nil
}

func (s *S3BlobStore) Provider() string { return "s3" }

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func (s *S3BlobStore) head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
}

func (s *S3BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := s.head(ctx, path); err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, storeErr("exists", path, err)
	}
	return true, nil
}

func (s *S3BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrBlobNotFound
		}
		return nil, storeErr("get", path, err)
	}
	return buf.Bytes(), nil
}

func (s *S3BlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return storeErr("put", path, err)
	}

	s.logger.Debug().
		Str("path", path).
		Str("location", result.Location).
		Int("size", len(data)).
		Msg("Blob uploaded to S3")
	return nil
}

func (s *S3BlobStore) LastModified(ctx context.Context, path string) (time.Time, error) {
	out, err := s.head(ctx, path)
	if err != nil {
		if isS3NotFound(err) {
			return time.Time{}, ErrBlobNotFound
		}
		return time.Time{}, storeErr("stat", path, err)
	}
	return aws.TimeValue(out.LastModified), nil
}

func (s *S3BlobStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isS3NotFound(err) {
		return storeErr("delete", path, err)
	}
	return nil
}

func (s *S3BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			paths = append(paths, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, storeErr("list", prefix, err)
	}
	return paths, nil
}

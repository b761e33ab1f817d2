package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kurin/blazer/b2"
	"github.com/rs/zerolog"
)

type B2BlobStore struct {
	client *b2.Client
	bucket *b2.Bucket
	logger zerolog.Logger
}

func NewB2BlobStore(ctx context.Context, accountID, appKey, bucketName string, logger zerolog.Logger) (*B2BlobStore, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	logger.Info().Str("bucket", bucketName).Msg("Connected to Backblaze B2")

	return &B2BlobStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *B2BlobStore) Provider() string { return "b2" }

func (s *B2BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := s.bucket.Object(path).Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return false, nil
		}
		return false, storeErr("exists", path, err)
	}
	return true, nil
}

func (s *B2BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	r := s.bucket.Object(path).NewReader(ctx)
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, storeErr("get", path, err)
	}
	return data, nil
}

func (s *B2BlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return storeErr("put", path, fmt.Errorf("failed to write object: %w", err))
	}
	if err := w.Close(); err != nil {
		return storeErr("put", path, fmt.Errorf("failed to close writer: %w", err))
	}

	s.logger.Debug().Str("path", path).Int("size", len(data)).Msg("Blob uploaded to B2")
	return nil
}

func (s *B2BlobStore) LastModified(ctx context.Context, path string) (time.Time, error) {
	attrs, err := s.bucket.Object(path).Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return time.Time{}, ErrBlobNotFound
		}
		return time.Time{}, storeErr("stat", path, err)
	}
	if !attrs.LastModified.IsZero() {
		return attrs.LastModified, nil
	}
	return attrs.UploadTimestamp, nil
}

func (s *B2BlobStore) Delete(ctx context.Context, path string) error {
	if err := s.bucket.Object(path).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return storeErr("delete", path, err)
	}
	return nil
}

func (s *B2BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	iter := s.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		paths = append(paths, iter.Object().Name())
	}
	if err := iter.Err(); err != nil {
		return nil, storeErr("list", prefix, err)
	}
	return paths, nil
}

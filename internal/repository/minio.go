package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type MinIOBlobStore struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOBlobStore(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, connectTimeout time.Duration, logger zerolog.Logger) (*MinIOBlobStore, error) {
	// Инициализация клиента MinIO
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &MinIOBlobStore{
		client: client,
		bucket: bucket,
		region: region,
		logger: logger,
	}

	// На старте не падаем, если MinIO ещё не поднялся: бакет проверяется повторно при первом обращении
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		logger.Error().Err(err).
			Str("endpoint", endpoint).
			Str("bucket", bucket).
			Msg("MinIO not ready during startup, will retry on demand")
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("Connected to MinIO")

	return store, nil
}

func (s *MinIOBlobStore) Provider() string { return "minio" }

func (s *MinIOBlobStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("minio not ready: %w", err)
		}

		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			time.Sleep(backoff)
			continue
		}

		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				time.Sleep(backoff)
				continue
			}
			s.logger.Info().Str("bucket", s.bucket).Msg("Created new bucket")
		}

		s.bucketEnsured = true
		return nil
	}
}

func isMinIONotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (s *MinIOBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return false, storeErr("exists", path, err)
	}
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, storeErr("exists", path, err)
	}
	return true, nil
}

func (s *MinIOBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, storeErr("get", path, err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, storeErr("get", path, err)
	}
	defer object.Close()

	// GetObject ленивый, отсутствие ключа всплывает только при чтении
	data, err := io.ReadAll(object)
	if err != nil {
		if isMinIONotFound(err) {
			return nil, ErrBlobNotFound
		}
		return nil, storeErr("get", path, err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("path", path).
		Int("size", len(data)).
		Msg("Blob downloaded from MinIO")

	return data, nil
}

func (s *MinIOBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return storeErr("put", path, err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storeErr("put", path, err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("path", path).
		Str("etag", info.ETag).
		Int("size", len(data)).
		Msg("Blob uploaded to MinIO")

	return nil
}

func (s *MinIOBlobStore) LastModified(ctx context.Context, path string) (time.Time, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return time.Time{}, storeErr("stat", path, err)
	}
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return time.Time{}, ErrBlobNotFound
		}
		return time.Time{}, storeErr("stat", path, err)
	}
	return info.LastModified, nil
}

func (s *MinIOBlobStore) Delete(ctx context.Context, path string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return storeErr("delete", path, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		if isMinIONotFound(err) {
			return nil
		}
		return storeErr("delete", path, err)
	}

	s.logger.Debug().Str("bucket", s.bucket).Str("path", path).Msg("Blob deleted from MinIO")
	return nil
}

func (s *MinIOBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, storeErr("list", prefix, err)
	}

	var paths []string
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, storeErr("list", prefix, object.Err)
		}
		paths = append(paths, object.Key)
	}
	return paths, nil
}

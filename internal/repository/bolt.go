package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

var blobsBucket = []byte("blobs")

type boltRecord struct {
	Data        []byte    `json:"data"`
	ContentType string    `json:"content_type"`
	Modified    time.Time `json:"modified"`
}

// BoltBlobStore keeps blobs in a single local bbolt file.
type BoltBlobStore struct {
	db     *bbolt.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewBoltBlobStore(path string, logger zerolog.Logger) (*BoltBlobStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Info().Str("path", path).Msg("Opened bolt blob store")

	return &BoltBlobStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *BoltBlobStore) Close() error {
	return s.db.Close()
}

func (s *BoltBlobStore) Provider() string { return "bolt" }

func (s *BoltBlobStore) record(path string) (*boltRecord, error) {
	var out *boltRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(blobsBucket).Get([]byte(path))
		if v == nil {
			return ErrBlobNotFound
		}
		var rec boltRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = &rec
		return nil
	})
	return out, err
}

func (s *BoltBlobStore) Exists(_ context.Context, path string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(blobsBucket).Get([]byte(path)) != nil
		return nil
	})
	if err != nil {
		return false, storeErr("exists", path, err)
	}
	return found, nil
}

func (s *BoltBlobStore) Get(_ context.Context, path string) ([]byte, error) {
	rec, err := s.record(path)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, storeErr("get", path, err)
	}
	return rec.Data, nil
}

func (s *BoltBlobStore) Put(_ context.Context, path string, data []byte, contentType string) error {
	value, err := json.Marshal(boltRecord{
		Data:        data,
		ContentType: contentType,
		Modified:    s.now().UTC(),
	})
	if err != nil {
		return storeErr("put", path, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobsBucket).Put([]byte(path), value)
	})
	if err != nil {
		return storeErr("put", path, err)
	}
	return nil
}

func (s *BoltBlobStore) LastModified(_ context.Context, path string) (time.Time, error) {
	rec, err := s.record(path)
	if errors.Is(err, ErrBlobNotFound) {
		return time.Time{}, ErrBlobNotFound
	}
	if err != nil {
		return time.Time{}, storeErr("stat", path, err)
	}
	return rec.Modified, nil
}

func (s *BoltBlobStore) Delete(_ context.Context, path string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobsBucket).Delete([]byte(path))
	})
	if err != nil {
		return storeErr("delete", path, err)
	}
	return nil
}

func (s *BoltBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(blobsBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			paths = append(paths, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list", prefix, err)
	}
	return paths, nil
}

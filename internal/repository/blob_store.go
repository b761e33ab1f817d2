package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrVersionMismatch = errors.New("blob changed since it was read")
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypePDF  = "application/pdf"
)

// BlobStore хранит именованные массивы байт. Все персистентные данные идут через него.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Get returns ErrBlobNotFound when the path is absent.
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
	LastModified(ctx context.Context, path string) (time.Time, error)
	// Delete is a no-op for an absent path.
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Provider() string
}

// VersionedBlobStore is implemented by backends that can refuse a write when the blob
// changed after it was read. Versions are opaque; "" means the blob did not exist.
type VersionedBlobStore interface {
	GetVersion(ctx context.Context, path string) ([]byte, string, error)
	// PutIfVersion returns ErrVersionMismatch when the stored version is not version.
	PutIfVersion(ctx context.Context, path string, data []byte, contentType, version string) error
}

// StoreError is a failure of the underlying blob store. The change it belonged to was not committed.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, path string, err error) error {
	return &StoreError{Op: op, Path: path, Err: err}
}

// DeletePrefix removes every blob under prefix and returns the first error encountered.
func DeletePrefix(ctx context.Context, store BlobStore, prefix string) error {
	paths, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	var firstErr error
	for _, p := range paths {
		if err := store.Delete(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

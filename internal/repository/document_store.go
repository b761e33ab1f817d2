package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrConcurrentUpdate = errors.New("document was modified concurrently")

const defaultUpdateAttempts = 3

type versionedDocument interface {
	GetRevision() int64
	SetRevision(int64)
	Normalize()
}

// documentStore is a single JSON document in the blob store with optimistic revisions.
// Writers within the process are serialized. Against a VersionedBlobStore the commit is a
// conditional write, so a writer from another process makes it fail and retry. Other
// backends only re-read the revision right before the write, which narrows the window
// but does not close it.
type documentStore[T any, PT interface {
	*T
	versionedDocument
}] struct {
	blobs       BlobStore
	path        string
	maxAttempts int
	logger      zerolog.Logger

	mu sync.Mutex
}

func newDocumentStore[T any, PT interface {
	*T
	versionedDocument
}](blobs BlobStore, path string, logger zerolog.Logger) *documentStore[T, PT] {
	return &documentStore[T, PT]{
		blobs:       blobs,
		path:        path,
		maxAttempts: defaultUpdateAttempts,
		logger:      logger,
	}
}

func (d *documentStore[T, PT]) load(ctx context.Context) (PT, error) {
	data, err := d.blobs.Get(ctx, d.path)
	if errors.Is(err, ErrBlobNotFound) {
		data, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.decode(data)
}

// loadVersion is load plus the backend version the commit is conditioned on.
func (d *documentStore[T, PT]) loadVersion(ctx context.Context, vs VersionedBlobStore) (PT, string, error) {
	data, version, err := vs.GetVersion(ctx, d.path)
	if errors.Is(err, ErrBlobNotFound) {
		data, version, err = nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	doc, err := d.decode(data)
	return doc, version, err
}

func (d *documentStore[T, PT]) decode(data []byte) (PT, error) {
	doc := PT(new(T))
	if data != nil {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, storeErr("decode", d.path, err)
		}
	}
	doc.Normalize()
	return doc, nil
}

func (d *documentStore[T, PT]) revision(ctx context.Context) (int64, error) {
	data, err := d.blobs.Get(ctx, d.path)
	if errors.Is(err, ErrBlobNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, storeErr("decode", d.path, err)
	}
	return head.Revision, nil
}

// update runs fn against a fresh copy of the document and commits the result.
// An error returned by fn aborts the transaction and is passed through unchanged.
func (d *documentStore[T, PT]) update(ctx context.Context, fn func(PT) error) (PT, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, conditional := d.blobs.(VersionedBlobStore)

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		var (
			doc     PT
			version string
			err     error
		)
		if conditional {
			doc, version, err = d.loadVersion(ctx, vs)
		} else {
			doc, err = d.load(ctx)
		}
		if err != nil {
			return nil, err
		}
		base := doc.GetRevision()

		if err := fn(doc); err != nil {
			return nil, err
		}

		if !conditional {
			current, err := d.revision(ctx)
			if err != nil {
				return nil, err
			}
			if current != base {
				d.logRetry(base, attempt)
				continue
			}
		}

		doc.SetRevision(base + 1)
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, storeErr("encode", d.path, err)
		}

		if !conditional {
			if err := d.blobs.Put(ctx, d.path, data, ContentTypeJSON); err != nil {
				return nil, err
			}
			return doc, nil
		}

		err = vs.PutIfVersion(ctx, d.path, data, ContentTypeJSON, version)
		if errors.Is(err, ErrVersionMismatch) {
			d.logRetry(base, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	return nil, storeErr("update", d.path, ErrConcurrentUpdate)
}

func (d *documentStore[T, PT]) logRetry(base int64, attempt int) {
	d.logger.Warn().
		Str("path", d.path).
		Int64("base_revision", base).
		Int("attempt", attempt).
		Msg("Document changed during update, retrying")
}

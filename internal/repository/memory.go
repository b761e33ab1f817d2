package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryBlob struct {
	data        []byte
	contentType string
	modified    time.Time
	version     int64
}

// MemoryBlobStore keeps blobs in process memory. Used for tests and the "memory" provider.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
	seq   int64
	now   func() time.Time
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string]memoryBlob),
		now:   time.Now,
	}
}

// WithClock overrides the time source used for last-modified stamps.
func (s *MemoryBlobStore) WithClock(now func() time.Time) *MemoryBlobStore {
	s.now = now
	return s
}

func (s *MemoryBlobStore) Provider() string { return "memory" }

func (s *MemoryBlobStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[path]
	return ok, nil
}

func (s *MemoryBlobStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), b.data...), nil
}

func (s *MemoryBlobStore) Put(_ context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path, data, contentType)
	return nil
}

// put requires s.mu held for writing.
func (s *MemoryBlobStore) put(path string, data []byte, contentType string) {
	s.seq++
	s.blobs[path] = memoryBlob{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    s.now(),
		version:     s.seq,
	}
}

func (s *MemoryBlobStore) GetVersion(_ context.Context, path string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return append([]byte(nil), b.data...), strconv.FormatInt(b.version, 10), nil
}

func (s *MemoryBlobStore) PutIfVersion(_ context.Context, path string, data []byte, contentType, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if b, ok := s.blobs[path]; ok {
		current = strconv.FormatInt(b.version, 10)
	}
	if current != version {
		return ErrVersionMismatch
	}
	s.put(path, data, contentType)
	return nil
}

func (s *MemoryBlobStore) LastModified(_ context.Context, path string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return time.Time{}, ErrBlobNotFound
	}
	return b.modified, nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

func (s *MemoryBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var paths []string
	for p := range s.blobs {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

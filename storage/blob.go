package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds uploaded listing images.
type BlobStore interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
	// KeyFromURL maps a public URL back to its key. It reports false for URLs
	// this store did not issue.
	KeyFromURL(url string) (string, bool)
	Delete(ctx context.Context, key string) error
}

// MemoryBlobStore keeps blobs in memory behind a fake public base URL.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	return &MemoryBlobStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

func (m *MemoryBlobStore) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *MemoryBlobStore) PublicURL(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryBlobStore) KeyFromURL(url string) (string, bool) {
	return trimBase(url, m.baseURL)
}

func (m *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrBlobNotFound
	}
	delete(m.objects, key)
	return nil
}

// Open returns the stored bytes for key.
func (m *MemoryBlobStore) Open(key string) (io.Reader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return bytes.NewReader(b), nil
}

func trimBase(url, base string) (string, bool) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if base == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

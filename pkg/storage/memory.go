package storage

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/postmottak/pkg/lifecycle"
)

type memoryBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

type memory struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

// NewMemory returns a System that keeps blobs in process memory.
// It backs local runs without a storage account and tests.
func NewMemory() System {
	return &memory{blobs: make(map[string]memoryBlob)}
}

func (m *memory) Start(*lifecycle.Coordinator) error { return nil }

func (m *memory) Ping(context.Context) error { return nil }

func (m *memory) Upload(_ context.Context, key string, reader io.Reader, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = memoryBlob{data: data, contentType: contentType, modified: time.Now().UTC()}
	return nil
}

func (m *memory) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *memory) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	if strings.Contains(prefix, "..") {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]BlobInfo, 0)
	for key, b := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			items = append(items, BlobInfo{
				Key:          key,
				Size:         int64(len(b.data)),
				ContentType:  b.contentType,
				LastModified: b.modified,
			})
		}
	}
	slices.SortFunc(items, func(a, b BlobInfo) int { return strings.Compare(a.Key, b.Key) })
	return items, nil
}

func (m *memory) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if err := checkKey(prefix); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			delete(m.blobs, key)
			removed++
		}
	}
	return removed, nil
}

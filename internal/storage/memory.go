package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage holds objects in process for local runs and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *MemoryStorage) Upload(ctx context.Context, path string, data io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return fmt.Errorf("read upload data: %w", err)
	}
	m.mu.Lock()
	m.objects[path] = Object{Data: buf.Bytes(), ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, p)
	}
	return nil
}

func (m *MemoryStorage) PublicURL(path string) string {
	return m.baseURL + "/" + path
}

func (m *MemoryStorage) Get(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	return o, ok
}

func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

package storage

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Memory keeps objects in a map. It backs tests and the "memory" driver.
type Memory struct {
	baseURL string

	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &Error{Name: "StorageError", Message: err.Error(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Name: "Canceled", Message: err.Error(), Err: err}
	}
	if size >= 0 && int64(len(data)) != size {
		return "", &Error{Name: "IncompleteUpload", Message: "size mismatch"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if _, ok := m.objects[key]; ok && !opts.Overwrite {
		return "", &Error{Name: ErrDuplicate.Name, Message: ErrDuplicate.Message}
	}
	m.objects[key] = data
	return key, nil
}

func (m *Memory) PublicURL(path string) string {
	return m.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (m *Memory) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

// Object returns the stored bytes at path.
func (m *Memory) Object(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	return b, ok
}

// Uploads counts Upload calls, including refused ones.
func (m *Memory) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

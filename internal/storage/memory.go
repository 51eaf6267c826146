package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in process memory. It is meant for local
// development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

func (m *MemoryStore) GetName() string {
	return "memory"
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = &Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Metadata:    copyMetadata(metadata),
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &Object{
		Data:        append([]byte(nil), obj.Data...),
		ContentType: obj.ContentType,
		Metadata:    copyMetadata(obj.Metadata),
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) ReplaceMetadata(ctx context.Context, key string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return ErrObjectNotFound
	}
	obj.Metadata = copyMetadata(metadata)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) Close() error {
	return nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package storage

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBlobStore is a BlobStore that lives only as long as the process.
// The badge server falls back to it when BADGE_DB_OFF is set or
// BADGE_DB_PATH is empty.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func blobKey(namespace, key string) string { return namespace + "\x00" + key }

func (m *MemoryBlobStore) Load(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[blobKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

func (m *MemoryBlobStore) Save(_ context.Context, namespace, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[blobKey(namespace, key)] = bytes.Clone(data)
	return nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, blobKey(namespace, key))
	return nil
}

package storage

import (
	"context"
	"sync"
)

/*
MemStore is an in-memory storage provider backed by a map. It is only
suitable for tests and for the headless simulator.
*/

////////////////////////////////////////////////////////////////////////////////

// MemStore is an in-memory store.
type MemStore struct {
	data map[string][]byte
	mtx  sync.RWMutex
}

// NewMemStore returns a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Put stores an object in the store.
func (m *MemStore) Put(_ context.Context, object string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[object] = data
	return nil
}

// GetRange retrieves a byte range of an object from the store.
func (m *MemStore) GetRange(_ context.Context, object string, offset int64, length int64) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	data, ok := m.data[object]
	if !ok {
		return nil, ErrObjectNotFound
	}
	if offset < 0 || length < 0 || offset+length > int64(len(data)) {
		return nil, ErrInvalidRange
	}
	out := make([]byte, length)
	copy(out, data[offset:offset+length])
	return out, nil
}

// Delete removes an object from the store.
func (m *MemStore) Delete(_ context.Context, object string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.data, object)
	return nil
}

func (m *MemStore) String() string {
	return "memory"
}

// Package memstore provides a thread-safe in-memory key-value store, used for
// ephemeral sessions and as the test double for persistent backends.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/rpggio/prodreport/internal/repository"
)

// KV implements repository.KVStore in memory.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty store.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

func (m *KV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return slices.Clone(val), nil
}

func (m *KV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = slices.Clone(value)
	return nil
}

func (m *KV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return repository.ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *KV) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

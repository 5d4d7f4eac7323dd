package blobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/models"
)

// Memory is an in-process store with an optional byte quota. It models the
// browser storage the reference format was designed around.
type Memory struct {
	mu    sync.RWMutex
	items map[string]models.MediaPayload
	used  int64
	quota int64
}

// NewMemory returns an empty store. quota <= 0 means unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{items: make(map[string]models.MediaPayload), quota: quota}
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, p models.MediaPayload) error {
	if err := ctx.Err(); err != nil {
		return writeErr(key, err)
	}
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used
	if old, ok := m.items[key]; ok {
		used -= payloadSize(old)
	}
	size := payloadSize(p)
	if m.quota > 0 && used+size > m.quota {
		return quotaErr(key, used+size, m.quota)
	}
	m.items[key] = p
	m.used = used + size
	return nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string) (models.MediaPayload, error) {
	if err := ctx.Err(); err != nil {
		return models.MediaPayload{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[key]
	if !ok {
		return models.MediaPayload{}, fmt.Errorf("blobstore: get %s: %w", key, apperr.ErrNotFound)
	}
	return p, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[key]; ok {
		m.used -= payloadSize(old)
		delete(m.items, key)
	}
	return nil
}

// ListKeys implements Store.
func (m *Memory) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently counted against the quota.
func (m *Memory) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

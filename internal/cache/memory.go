package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-wide in-memory Store. Entries are never evicted on
// size; call Cleanup periodically to drop stale ones.
type Memory[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
}

// NewMemory creates an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{entries: make(map[string]Entry[T])}
}

// Get retrieves an entry regardless of its age.
func (m *Memory[T]) Get(_ context.Context, key string) (Entry[T], bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return e, ok, nil
}

// Set stores an entry.
func (m *Memory[T]) Set(_ context.Context, key string, e Entry[T]) error {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Invalidate removes a key.
func (m *Memory[T]) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Cleanup removes entries fetched more than maxAge before now and returns how
// many were dropped.
func (m *Memory[T]) Cleanup(now time.Time, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if now.Sub(e.FetchedAt) >= maxAge {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

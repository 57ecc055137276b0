// Package store provides KV implementations.
package store

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	watchers map[int]chan string
	nextID   int
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string][]byte),
		watchers: make(map[int]chan string),
	}
}

// Get returns a copy of the document so callers cannot mutate the store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.docs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.docs[key] = v
	m.notifyLocked(key)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[key]; !ok {
		return nil
	}
	delete(m.docs, key)
	m.notifyLocked(key)
	return nil
}

// Reset drops every document and reports each removed key to watchers.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.docs {
		delete(m.docs, key)
		m.notifyLocked(key)
	}
	return nil
}

// Keys returns the stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.docs))
	for k := range m.docs {
		keys = append(keys, k)
	}
	return keys
}

// =============================================================================
// CHANGE FEED
// =============================================================================

// Watch returns a channel of changed keys. Slow readers miss notifications
// rather than block writers; they must re-read state anyway.
func (m *Memory) Watch(ctx context.Context) (<-chan string, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan string, 64)
	m.watchers[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

func (m *Memory) notifyLocked(key string) {
	for _, ch := range m.watchers {
		select {
		case ch <- key:
		default:
		}
	}
}

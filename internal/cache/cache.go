package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache stores opaque payloads with a per-entry time to live.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GetJSON decodes the cached value for key into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	data, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with lazy expiry.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]entry
	maxEntries int
	now        func() time.Time
}

type MemoryOption func(*Memory)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithMaxEntries bounds the number of live entries; the soonest to expire are dropped first.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:      make(map[string]entry),
		maxEntries: 500,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(it.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	m.trimLocked(now)
	return nil
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) trimLocked(now time.Time) {
	for key, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, key)
		}
	}
	for m.maxEntries > 0 && len(m.items) > m.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, it := range m.items {
			if oldestKey == "" || it.expiresAt.Before(oldest) {
				oldestKey, oldest = key, it.expiresAt
			}
		}
		delete(m.items, oldestKey)
	}
}

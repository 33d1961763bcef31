package storage

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory Store. Tabs sharing one MemoryStore
// behave like tabs sharing one browser profile.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowTime func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryNowTime sets the clock used for expiry checks (primarily for testing)
func WithMemoryNowTime(nowFunc func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.nowTime = nowFunc
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(options ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if expired(entry.expiresAt, m.nowTime()) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if current, ok := m.entries[key]; ok && expired(current.expiresAt, m.nowTime()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

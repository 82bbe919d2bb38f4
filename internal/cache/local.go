package cache

import (
	"context"
	"sync"
	"time"
)

type localLock struct {
	token   string
	expires time.Time
}

// LocalLocker keeps locks in process memory; used when redis is disabled.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

// NewLocalLocker returns an empty process-local locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

// AcquireLock grants the lock when it is free or its previous holder expired.
func (l *LocalLocker) AcquireLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return false, nil
	}
	l.locks[key] = localLock{token: token, expires: now.Add(ttl)}
	return true, nil
}

// ReleaseLock frees the lock if token still owns it.
func (l *LocalLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
	return nil
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is a process-local Store and Locker for single-instance deployments.
type MemoryStore struct {
	*LocalLocker

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{LocalLocker: NewLocalLocker(), entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && !m.now().Before(e.expires)) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

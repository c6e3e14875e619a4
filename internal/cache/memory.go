package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is an in-process TTL store. It backs the cold path when redis
// is unreachable and the small per-process caches (resolver, prices).
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	maxEntries int

	stopCh   chan struct{}
	stopOnce sync.Once
}

type memEntry struct {
	value    string
	counter  int64
	expires  time.Time
	accessed time.Time
}

// NewMemoryStore creates an in-process store bounded to maxEntries; the
// least recently accessed entry is evicted when full.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	m := &MemoryStore{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		return "", false, nil
	}
	e.accessed = time.Now()
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxEntries {
		m.evictLRU()
	}
	m.entries[key] = &memEntry{
		value:    value,
		expires:  expiry(ttl),
		accessed: time.Now(),
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		e = &memEntry{accessed: time.Now()}
		m.entries[key] = e
	}
	e.counter++
	e.accessed = time.Now()
	return e.counter, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.expires = expiry(ttl)
	}
	return nil
}

// ScanKeys matches keys against a glob pattern, redis SCAN style.
func (m *MemoryStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, e := range m.entries {
		if m.expired(e) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Stop shuts down the cleanup goroutine.
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *MemoryStore) expired(e *memEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// evictLRU removes the least recently accessed entry; caller holds the lock.
func (m *MemoryStore) evictLRU() {
	var oldestKey string
	oldest := time.Now().Add(time.Hour)
	for k, e := range m.entries {
		if e.accessed.Before(oldest) {
			oldest = e.accessed
			oldestKey = k
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if m.expired(e) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMemoryLimit bounds the in-memory store; the least recently used
// entry is evicted once it is reached.
const DefaultMemoryLimit = 4096

type memoryEntry struct {
	key       string
	value     []byte
	fetchedAt time.Time
	ttl       time.Duration
}

// Memory is a process-local Store with lazy expiry and an LRU bound. Entries
// are replaced whole under the lock so readers never observe a half-written
// value.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	limit   int
	now     func() time.Time // test hook
}

// NewMemory returns a Memory store holding at most limit entries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}

	return &Memory{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		limit:   limit,
		now:     time.Now,
	}
}

// Get returns the entry if present and fresh. A stale entry is evicted
// lazily here, not by a background sweep.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	el, ok := m.entries[key]

	if !ok {
		m.mu.RUnlock()

		return nil, false, nil
	}

	e := el.Value.(*memoryEntry)
	fresh := m.now().Sub(e.fetchedAt) < e.ttl
	val := e.value
	m.mu.RUnlock()

	if !fresh {
		m.mu.Lock()
		// re-check: another goroutine may have refreshed the entry
		if el, ok := m.entries[key]; ok && m.now().Sub(el.Value.(*memoryEntry).fetchedAt) >= el.Value.(*memoryEntry).ttl {
			m.lru.Remove(el)
			delete(m.entries, key)
		}
		m.mu.Unlock()

		return nil, false, nil
	}

	m.mu.Lock()
	if el, ok := m.entries[key]; ok {
		m.lru.MoveToFront(el)
	}
	m.mu.Unlock()

	return val, true, nil
}

// Set stores value under key, evicting the least recently used entry when
// the bound is hit.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		el.Value = &memoryEntry{key: key, value: value, fetchedAt: m.now(), ttl: ttl}
		m.lru.MoveToFront(el)

		return nil
	}

	m.entries[key] = m.lru.PushFront(&memoryEntry{key: key, value: value, fetchedAt: m.now(), ttl: ttl})

	for m.lru.Len() > m.limit {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}

		m.lru.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}

	return nil
}

// Len reports the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

const defaultCapacity = 10000

type memoryEntry struct {
	key     string
	rels    []common.Relationship
	expires time.Time
}

// Memory is an in-process LRU cache with per-entry expiry.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	items    map[string]*list.Element
	lru      *list.List
}

type MemoryOption func(*Memory)

// WithCapacity bounds the number of cached keys; the least recently used
// entry is evicted first.
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:      ttl,
		capacity: defaultCapacity,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key Key) ([]common.Relationship, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key.String()]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !m.now().Before(entry.expires) {
		m.lru.Remove(el)
		delete(m.items, entry.key)
		return nil, false, nil
	}
	m.lru.MoveToFront(el)
	return cloneRelationships(entry.rels), true, nil
}

func (m *Memory) Set(ctx context.Context, key Key, rels []common.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	entry := &memoryEntry{key: k, rels: cloneRelationships(rels), expires: m.now().Add(m.ttl)}
	if el, ok := m.items[k]; ok {
		el.Value = entry
		m.lru.MoveToFront(el)
		return nil
	}
	m.items[k] = m.lru.PushFront(entry)
	for m.lru.Len() > m.capacity {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

func (m *Memory) Close() error {
	return nil
}

package cache

import (
	"context"
	"sort"
	"sync"
)

const (
	defaultCapacity = 4096
	evictBatch      = 10
)

type memEntry struct {
	val []byte
	seq uint64 // insertion order, oldest first
}

// MemoryStore is an in-process Store with a soft capacity cap. When a
// write would exceed capacity it evicts the ten least-recently-stored
// entries and retries once; if the store is still full the write is
// dropped.
type MemoryStore struct {
	mu      sync.Mutex
	max     int
	seq     uint64
	entries map[string]memEntry
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{max: capacity, entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.val, true
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.max {
		s.evictOldestLocked(evictBatch)
		if len(s.entries) >= s.max {
			return nil // give up; cache is advisory
		}
	}
	s.seq++
	s.entries[key] = memEntry{val: val, seq: s.seq}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memEntry)
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictOldestLocked(n int) {
	type aged struct {
		key string
		seq uint64
	}
	keys := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		keys = append(keys, aged{key: k, seq: e.seq})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].seq < keys[j].seq })
	if n > len(keys) {
		n = len(keys)
	}
	for i := 0; i < n; i++ {
		delete(s.entries, keys[i].key)
	}
}

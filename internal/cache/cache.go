package cache

import (
	"context"
	"encoding/json"
	"time"
)

// entry is the stored envelope. The freshness window is decided by the
// reader, not the writer, so only the store time travels with the value.
type entry struct {
	Data     json.RawMessage `json:"data"`
	StoredAt int64           `json:"ts"` // epoch millis
}

// Store is the raw backing storage for one cache scope. Implementations
// must tolerate arbitrary interleavings of Get/Set on the same or
// different keys; last-write-wins on same-key races is acceptable.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set reports an error only after its own eviction/retry policy is
	// exhausted. Callers treat the cache as advisory and ignore it.
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Cache is a TTL-at-read key/value cache over a Store. The same stored
// value can be fresh for one caller and stale for another depending on
// the TTL each supplies.
type Cache struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Get unmarshals the value for key into dst and reports whether a fresh
// value was found. Missing, corrupt and expired entries are all misses;
// expired and corrupt entries are removed so they cannot resurrect.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, dst any) bool {
	raw, ok := c.store.Get(ctx, key)
	if !ok {
		return false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.store.Delete(ctx, key)
		return false
	}
	if c.now().UnixMilli()-e.StoredAt > ttl.Milliseconds() {
		c.store.Delete(ctx, key)
		return false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		c.store.Delete(ctx, key)
		return false
	}
	return true
}

// Set stores v under key. It never fails from the caller's perspective;
// a write the backing store cannot absorb is silently dropped.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	raw, err := json.Marshal(entry{Data: data, StoredAt: c.now().UnixMilli()})
	if err != nil {
		return
	}
	_ = c.store.Set(ctx, key, raw)
}

// Delete removes key regardless of freshness.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.store.Delete(ctx, key)
}

// Clear drops every entry in this scope.
func (c *Cache) Clear(ctx context.Context) {
	c.store.Clear(ctx)
}

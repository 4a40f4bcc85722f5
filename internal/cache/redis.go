package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultMaxAge is a server-side expiry safety net. Freshness is still
// decided read-side; this only stops abandoned keys from accumulating.
const defaultMaxAge = 7 * 24 * time.Hour

// RedisStore is a redis-backed Store scoped by key prefix, used for the
// long-lived scope (derived scores, summaries, the interest profile).
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pulse:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, maxAge: defaultMaxAge}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte) error {
	return s.rdb.Set(ctx, s.key(key), val, s.maxAge).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) {
	s.rdb.Del(ctx, s.key(key))
}

func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/akverma/glossa/pkg/cache"
)

// RedisCounterStore keeps counters in redis so every gateway instance sees
// the same windows. INCR is atomic; the expiry is attached on the first hit
// in a window and left alone afterwards, which is what gives the fixed
// window its hard reset boundary.
type RedisCounterStore struct {
	rdb *cache.Client
}

func NewRedisCounterStore(rdb *cache.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	count, err := s.rdb.Redis().Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.rdb.Redis().Expire(ctx, key, expiry)
	}
	return count, nil
}

// MemoryCounterStore is the single-instance fallback, mutex-guarded so
// concurrent requests cannot slip past a ceiling through a read-then-write
// race.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	nowFunc  func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		nowFunc:  time.Now,
	}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, expiry time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	counter, ok := s.counters[key]
	if !ok || now.After(counter.expiresAt) {
		s.counters[key] = &memoryCounter{count: 1, expiresAt: now.Add(expiry)}
		return 1, nil
	}

	counter.count++
	return counter.count, nil
}

// SetNowFunc injects a clock for window-expiry tests.
func (s *MemoryCounterStore) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	s.nowFunc = f
	s.mu.Unlock()
}

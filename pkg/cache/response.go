package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const responseKeyPrefix = "explain:cache:"

// Entry is a cached explanation for one normalized selection.
type Entry struct {
	Explanation string    `json:"explanation"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResponseCache maps normalized selection text to a previously computed
// explanation. A miss never distinguishes "never cached" from "expired";
// callers go to the provider either way.
type ResponseCache interface {
	Get(ctx context.Context, normalized string) (*Entry, bool)
	Put(ctx context.Context, normalized string, entry *Entry, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// ResponseKey derives the cache key from normalized text. Two raw selections
// that normalize identically share an entry on purpose: the prompt sent to
// the provider is built from the normalized text.
func ResponseKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return responseKeyPrefix + hex.EncodeToString(sum[:])
}

// RedisResponseCache stores entries as JSON blobs with a redis TTL.
type RedisResponseCache struct {
	rdb *Client
}

func NewRedisResponseCache(rdb *Client) *RedisResponseCache {
	return &RedisResponseCache{rdb: rdb}
}

func (c *RedisResponseCache) Get(ctx context.Context, normalized string) (*Entry, bool) {
	data, err := c.rdb.Get(ctx, ResponseKey(normalized))
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] redis error on get: %v", err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry behaves like a miss; it will be overwritten.
		log.Printf("[CACHE] corrupt entry dropped: %v", err)
		return nil, false
	}
	return &entry, true
}

func (c *RedisResponseCache) Put(ctx context.Context, normalized string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, ResponseKey(normalized), data, ttl)
}

// Clear removes every response entry. Uses SCAN rather than KEYS so a large
// cache does not block redis.
func (c *RedisResponseCache) Clear(ctx context.Context) error {
	iter := c.rdb.Redis().Scan(ctx, 0, responseKeyPrefix+"*", 100).Iterator()
	var deleted int
	for iter.Next(ctx) {
		if err := c.rdb.Redis().Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	log.Printf("[CACHE] cleared %d entries", deleted)
	return nil
}

// MemoryResponseCache is the single-instance fallback used when redis is
// disabled, and by tests. Expired entries are evicted lazily on read.
type MemoryResponseCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

func NewMemoryResponseCache() *MemoryResponseCache {
	return &MemoryResponseCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (c *MemoryResponseCache) Get(_ context.Context, normalized string) (*Entry, bool) {
	key := ResponseKey(normalized)

	c.mu.RLock()
	stored, ok := c.entries[key]
	now := c.nowFunc
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now().After(stored.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	cpy := stored.entry
	return &cpy, true
}

func (c *MemoryResponseCache) Put(_ context.Context, normalized string, entry *Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ResponseKey(normalized)] = memoryEntry{
		entry:     *entry,
		expiresAt: c.nowFunc().Add(ttl),
	}
	return nil
}

func (c *MemoryResponseCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// SetNowFunc injects a clock for TTL tests.
func (c *MemoryResponseCache) SetNowFunc(f func() time.Time) {
	c.mu.Lock()
	c.nowFunc = f
	c.mu.Unlock()
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akverma/glossa/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis with time-series indexes
type RedisStore struct {
	rdb *cache.Client
	ttl time.Duration // retention for log entries
}

// NewRedisStore creates a new Redis-backed storage
func NewRedisStore(rdb *cache.Client, retention time.Duration) *RedisStore {
	if retention == 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: retention}
}

// SaveExplainLog stores a log entry and maintains the timeline indexes.
func (s *RedisStore) SaveExplainLog(ctx context.Context, entry *ExplainLog) error {
	key := fmt.Sprintf("explainlog:%s", entry.ID)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, key, data, s.ttl); err != nil {
		return err
	}

	timestamp := float64(entry.Timestamp.Unix())
	cutoff := fmt.Sprintf("%f", float64(time.Now().Add(-s.ttl).Unix()))

	// Global timeline
	timelineKey := "explainlogs:timeline"
	s.rdb.Redis().ZAdd(ctx, timelineKey, redis.Z{Score: timestamp, Member: entry.ID})
	s.rdb.Redis().ZRemRangeByScore(ctx, timelineKey, "-inf", cutoff)
	s.rdb.Redis().Expire(ctx, timelineKey, s.ttl)

	// Per-identity timeline
	if entry.IdentityKey != "" {
		identityTimeline := fmt.Sprintf("explainlogs:identity:%s", entry.IdentityKey)
		s.rdb.Redis().ZAdd(ctx, identityTimeline, redis.Z{Score: timestamp, Member: entry.ID})
		s.rdb.Redis().ZRemRangeByScore(ctx, identityTimeline, "-inf", cutoff)
		s.rdb.Redis().Expire(ctx, identityTimeline, s.ttl)
	}

	return nil
}

// GetExplainLog retrieves a single entry by ID
func (s *RedisStore) GetExplainLog(ctx context.Context, id string) (*ExplainLog, error) {
	data, err := s.rdb.Get(ctx, fmt.Sprintf("explainlog:%s", id))
	if err != nil {
		return nil, err
	}

	var entry ExplainLog
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListExplainLogs queries entries with filters
func (s *RedisStore) ListExplainLogs(ctx context.Context, filters LogFilters) ([]*ExplainLog, error) {
	indexKey := "explainlogs:timeline"
	if filters.IdentityKey != "" {
		indexKey = fmt.Sprintf("explainlogs:identity:%s", filters.IdentityKey)
	}

	from := "-inf"
	to := "+inf"
	if !filters.From.IsZero() {
		from = fmt.Sprintf("%f", float64(filters.From.Unix()))
	}
	if !filters.To.IsZero() {
		to = fmt.Sprintf("%f", float64(filters.To.Unix()))
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	ids, err := s.rdb.Redis().ZRevRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min:    from,
		Max:    to,
		Offset: int64(filters.Offset),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*ExplainLog, 0, len(ids))
	for _, id := range ids {
		entry, err := s.GetExplainLog(ctx, id)
		if err != nil {
			continue // entry may have expired under its index
		}
		if filters.Outcome != "" && entry.Outcome != filters.Outcome {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetUsageStats aggregates entries within a time range
func (s *RedisStore) GetUsageStats(ctx context.Context, from, to time.Time) (*UsageStats, error) {
	entries, err := s.rangeEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		ByOutcome: make(map[string]int64),
		ByModel:   make(map[string]int64),
	}

	var totalDuration time.Duration
	for _, entry := range entries {
		stats.TotalRequests++
		stats.ByOutcome[entry.Outcome]++
		if entry.Model != "" {
			stats.ByModel[entry.Model]++
		}
		if entry.CacheHit {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
		}
		totalDuration += entry.Duration
	}
	if stats.TotalRequests > 0 {
		stats.AvgDuration = totalDuration / time.Duration(stats.TotalRequests)
	}
	return stats, nil
}

// GetCostStats aggregates provider spend within a time range
func (s *RedisStore) GetCostStats(ctx context.Context, from, to time.Time) (*CostStats, error) {
	entries, err := s.rangeEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &CostStats{ByModel: make(map[string]float64)}
	for _, entry := range entries {
		stats.TotalCost += entry.CostUSD
		stats.TotalTokens += int64(entry.TokensUsed)
		if entry.Model != "" {
			stats.ByModel[entry.Model] += entry.CostUSD
		}
	}
	return stats, nil
}

func (s *RedisStore) rangeEntries(ctx context.Context, from, to time.Time) ([]*ExplainLog, error) {
	return s.ListExplainLogs(ctx, LogFilters{From: from, To: to, Limit: 500})
}

// Ping verifies connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Redis().Ping(ctx).Err()
}

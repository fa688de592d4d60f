package storage

import "time"

// ExplainLog captures the outcome of one gateway decision for the audit and
// usage surfaces. The selection text itself is never stored; only the
// identity key used for rate limiting travels with the log entry.
type ExplainLog struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	IdentityKey string        `json:"identity_key,omitempty"`
	Outcome     string        `json:"outcome"`
	Provider    string        `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	TokensUsed  int           `json:"tokens_used,omitempty"`
	CostUSD     float64       `json:"cost_usd,omitempty"`
	CacheHit    bool          `json:"cache_hit"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// LogFilters for querying explain logs
type LogFilters struct {
	IdentityKey string
	From        time.Time
	To          time.Time
	Outcome     string
	Limit       int
	Offset      int
}

// UsageStats aggregated usage statistics
type UsageStats struct {
	TotalRequests int64            `json:"total_requests"`
	CacheHits     int64            `json:"cache_hits"`
	CacheMisses   int64            `json:"cache_misses"`
	ByOutcome     map[string]int64 `json:"by_outcome"`
	ByModel       map[string]int64 `json:"by_model"`
	AvgDuration   time.Duration    `json:"avg_duration"`
}

// CostStats aggregated cost statistics
type CostStats struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ByModel     map[string]float64 `json:"by_model"`
}

package storage

import (
	"context"
	"time"
)

// Store defines the interface for persisting gateway observability data
type Store interface {
	// Explain logs
	SaveExplainLog(ctx context.Context, entry *ExplainLog) error
	GetExplainLog(ctx context.Context, id string) (*ExplainLog, error)
	ListExplainLogs(ctx context.Context, filters LogFilters) ([]*ExplainLog, error)

	// Analytics
	GetUsageStats(ctx context.Context, from, to time.Time) (*UsageStats, error)
	GetCostStats(ctx context.Context, from, to time.Time) (*CostStats, error)

	// Health check
	Ping(ctx context.Context) error
}

package ports

import (
	"context"
	"ride-logbook-service/internal/domain"
	"time"
)

// CacheAggregate summarizes a set of cache entries.
type CacheAggregate struct {
	Entries   int64
	TotalUses int64
}

// Port: persistent storage behind the route-metric cache. Keys are already normalized.
type RouteCacheStore interface {
	// Hit atomically bumps use_count and last_used of key and returns the entry.
	Hit(ctx context.Context, key domain.RouteKey, now time.Time) (domain.CacheEntry, bool, error)
	// Lookup reads many keys in one query without touching usage.
	Lookup(ctx context.Context, keys []domain.RouteKey) (map[domain.RouteKey]domain.CacheEntry, error)
	// Touch records one use of every key.
	Touch(ctx context.Context, keys []domain.RouteKey, now time.Time) error
	// Insert stores a new entry; it reports false when the key already existed.
	Insert(ctx context.Context, e domain.CacheEntry) (bool, error)

	DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error)
	Compact(ctx context.Context) error
	Clear(ctx context.Context) (int64, error)

	Aggregate(ctx context.Context) (CacheAggregate, error)
	UsedSince(ctx context.Context, since time.Time) (CacheAggregate, error)
	Top(ctx context.Context, n int) ([]domain.CacheEntry, error)
	// Each visits every entry by use_count desc, last_used desc.
	Each(ctx context.Context, fn func(domain.CacheEntry) error) error
}

// MetricSource answers route metrics for validators.
type MetricSource interface {
	Metric(ctx context.Context, origin, destination string) (domain.RouteMetric, error)
}

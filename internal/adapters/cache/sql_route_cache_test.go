package cache

import (
	"context"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/testhelpers"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SQLRouteCache {
	t.Helper()
	return NewSQLRouteCache(testhelpers.OpenSQLite(t), time.UTC)
}

func TestSQLRouteCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	in := domain.CacheEntry{
		Origin: "Muster Straße 1, 45451 Musterstadt", Destination: "Hauptbahnhof 1, Frankfurt Am Main",
		DistanceKm: 12.345, DurationMinutes: 17.5, CreatedAt: created, LastUsedAt: created, UseCount: 1,
	}

	ok, err := c.Insert(ctx, in)
	require.NoError(t, err)
	require.True(t, ok)

	dup, err := c.Insert(ctx, in)
	require.NoError(t, err)
	assert.False(t, dup)

	got, err := c.Lookup(ctx, []domain.RouteKey{in.Key(), {Origin: "X", Destination: "Y"}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[in.Key()]
	assert.Equal(t, in.Origin, e.Origin)
	assert.Equal(t, in.Destination, e.Destination)
	assert.Equal(t, in.DistanceKm, e.DistanceKm)
	assert.Equal(t, in.DurationMinutes, e.DurationMinutes)
	assert.Equal(t, int64(1), e.UseCount)
	assert.True(t, created.Equal(e.CreatedAt))
}

func TestSQLRouteCacheHitIsMonotone(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	t0 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	key := domain.RouteKey{Origin: "A", Destination: "B"}
	_, err := c.Insert(ctx, domain.CacheEntry{Origin: "A", Destination: "B", DistanceKm: 1, DurationMinutes: 2, CreatedAt: t0, LastUsedAt: t0})
	require.NoError(t, err)

	e, ok, err := c.Hit(ctx, key, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), e.UseCount)
	assert.True(t, t0.Add(time.Hour).Equal(e.LastUsedAt))

	// A hit carrying an older clock reading must not move last_used back.
	e, ok, err = c.Hit(ctx, key, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), e.UseCount)
	assert.True(t, t0.Add(time.Hour).Equal(e.LastUsedAt))

	_, ok, err = c.Hit(ctx, domain.RouteKey{Origin: "B", Destination: "A"}, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Touch(ctx, []domain.RouteKey{key, key}, t0.Add(2*time.Hour)))
	got, err := c.Lookup(ctx, []domain.RouteKey{key})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got[key].UseCount)
}

func TestSQLRouteCacheMaintenance(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []domain.CacheEntry{
		{Origin: "A", Destination: "B", CreatedAt: old, LastUsedAt: old, UseCount: 1},
		{Origin: "A", Destination: "C", CreatedAt: old, LastUsedAt: recent, UseCount: 4},
		{Origin: "B", Destination: "C", CreatedAt: recent, LastUsedAt: recent, UseCount: 1},
	}
	for _, e := range seed {
		_, err := c.Insert(ctx, e)
		require.NoError(t, err)
	}

	agg, err := c.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Entries)
	assert.Equal(t, int64(6), agg.TotalUses)

	since, err := c.UsedSince(ctx, recent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), since.Entries)
	assert.Equal(t, int64(5), since.TotalUses)

	top, err := c.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "C", top[0].Destination)
	assert.Equal(t, int64(4), top[0].UseCount)

	n, err := c.DeleteStale(ctx, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, c.Compact(ctx))

	var visited []string
	require.NoError(t, c.Each(ctx, func(e domain.CacheEntry) error {
		visited = append(visited, e.Origin+"->"+e.Destination)
		return nil
	}))
	assert.Equal(t, []string{"A->C", "B->C"}, visited)

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
}

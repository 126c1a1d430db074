package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// RouteCacheOptions tunes maintenance and reporting. Zero values take defaults.
type RouteCacheOptions struct {
	RetentionMonths int
	TopN            int
	CostPerCall     float64
	Now             func() time.Time
}

// RouteCache answers route metrics from storage first and the provider second,
// falling back to a deterministic estimate when neither can.
//
// Provider failures never surface to callers and fallback answers are never
// stored, so a later online lookup can still record the real value.
type RouteCache struct {
	store    ports.RouteCacheStore
	provider ports.RouteProvider
	opts     RouteCacheOptions

	hits          atomic.Int64
	providerCalls atomic.Int64
	fallbacks     atomic.Int64
}

// NewRouteCache builds a cache over store. provider may be nil, in which case
// every miss is answered by the fallback estimate.
func NewRouteCache(store ports.RouteCacheStore, provider ports.RouteProvider, opts RouteCacheOptions) *RouteCache {
	if opts.RetentionMonths <= 0 {
		opts.RetentionMonths = 6
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.CostPerCall <= 0 {
		opts.CostPerCall = 0.005
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RouteCache{store: store, provider: provider, opts: opts}
}

// ProviderEnabled reports whether misses can reach a real provider.
func (c *RouteCache) ProviderEnabled() bool { return c.provider != nil }

func identity() domain.RouteMetric {
	return domain.RouteMetric{Source: domain.FromIdentity}
}

func fromEntry(e domain.CacheEntry) domain.RouteMetric {
	return domain.RouteMetric{DistanceKm: e.DistanceKm, DurationMinutes: e.DurationMinutes, Source: domain.FromCache}
}

// Metric returns the driving distance and duration from origin to destination.
func (c *RouteCache) Metric(ctx context.Context, origin, destination string) (_ domain.RouteMetric, err error) {
	defer obs.Time(ctx, "route.cache.Metric")(&err)

	if c.store == nil {
		return domain.RouteMetric{}, errors.New("route cache: store is nil")
	}

	key := domain.RouteKey{Origin: domain.NormalizeAddress(origin), Destination: domain.NormalizeAddress(destination)}
	if key.Origin == "" || key.Destination == "" || key.Origin == key.Destination {
		return identity(), nil
	}

	now := c.opts.Now()

	e, ok, err := c.store.Hit(ctx, key, now)
	if err != nil {
		return domain.RouteMetric{}, fmt.Errorf("route cache metric: %w", err)
	}
	if ok {
		c.hits.Add(1)
		obs.Logger(ctx).WithFields(logrus.Fields{"origin": key.Origin, "destination": key.Destination}).Debug("route cache hit")
		return fromEntry(e), nil
	}

	if c.provider == nil {
		return c.fallback(ctx, key, nil), nil
	}

	c.providerCalls.Add(1)
	cells, perr := c.provider.DistanceMatrix(ctx, []string{key.Origin}, []string{key.Destination})
	if perr == nil && (len(cells) != 1 || len(cells[0]) != 1 || !cells[0][0].OK) {
		perr = errors.New("provider returned no route")
	}
	if perr != nil {
		return c.fallback(ctx, key, perr), nil
	}

	cell := cells[0][0]
	if err := c.insert(ctx, key, cell, now); err != nil {
		return domain.RouteMetric{}, fmt.Errorf("route cache metric: %w", err)
	}

	return domain.RouteMetric{DistanceKm: cell.DistanceKm, DurationMinutes: cell.DurationMinutes, Source: domain.FromProvider}, nil
}

// MetricMany answers every origin x destination cell with one batched storage
// read and as few provider calls as the batch bounds allow.
func (c *RouteCache) MetricMany(
	ctx context.Context,
	origins []string,
	destinations []string,
) (_ [][]domain.RouteMetric, err error) {
	defer obs.Time(ctx, "route.cache.MetricMany")(&err)

	if c.store == nil {
		return nil, errors.New("route cache: store is nil")
	}

	normO := make([]string, len(origins))
	for i, o := range origins {
		normO[i] = domain.NormalizeAddress(o)
	}
	normD := make([]string, len(destinations))
	for j, d := range destinations {
		normD[j] = domain.NormalizeAddress(d)
	}

	var keys []domain.RouteKey
	seen := map[domain.RouteKey]struct{}{}
	for _, o := range normO {
		for _, d := range normD {
			k := domain.RouteKey{Origin: o, Destination: d}
			if o == "" || d == "" || o == d {
				continue
			}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}

	now := c.opts.Now()

	found, err := c.store.Lookup(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("route cache metric many: %w", err)
	}

	resolved := make(map[domain.RouteKey]domain.RouteMetric, len(keys))
	hitKeys := make([]domain.RouteKey, 0, len(found))
	var missing []domain.RouteKey
	for _, k := range keys {
		if e, ok := found[k]; ok {
			resolved[k] = fromEntry(e)
			hitKeys = append(hitKeys, k)
			continue
		}
		missing = append(missing, k)
	}

	if len(hitKeys) > 0 {
		if err := c.store.Touch(ctx, hitKeys, now); err != nil {
			return nil, fmt.Errorf("route cache metric many: %w", err)
		}
		c.hits.Add(int64(len(hitKeys)))
	}

	if len(missing) > 0 && c.provider != nil {
		if err := c.resolveMisses(ctx, missing, resolved, now); err != nil {
			return nil, fmt.Errorf("route cache metric many: %w", err)
		}
	}

	for _, k := range missing {
		if _, ok := resolved[k]; !ok {
			resolved[k] = c.fallback(ctx, k, nil)
		}
	}

	out := make([][]domain.RouteMetric, len(normO))
	for i, o := range normO {
		out[i] = make([]domain.RouteMetric, len(normD))
		for j, d := range normD {
			if o == "" || d == "" || o == d {
				out[i][j] = identity()
				continue
			}
			out[i][j] = resolved[domain.RouteKey{Origin: o, Destination: d}]
		}
	}

	return out, nil
}

// resolveMisses asks the provider for the distinct missing endpoints, one call
// when they fit the batch bound and one call per 25x25 block otherwise. Only
// requested cells are stored.
func (c *RouteCache) resolveMisses(
	ctx context.Context,
	missing []domain.RouteKey,
	resolved map[domain.RouteKey]domain.RouteMetric,
	now time.Time,
) error {
	want := make(map[domain.RouteKey]struct{}, len(missing))
	var origins, dests []string
	seenO := map[string]struct{}{}
	seenD := map[string]struct{}{}
	for _, k := range missing {
		want[k] = struct{}{}
		if _, ok := seenO[k.Origin]; !ok {
			seenO[k.Origin] = struct{}{}
			origins = append(origins, k.Origin)
		}
		if _, ok := seenD[k.Destination]; !ok {
			seenD[k.Destination] = struct{}{}
			dests = append(dests, k.Destination)
		}
	}

	for _, oc := range chunk(origins, ports.MaxMatrixOrigins) {
		for _, dc := range chunk(dests, ports.MaxMatrixDestinations) {
			if !anyWanted(want, oc, dc) {
				continue
			}
			// Unresolved cells fall back once the caller gives up.
			if ctx.Err() != nil {
				return nil
			}

			c.providerCalls.Add(1)
			cells, err := c.provider.DistanceMatrix(ctx, oc, dc)
			if err != nil {
				obs.Logger(ctx).WithError(err).WithFields(logrus.Fields{
					"origins":      len(oc),
					"destinations": len(dc),
				}).Warn("route provider batch failed; using fallback estimates")
				continue
			}
			if ctx.Err() != nil {
				return nil
			}

			for i, o := range oc {
				if i >= len(cells) {
					break
				}
				for j, d := range dc {
					k := domain.RouteKey{Origin: o, Destination: d}
					if _, ok := want[k]; !ok || j >= len(cells[i]) || !cells[i][j].OK {
						continue
					}
					if err := c.insert(ctx, k, cells[i][j], now); err != nil {
						return err
					}
					resolved[k] = domain.RouteMetric{
						DistanceKm:      cells[i][j].DistanceKm,
						DurationMinutes: cells[i][j].DurationMinutes,
						Source:          domain.FromProvider,
					}
				}
			}
		}
	}

	return nil
}

func anyWanted(want map[domain.RouteKey]struct{}, origins, dests []string) bool {
	for _, o := range origins {
		for _, d := range dests {
			if _, ok := want[domain.RouteKey{Origin: o, Destination: d}]; ok {
				return true
			}
		}
	}
	return false
}

func chunk(s []string, n int) [][]string {
	var out [][]string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

func (c *RouteCache) insert(ctx context.Context, key domain.RouteKey, cell ports.RouteCell, now time.Time) error {
	_, err := c.store.Insert(ctx, domain.CacheEntry{
		Origin:          key.Origin,
		Destination:     key.Destination,
		DistanceKm:      cell.DistanceKm,
		DurationMinutes: cell.DurationMinutes,
		CreatedAt:       now,
		LastUsedAt:      now,
		UseCount:        1,
	})
	return err
}

func (c *RouteCache) fallback(ctx context.Context, key domain.RouteKey, cause error) domain.RouteMetric {
	c.fallbacks.Add(1)

	entry := obs.Logger(ctx).WithFields(logrus.Fields{"origin": key.Origin, "destination": key.Destination})
	if cause != nil {
		entry.WithError(cause).Warn("route provider failed; using fallback estimate")
	} else {
		entry.Debug("no route provider; using fallback estimate")
	}

	return domain.EstimateRoute(key.Origin, key.Destination)
}

// CacheStats combines the process counters with the stored aggregates.
type CacheStats struct {
	Hits              int64               `json:"cache_hits"`
	ProviderCalls     int64               `json:"provider_calls"`
	Fallbacks         int64               `json:"fallbacks"`
	ProviderEnabled   bool                `json:"provider_enabled"`
	Entries           int64               `json:"entries"`
	TotalUses         int64               `json:"total_uses"`
	MeanUses          float64             `json:"mean_uses"`
	SavedCalls        int64               `json:"saved_calls"`
	SessionEfficiency float64             `json:"session_efficiency_percent"`
	SavingsEUR        float64             `json:"estimated_savings_eur"`
	Top               []domain.CacheEntry `json:"top"`
}

func (c *RouteCache) Stats(ctx context.Context) (_ CacheStats, err error) {
	defer obs.Time(ctx, "route.cache.Stats")(&err)

	agg, err := c.store.Aggregate(ctx)
	if err != nil {
		return CacheStats{}, fmt.Errorf("route cache stats: %w", err)
	}
	top, err := c.store.Top(ctx, c.opts.TopN)
	if err != nil {
		return CacheStats{}, fmt.Errorf("route cache stats: %w", err)
	}

	st := CacheStats{
		Hits:            c.hits.Load(),
		ProviderCalls:   c.providerCalls.Load(),
		Fallbacks:       c.fallbacks.Load(),
		ProviderEnabled: c.provider != nil,
		Entries:         agg.Entries,
		TotalUses:       agg.TotalUses,
		SavedCalls:      agg.TotalUses - agg.Entries,
		Top:             top,
	}
	if agg.Entries > 0 {
		st.MeanUses = domain.Round2(float64(agg.TotalUses) / float64(agg.Entries))
	}
	if total := st.Hits + st.ProviderCalls; total > 0 {
		st.SessionEfficiency = domain.Round1(float64(st.Hits) / float64(total) * 100)
	}
	st.SavingsEUR = domain.Round2(float64(st.SavedCalls) * c.opts.CostPerCall)

	return st, nil
}

// Optimize drops single-use entries older than the retention window and
// compacts the store. It returns the number of entries removed.
func (c *RouteCache) Optimize(ctx context.Context) (_ int64, err error) {
	defer obs.Time(ctx, "route.cache.Optimize")(&err)

	cutoff := c.opts.Now().AddDate(0, -c.opts.RetentionMonths, 0)
	n, err := c.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("route cache optimize: %w", err)
	}
	if err := c.store.Compact(ctx); err != nil {
		return n, fmt.Errorf("route cache optimize: %w", err)
	}

	obs.Logger(ctx).WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff.Format(domain.DateLayout)}).Info("route cache optimized")
	return n, nil
}

func (c *RouteCache) Clear(ctx context.Context) (int64, error) {
	n, err := c.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("route cache clear: %w", err)
	}
	obs.Logger(ctx).WithField("deleted", n).Info("route cache cleared")
	return n, nil
}

// Preload warms the cache with every pair among hq and destinations in both
// directions.
func (c *RouteCache) Preload(ctx context.Context, hq string, destinations []string) (int, error) {
	points := make([]string, 0, len(destinations)+1)
	seen := map[string]struct{}{}
	for _, p := range append([]string{hq}, destinations...) {
		n := domain.NormalizeAddress(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		points = append(points, n)
	}
	if len(points) < 2 {
		return 0, fmt.Errorf("route cache preload: need headquarters and at least one destination: %w", domain.ErrInvalidInput)
	}

	if _, err := c.MetricMany(ctx, points, points); err != nil {
		return 0, fmt.Errorf("route cache preload: %w", err)
	}

	return len(points) * (len(points) - 1), nil
}

// Export writes every entry as CSV, most used first.
func (c *RouteCache) Export(ctx context.Context, w io.Writer) (_ int, err error) {
	defer obs.Time(ctx, "route.cache.Export")(&err)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"origin", "destination", "distance_km", "duration_min", "use_count", "created_at", "last_used"}); err != nil {
		return 0, fmt.Errorf("route cache export: %w", err)
	}

	n := 0
	err = c.store.Each(ctx, func(e domain.CacheEntry) error {
		n++
		return cw.Write([]string{
			e.Origin,
			e.Destination,
			strconv.FormatFloat(e.DistanceKm, 'f', -1, 64),
			strconv.FormatFloat(e.DurationMinutes, 'f', -1, 64),
			strconv.FormatInt(e.UseCount, 10),
			e.CreatedAt.Format(domain.TimestampLayout),
			e.LastUsedAt.Format(domain.TimestampLayout),
		})
	})
	if err != nil {
		return n, fmt.Errorf("route cache export: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("route cache export: flush: %w", err)
	}
	return n, nil
}

// UsageWindow is cache activity within one timeframe.
type UsageWindow struct {
	Label     string    `json:"label"`
	Since     time.Time `json:"since"`
	Entries   int64     `json:"entries"`
	TotalUses int64     `json:"total_uses"`
}

// Usage reports entries used today and within the last 7, 30 and 365 days.
func (c *RouteCache) Usage(ctx context.Context) ([]UsageWindow, error) {
	now := c.opts.Now()
	windows := []UsageWindow{
		{Label: "today", Since: domain.StartOfDay(now)},
		{Label: "7d", Since: now.AddDate(0, 0, -7)},
		{Label: "30d", Since: now.AddDate(0, 0, -30)},
		{Label: "365d", Since: now.AddDate(0, 0, -365)},
	}

	for i := range windows {
		agg, err := c.store.UsedSince(ctx, windows[i].Since)
		if err != nil {
			return nil, fmt.Errorf("route cache usage %s: %w", windows[i].Label, err)
		}
		windows[i].Entries = agg.Entries
		windows[i].TotalUses = agg.TotalUses
	}

	return windows, nil
}

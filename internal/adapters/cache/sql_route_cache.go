package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"time"
)

// SQLRouteCache is the address_cache table behind the route-metric cache.
// Keys are expected to be normalized by the caller.
type SQLRouteCache struct {
	Store *db.Store
	Loc   *time.Location
}

func NewSQLRouteCache(store *db.Store, loc *time.Location) *SQLRouteCache {
	if loc == nil {
		loc = time.Local
	}
	return &SQLRouteCache{Store: store, Loc: loc}
}

const entryColumns = `origin_address, destination_address, distance_km, duration_minutes, created_date, last_used, use_count`

var errNilDB = errors.New("route cache: db is nil")

// Hit records one use of key and returns the updated entry. last_used never
// moves backwards.
func (s *SQLRouteCache) Hit(ctx context.Context, key domain.RouteKey, now time.Time) (domain.CacheEntry, bool, error) {
	if s.Store == nil {
		return domain.CacheEntry{}, false, errNilDB
	}

	ts := domain.FormatTimestamp(now, s.Loc)
	row := s.Store.QueryRowContext(ctx, s.Store.Rebind(`
	UPDATE address_cache
	SET use_count = use_count + 1,
		last_used = CASE WHEN last_used < ? THEN ? ELSE last_used END
	WHERE origin_address = ? AND destination_address = ?
	RETURNING `+entryColumns+`;
	`), ts, ts, key.Origin, key.Destination)

	e, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("route cache hit %q -> %q: %w", key.Origin, key.Destination, err)
	}

	return e, true, nil
}

// Fetch cached metrics for many keys in one query.
func (s *SQLRouteCache) Lookup(
	ctx context.Context,
	keys []domain.RouteKey,
) (_ map[domain.RouteKey]domain.CacheEntry, err error) {
	defer obs.Time(ctx, "route.cache.Lookup")(&err)

	if s.Store == nil {
		return nil, errNilDB
	}

	want := make(map[domain.RouteKey]struct{}, len(keys))
	origins := make([]any, 0, len(keys))
	dests := make([]any, 0, len(keys))
	seenO := map[string]struct{}{}
	seenD := map[string]struct{}{}
	for _, k := range keys {
		if k.Origin == "" || k.Destination == "" {
			continue
		}
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

	out := make(map[domain.RouteKey]domain.CacheEntry, len(want))
	if len(want) == 0 {
		return out, nil
	}

	q := `
	SELECT ` + entryColumns + `
	FROM address_cache
	WHERE origin_address IN (` + db.Placeholders(len(origins)) + `)
		AND destination_address IN (` + db.Placeholders(len(dests)) + `);
	`
	args := append(origins, dests...)

	rows, err := s.Store.QueryContext(ctx, s.Store.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("route cache lookup: query address_cache table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("route cache lookup: scan rows: %w", err)
		}
		if _, ok := want[e.Key()]; ok {
			out[e.Key()] = e
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("route cache lookup: row iteration: %w", err)
	}

	return out, nil
}

// Touch records one use of every key in a single transaction.
func (s *SQLRouteCache) Touch(ctx context.Context, keys []domain.RouteKey, now time.Time) error {
	if s.Store == nil {
		return errNilDB
	}

	if len(keys) == 0 {
		return nil
	}

	tx, err := s.Store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("touch route cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.Store.Rebind(`
	UPDATE address_cache
	SET use_count = use_count + 1,
		last_used = CASE WHEN last_used < ? THEN ? ELSE last_used END
	WHERE origin_address = ? AND destination_address = ?;
	`))
	if err != nil {
		return fmt.Errorf("touch route cache: db prepare: %w", err)
	}
	defer stmt.Close()

	ts := domain.FormatTimestamp(now, s.Loc)
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, ts, ts, k.Origin, k.Destination); err != nil {
			return fmt.Errorf("touch route cache %q -> %q: %w", k.Origin, k.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("touch route cache commit: %w", err)
	}

	return nil
}

// Insert stores a fresh entry, with use_count 1 unless e says otherwise. A concurrent insert of the same
// key collapses to a no-op and reports false.
func (s *SQLRouteCache) Insert(ctx context.Context, e domain.CacheEntry) (bool, error) {
	if s.Store == nil {
		return false, errNilDB
	}

	if e.Origin == "" || e.Destination == "" {
		return false, fmt.Errorf("insert route cache: empty key: %w", domain.ErrInvalidInput)
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	lastUsed := e.LastUsedAt
	if lastUsed.Before(created) {
		lastUsed = created
	}
	uses := e.UseCount
	if uses < 1 {
		uses = 1
	}

	res, err := s.Store.ExecContext(ctx, s.Store.Rebind(`
	INSERT INTO address_cache (`+entryColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (origin_address, destination_address) DO NOTHING;
	`),
		e.Origin, e.Destination, e.DistanceKm, e.DurationMinutes,
		domain.FormatTimestamp(created, s.Loc), domain.FormatTimestamp(lastUsed, s.Loc), uses,
	)
	if err != nil {
		return false, fmt.Errorf("insert route cache %q -> %q: %w", e.Origin, e.Destination, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert route cache: rows affected: %w", err)
	}

	return n > 0, nil
}

// DeleteStale removes single-use entries created before the cutoff.
func (s *SQLRouteCache) DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	if s.Store == nil {
		return 0, errNilDB
	}

	res, err := s.Store.ExecContext(ctx, s.Store.Rebind(`
	DELETE FROM address_cache WHERE use_count = 1 AND created_date < ?;
	`), domain.FormatTimestamp(createdBefore, s.Loc))
	if err != nil {
		return 0, fmt.Errorf("delete stale route cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale route cache: rows affected: %w", err)
	}
	return n, nil
}

// Compact reclaims space after deletions.
func (s *SQLRouteCache) Compact(ctx context.Context) (err error) {
	defer obs.Time(ctx, "route.cache.Compact")(&err)

	if s.Store == nil {
		return errNilDB
	}

	stmt := "VACUUM"
	if s.Store.Dialect == db.Postgres {
		stmt = "VACUUM address_cache"
	}
	if _, err := s.Store.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("compact route cache: %w", err)
	}
	return nil
}

func (s *SQLRouteCache) Clear(ctx context.Context) (int64, error) {
	if s.Store == nil {
		return 0, errNilDB
	}

	res, err := s.Store.ExecContext(ctx, `DELETE FROM address_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear route cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear route cache: rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLRouteCache) Aggregate(ctx context.Context) (ports.CacheAggregate, error) {
	return s.aggregate(ctx, `SELECT COUNT(*), COALESCE(SUM(use_count), 0) FROM address_cache`)
}

// UsedSince aggregates the entries last used at or after since.
func (s *SQLRouteCache) UsedSince(ctx context.Context, since time.Time) (ports.CacheAggregate, error) {
	return s.aggregate(ctx,
		`SELECT COUNT(*), COALESCE(SUM(use_count), 0) FROM address_cache WHERE last_used >= ?`,
		domain.FormatTimestamp(since, s.Loc),
	)
}

func (s *SQLRouteCache) aggregate(ctx context.Context, q string, args ...any) (ports.CacheAggregate, error) {
	if s.Store == nil {
		return ports.CacheAggregate{}, errNilDB
	}

	var a ports.CacheAggregate
	if err := s.Store.QueryRowContext(ctx, s.Store.Rebind(q), args...).Scan(&a.Entries, &a.TotalUses); err != nil {
		return ports.CacheAggregate{}, fmt.Errorf("aggregate route cache: %w", err)
	}
	return a, nil
}

// Top returns the n most used entries.
func (s *SQLRouteCache) Top(ctx context.Context, n int) ([]domain.CacheEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	var out []domain.CacheEntry
	err := s.each(ctx, `LIMIT ?`, []any{n}, func(e domain.CacheEntry) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("top route cache entries: %w", err)
	}
	return out, nil
}

// Each visits every entry, most used first.
func (s *SQLRouteCache) Each(ctx context.Context, fn func(domain.CacheEntry) error) error {
	if err := s.each(ctx, "", nil, fn); err != nil {
		return fmt.Errorf("iterate route cache: %w", err)
	}
	return nil
}

func (s *SQLRouteCache) each(ctx context.Context, suffix string, args []any, fn func(domain.CacheEntry) error) error {
	if s.Store == nil {
		return errNilDB
	}

	q := `SELECT ` + entryColumns + ` FROM address_cache ORDER BY use_count DESC, last_used DESC ` + suffix
	rows, err := s.Store.QueryContext(ctx, s.Store.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("query address_cache table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return fmt.Errorf("scan rows: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLRouteCache) scan(row scanner) (domain.CacheEntry, error) {
	var e domain.CacheEntry
	var created, lastUsed string
	if err := row.Scan(&e.Origin, &e.Destination, &e.DistanceKm, &e.DurationMinutes, &created, &lastUsed, &e.UseCount); err != nil {
		return domain.CacheEntry{}, err
	}

	if t, err := domain.ParseTimestamp("created_date", created, s.Loc); err == nil {
		e.CreatedAt = t
	}
	if t, err := domain.ParseTimestamp("last_used", lastUsed, s.Loc); err == nil {
		e.LastUsedAt = t
	}

	return e, nil
}

package repositories

import (
	"database/sql"
	"ride-logbook-service/internal/domain"
	"strings"
	"time"
)

// Booleans are stored as 0/1 integers in both dialects.
func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(t *time.Time, loc *time.Location) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: domain.FormatTimestamp(*t, loc), Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// parseStoredTime returns nil for NULL, empty or unparseable timestamps.
func parseStoredTime(field string, s sql.NullString, loc *time.Location) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := domain.ParseTimestamp(field, s.String, loc)
	if err != nil {
		return nil
	}
	return &t
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package domain

import (
	"math"
	"time"
	"unicode/utf8"
)

// Provenance records where a RouteMetric came from.
type Provenance string

const (
	FromCache    Provenance = "cache"
	FromProvider Provenance = "provider"
	FromFallback Provenance = "fallback"
	// FromIdentity marks an empty or origin == destination query answered as zero.
	FromIdentity Provenance = "identity"
)

// RouteMetric is a driving distance and duration between two addresses.
type RouteMetric struct {
	DistanceKm      float64    `json:"distance_km"`
	DurationMinutes float64    `json:"duration_minutes"`
	Source          Provenance `json:"source"`
}

// RouteKey is a normalized (origin, destination) pair.
type RouteKey struct {
	Origin      string
	Destination string
}

// CacheEntry is one persisted route metric.
type CacheEntry struct {
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	LastUsedAt      time.Time `json:"last_used"`
	UseCount        int64     `json:"use_count"`
}

func (e CacheEntry) Key() RouteKey { return RouteKey{Origin: e.Origin, Destination: e.Destination} }

const (
	fallbackKmPerChar    = 0.5
	fallbackMinKm        = 1.0
	fallbackMinutesPerKm = 2.0
	fallbackMaxMinutes   = 60.0
)

// EstimateRoute is the deterministic offline estimate used when no provider
// answer is available: km = max(1, |len(o)-len(d)| * 0.5) and
// minutes = min(60, km * 2), with lengths counted in runes of the normalized forms.
func EstimateRoute(normOrigin, normDestination string) RouteMetric {
	diff := math.Abs(float64(utf8.RuneCountInString(normOrigin) - utf8.RuneCountInString(normDestination)))
	km := math.Max(fallbackMinKm, diff*fallbackKmPerChar)
	return RouteMetric{
		DistanceKm:      km,
		DurationMinutes: math.Min(fallbackMaxMinutes, km*fallbackMinutesPerKm),
		Source:          FromFallback,
	}
}

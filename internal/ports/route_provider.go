package ports

import (
	"context"
	"errors"
)

// Batch bounds of a single distance-matrix request.
const (
	MaxMatrixOrigins      = 25
	MaxMatrixDestinations = 25
)

// ErrProviderUnavailable is returned when no provider is configured or the
// provider is failing fast.
var ErrProviderUnavailable = errors.New("route provider unavailable")

// RouteCell is one origin/destination answer of a distance matrix.
// OK is false when the provider could not route that cell.
type RouteCell struct {
	DistanceKm      float64
	DurationMinutes float64
	OK              bool
}

// Contract for an external distance-matrix service.
type RouteProvider interface {
	// Return one row per origin and one cell per destination, in input order.
	DistanceMatrix(ctx context.Context, origins, destinations []string) ([][]RouteCell, error)
}

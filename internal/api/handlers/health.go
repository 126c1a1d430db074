package handlers

import (
	"context"
	"net/http"
	"ride-logbook-service/internal/platform/obs"
	"time"
)

// Pinger is the storage handle the health check pings.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether storage answers and whether route metrics come
// from the provider or the offline estimate.
type HealthHandler struct {
	DB              Pinger
	ProviderEnabled func() bool
	Timeout         time.Duration
}

type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	RouteProvider string `json:"route_provider"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := healthResponse{Status: "ok", Database: "ok", RouteProvider: "offline"}
	if h.ProviderEnabled != nil && h.ProviderEnabled() {
		res.RouteProvider = "enabled"
	}

	status := http.StatusOK
	if h.DB == nil {
		res.Status, res.Database = "degraded", "unconfigured"
		status = http.StatusServiceUnavailable
	} else {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := h.DB.PingContext(ctx); err != nil {
			obs.Logger(r.Context()).WithError(err).Warn("health: database ping failed")
			res.Status, res.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, r, status, res)
}

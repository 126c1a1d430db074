package api

import (
	"net/http"
	"ride-logbook-service/internal/api/handlers"
	"ride-logbook-service/internal/services"
	"time"

	"github.com/go-chi/chi/v5"
)

// Deps are the services exposed over HTTP.
type Deps struct {
	DB    handlers.Pinger
	Cache *services.RouteCache
	Rides *services.RideValidator
	Labor *services.LaborValidator
	Rules *services.RuleStore
	Loc   *time.Location
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)

	healthHandler := &handlers.HealthHandler{DB: d.DB, ProviderEnabled: d.Cache.ProviderEnabled}
	cacheHandler := &handlers.CacheHandler{Cache: d.Cache}
	rideHandler := &handlers.RideHandler{Validator: d.Rides}
	laborHandler := &handlers.LaborHandler{Validator: d.Labor, Loc: d.Loc}
	ruleHandler := &handlers.RuleHandler{Rules: d.Rules}

	r.Get("/health", healthHandler.Health)

	r.Get("/cache/stats", cacheHandler.Stats)
	r.Post("/cache/optimize", cacheHandler.Optimize)
	r.Post("/routes/metric", cacheHandler.Metric)
	r.Post("/routes/matrix", cacheHandler.Matrix)

	r.Post("/rides/{id}/validate", rideHandler.Validate)
	r.Post("/shifts/{id}/validate", laborHandler.ValidateShift)
	r.Get("/drivers/{id}/weeks/{date}", laborHandler.Week)
	r.Get("/drivers/{id}/violations", laborHandler.Open)

	r.Get("/companies/{id}/rules", ruleHandler.List)
	r.Put("/companies/{id}/rules/{name}", ruleHandler.Set)

	return r
}

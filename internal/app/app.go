package app

import (
	"context"
	"fmt"
	"net/http"
	"ride-logbook-service/internal/adapters/cache"
	"ride-logbook-service/internal/adapters/distance"
	"ride-logbook-service/internal/adapters/repositories"
	"ride-logbook-service/internal/api"
	"ride-logbook-service/internal/config"
	"ride-logbook-service/internal/platform/db"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"ride-logbook-service/internal/services"
	"time"
)

// App is the wired core shared by the HTTP server and the operator CLI.
type App struct {
	Config config.Config
	Loc    *time.Location
	Store  *db.Store

	Companies *repositories.SQLCompanyRepository

	Rules *services.RuleStore
	Cache *services.RouteCache
	Rides *services.RideValidator
	Labor *services.LaborValidator
}

// New opens storage, makes sure the schema exists and wires the services.
// The Google provider is attached only when an API key is configured; without
// it the cache answers misses with the offline estimate.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if err := repositories.InitSchema(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	var provider ports.RouteProvider
	if cfg.Provider.APIKey != "" {
		google, err := distance.NewGoogleRouteProvider(cfg.Provider.APIKey, distance.GoogleOptions{
			BaseURL:         cfg.Provider.BaseURL,
			SingleTimeout:   cfg.Provider.SingleTimeout,
			BatchTimeout:    cfg.Provider.BatchTimeout,
			MaxAttempts:     cfg.Provider.MaxAttempts,
			Traffic:         cfg.Provider.Traffic,
			BreakerFailures: cfg.Provider.BreakerFailures,
			BreakerReset:    cfg.Provider.BreakerReset,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		provider = google
	} else {
		obs.Logger(ctx).Warn("GOOGLE_MAPS_API_KEY not set; route metrics use the offline estimate")
	}

	a := &App{
		Config:    cfg,
		Loc:       loc,
		Store:     store,
		Companies: repositories.NewSQLCompanyRepository(store),
	}

	rides := repositories.NewSQLRideRepository(store, loc)
	a.Rules = services.NewRuleStore(repositories.NewSQLRuleRepository(store))
	a.Cache = services.NewRouteCache(cache.NewSQLRouteCache(store, loc), provider, services.RouteCacheOptions{
		RetentionMonths: cfg.Cache.RetentionMonths,
		TopN:            cfg.Cache.TopN,
		CostPerCall:     cfg.Cache.CostPerCall,
	})
	a.Rides = services.NewRideValidator(rides, a.Companies, a.Rules, a.Cache)
	a.Labor = services.NewLaborValidator(
		repositories.NewSQLShiftRepository(store, loc),
		rides,
		repositories.NewSQLLaborViolationRepository(store, loc),
		loc,
	)

	return a, nil
}

// Handler returns the HTTP API over the wired services.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		DB:    a.Store,
		Cache: a.Cache,
		Rides: a.Rides,
		Labor: a.Labor,
		Rules: a.Rules,
		Loc:   a.Loc,
	})
}

func (a *App) Close() error {
	return a.Store.Close()
}

package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"ride-logbook-service/internal/platform/breaker"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"strings"
	"time"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com/maps/api"

// GoogleOptions tunes the Distance Matrix client. Zero values take defaults.
type GoogleOptions struct {
	BaseURL         string
	SingleTimeout   time.Duration
	BatchTimeout    time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	Traffic         bool
	BreakerFailures int
	BreakerReset    time.Duration
	Client          *http.Client
}

// GoogleRouteProvider implements RouteProvider using the Google Distance
// Matrix API.
//
// It coordinates:
//   - Per-request timeouts (single pair vs batch)
//   - Retry with backoff on transient failures
//   - A circuit breaker so that an unreachable API fails fast
//
// The provider is safe for concurrent use.
type GoogleRouteProvider struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	singleTimeout time.Duration
	batchTimeout  time.Duration
	maxAttempts   int
	backoff       time.Duration
	traffic       bool
	breaker       *breaker.Breaker
}

func NewGoogleRouteProvider(apiKey string, opts GoogleOptions) (*GoogleRouteProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is empty: %w", ports.ErrProviderUnavailable)
	}

	p := &GoogleRouteProvider{
		session:       opts.Client,
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		singleTimeout: opts.SingleTimeout,
		batchTimeout:  opts.BatchTimeout,
		maxAttempts:   opts.MaxAttempts,
		backoff:       opts.Backoff,
		traffic:       opts.Traffic,
	}

	if p.session == nil {
		// One shared client keeps connections alive across calls.
		p.session = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	if p.baseURL == "" {
		p.baseURL = defaultGoogleBaseURL
	}
	if p.singleTimeout <= 0 {
		p.singleTimeout = 10 * time.Second
	}
	if p.batchTimeout <= 0 {
		p.batchTimeout = 30 * time.Second
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 4
	}
	if p.backoff <= 0 {
		p.backoff = 200 * time.Millisecond
	}

	failures, reset := opts.BreakerFailures, opts.BreakerReset
	if failures <= 0 {
		failures = 5
	}
	if reset <= 0 {
		reset = time.Minute
	}
	p.breaker = breaker.New(failures, reset)

	return p, nil
}

// DistanceMatrix resolves every origin/destination combination in one request.
// Both lists must hold between 1 and 25 addresses.
func (g *GoogleRouteProvider) DistanceMatrix(
	ctx context.Context,
	origins []string,
	destinations []string,
) (_ [][]ports.RouteCell, err error) {
	defer obs.Time(ctx, "google.DistanceMatrix")(&err)

	if len(origins) == 0 || len(destinations) == 0 {
		return nil, errors.New("distance matrix: origins and destinations must be non-empty")
	}
	if len(origins) > ports.MaxMatrixOrigins || len(destinations) > ports.MaxMatrixDestinations {
		return nil, fmt.Errorf(
			"distance matrix: %dx%d exceeds the %dx%d batch limit",
			len(origins), len(destinations), ports.MaxMatrixOrigins, ports.MaxMatrixDestinations,
		)
	}

	single := len(origins) == 1 && len(destinations) == 1
	timeout := g.batchTimeout
	if single {
		timeout = g.singleTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cells [][]ports.RouteCell
	err = g.breaker.Call(func() error {
		var ferr error
		cells, ferr = g.fetchMatrix(reqCtx, origins, destinations, single && g.traffic)
		return ferr
	})
	if errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrTrialInFlight) {
		return nil, fmt.Errorf("distance matrix: %w: %w", ports.ErrProviderUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}

	return cells, nil
}

// BreakerState exposes the circuit state for stats and health output.
func (g *GoogleRouteProvider) BreakerState() breaker.State {
	return g.breaker.State()
}

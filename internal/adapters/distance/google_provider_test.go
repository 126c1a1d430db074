package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"ride-logbook-service/internal/ports"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoByTwo = `{
  "status": "OK",
  "rows": [
    {"elements": [
      {"status": "OK", "distance": {"value": 5000, "text": "5 km"}, "duration": {"value": 600, "text": "10 min"}},
      {"status": "OK", "distance": {"value": 12500, "text": "12,5 km"}, "duration": {"value": 900}, "duration_in_traffic": {"value": 1200}}
    ]},
    {"elements": [
      {"status": "NOT_FOUND"},
      {"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}}
    ]}
  ]
}`

func newTestProvider(t *testing.T, h http.HandlerFunc, opts GoogleOptions) *GoogleRouteProvider {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	opts.Client = srv.Client()
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}

	p, err := NewGoogleRouteProvider("test-key", opts)
	require.NoError(t, err)
	return p
}

func TestGoogleDistanceMatrixDecodesCells(t *testing.T) {
	var got url.Values
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distancematrix/json", r.URL.Path)
		got = r.URL.Query()
		fmt.Fprint(w, twoByTwo)
	}, GoogleOptions{Traffic: true})

	cells, err := p.DistanceMatrix(context.Background(), []string{"A", "B"}, []string{"C", "D"})
	require.NoError(t, err)

	assert.Equal(t, "A|B", got.Get("origins"))
	assert.Equal(t, "C|D", got.Get("destinations"))
	assert.Equal(t, "test-key", got.Get("key"))
	assert.Equal(t, "de", got.Get("language"))
	assert.Equal(t, "DE", got.Get("region"))
	assert.Equal(t, "metric", got.Get("units"))
	assert.Equal(t, "driving", got.Get("mode"))
	assert.Empty(t, got.Get("departure_time"), "batch requests carry no traffic model")

	require.Len(t, cells, 2)
	assert.Equal(t, ports.RouteCell{DistanceKm: 5, DurationMinutes: 10, OK: true}, cells[0][0])
	assert.Equal(t, ports.RouteCell{DistanceKm: 12.5, DurationMinutes: 20, OK: true}, cells[0][1])
	assert.False(t, cells[1][0].OK)
	assert.True(t, cells[1][1].OK)
}

func TestGoogleSinglePairUsesTrafficModel(t *testing.T) {
	var got url.Values
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		fmt.Fprint(w, `{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"value":1000},"duration":{"value":120}}]}]}`)
	}, GoogleOptions{Traffic: true})

	cells, err := p.DistanceMatrix(context.Background(), []string{"A"}, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, "now", got.Get("departure_time"))
	assert.Equal(t, "best_guess", got.Get("traffic_model"))
	assert.Equal(t, 2.0, cells[0][0].DurationMinutes)
}

func TestGoogleRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, twoByTwo)
	}, GoogleOptions{})

	_, err := p.DistanceMatrix(context.Background(), []string{"A", "B"}, []string{"C", "D"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGoogleRejectsNonOKStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"bad key","rows":[]}`)
	}, GoogleOptions{})

	_, err := p.DistanceMatrix(context.Background(), []string{"A"}, []string{"B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogleBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}, GoogleOptions{BreakerFailures: 1, BreakerReset: time.Hour})

	_, err := p.DistanceMatrix(context.Background(), []string{"A"}, []string{"B"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ports.ErrProviderUnavailable))

	_, err = p.DistanceMatrix(context.Background(), []string{"A"}, []string{"B"})
	require.ErrorIs(t, err, ports.ErrProviderUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGoogleRejectsOversizedBatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, GoogleOptions{})

	origins := make([]string, 26)
	for i := range origins {
		origins[i] = fmt.Sprintf("O%d", i)
	}

	_, err := p.DistanceMatrix(context.Background(), origins, []string{"D"})
	require.Error(t, err)
}

func TestNewGoogleRouteProviderNeedsKey(t *testing.T) {
	_, err := NewGoogleRouteProvider("  ", GoogleOptions{})
	require.ErrorIs(t, err, ports.ErrProviderUnavailable)
}

func TestGoogleHonoursCancellation(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, GoogleOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.DistanceMatrix(ctx, []string{"A"}, []string{"B"})
	require.Error(t, err)
}

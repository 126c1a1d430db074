package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"ride-logbook-service/internal/adapters/cache"
	"ride-logbook-service/internal/adapters/distance"
	"ride-logbook-service/internal/api/dto"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/services"
	"ride-logbook-service/internal/testhelpers"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHQ = "Muster Str 1, 45451 MusterStadt"

type apiEnv struct {
	f       *testhelpers.Fixture
	company int64
	driver  int64
	mock    *distance.MockRouteProvider
	srv     *httptest.Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	f := testhelpers.NewFixture(t)
	company := f.Company(testHQ)
	mock := distance.NewMockRouteProvider([]distance.MockPair{
		{From: testHQ, To: "Bahnhofstr 5, 45451 MusterStadt", Km: 4.2, Minutes: 9},
	})

	rules := services.NewRuleStore(f.Rules)
	rc := services.NewRouteCache(cache.NewSQLRouteCache(f.Store, f.Loc), mock, services.RouteCacheOptions{})
	srv := httptest.NewServer(NewRouter(Deps{
		DB:    f.Store,
		Cache: rc,
		Rides: services.NewRideValidator(f.Rides, f.Companies, rules, rc),
		Labor: services.NewLaborValidator(f.Shifts, f.Rides, f.Labor, f.Loc),
		Rules: rules,
		Loc:   f.Loc,
	}))
	t.Cleanup(srv.Close)

	return &apiEnv{f: f, company: company, driver: f.Driver(company), mock: mock, srv: srv}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	assert.Equal(t, map[string]string{
		"status":         "ok",
		"database":       "ok",
		"route_provider": "enabled",
	}, decode[map[string]string](t, res))
}

func TestRouteMetricIsCachedAcrossRequests(t *testing.T) {
	e := newAPIEnv(t)
	req := dto.MetricRequest{Origin: testHQ, Destination: "bahnhofstr 5, 45451 musterstadt"}

	first := decode[dto.MetricResponse](t, e.do(t, http.MethodPost, "/routes/metric", req))
	second := decode[dto.MetricResponse](t, e.do(t, http.MethodPost, "/routes/metric", req))

	assert.Equal(t, "provider", first.Source)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, 4.2, second.DistanceKm)
	assert.Equal(t, 1, e.mock.Calls())

	stats := decode[services.CacheStats](t, e.do(t, http.MethodGet, "/cache/stats", nil))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.ProviderCalls)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestRouteMatrixReturnsEveryCell(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(t, http.MethodPost, "/routes/matrix", dto.MatrixRequest{
		Origins:      []string{testHQ},
		Destinations: []string{"Bahnhofstr 5, 45451 MusterStadt", testHQ},
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode[dto.MatrixResponse](t, res)
	require.Len(t, body.Cells, 2)
	assert.Equal(t, 9.0, body.Cells[0].DurationMinutes)
	assert.Equal(t, "identity", body.Cells[1].Source)
}

func TestRouteRequestsRejectBadBodies(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(t, http.MethodPost, "/routes/metric", map[string]string{"from": "x"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = e.do(t, http.MethodPost, "/routes/matrix", dto.MatrixRequest{Origins: []string{"a"}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCacheOptimize(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(t, http.MethodPost, "/cache/optimize", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(0), decode[dto.OptimizeResponse](t, res).Removed)
}

func TestValidateRidePersistsTags(t *testing.T) {
	e := newAPIEnv(t)
	ride := e.f.Ride(domain.Ride{
		CompanyID:      e.company,
		DriverID:       e.driver,
		PickupTime:     e.f.At("2026-03-02 08:00"),
		DropoffTime:    e.f.AtPtr("2026-03-02 08:20"),
		PickupLocation: "Bahnhofstr 5, 45451 MusterStadt",
		Destination:    testHQ,
		Status:         domain.RideCompleted,
	})

	res := e.do(t, http.MethodPost, fmt.Sprintf("/rides/%d/validate", ride.ID), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode[domain.RideValidation](t, res)
	assert.Equal(t, []domain.ViolationTag{domain.TagShiftStart}, body.Tags())

	stored, err := e.f.Rides.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RideFlagged, stored.Status)
	assert.Equal(t, []domain.ViolationTag{domain.TagShiftStart}, stored.Violations)
}

func TestValidateRideErrors(t *testing.T) {
	e := newAPIEnv(t)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/rides/999/validate", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/rides/abc/validate", nil).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodGet, "/rides/1/validate", nil).StatusCode)
}

func TestValidateShiftAndWeek(t *testing.T) {
	e := newAPIEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-03", "08:00", "17:30", testhelpers.Float(20))

	res := e.do(t, http.MethodPost, fmt.Sprintf("/shifts/%d/validate", s.ID), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	shift := decode[struct {
		ShiftID    int64 `json:"shift_id"`
		Violations []struct {
			Type    string         `json:"type"`
			Details map[string]any `json:"details"`
		} `json:"violations"`
	}](t, res)
	require.Len(t, shift.Violations, 1)
	assert.Equal(t, string(domain.InsufficientBreak), shift.Violations[0].Type)
	assert.Equal(t, 25.0, shift.Violations[0].Details["deficit_minutes"])

	res = e.do(t, http.MethodGet, fmt.Sprintf("/drivers/%d/weeks/2026-03-05", e.driver), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	week := decode[struct {
		WeekStart      string  `json:"week_start"`
		ShiftCount     int     `json:"shift_count"`
		TotalHours     float64 `json:"total_hours"`
		ComplianceRate float64 `json:"compliance_rate"`
	}](t, res)
	assert.Equal(t, "2026-03-02", week.WeekStart)
	assert.Equal(t, 1, week.ShiftCount)
	assert.Equal(t, 9.5, week.TotalHours)
	assert.Equal(t, 0.0, week.ComplianceRate)

	res = e.do(t, http.MethodGet, fmt.Sprintf("/drivers/%d/violations", e.driver), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, res), 2)
}

func TestWeekRejectsBadDate(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(t, http.MethodGet, fmt.Sprintf("/drivers/%d/weeks/next-tuesday", e.driver), nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRulesListAndSet(t *testing.T) {
	e := newAPIEnv(t)
	base := fmt.Sprintf("/companies/%d/rules", e.company)

	rules := decode[[]dto.RuleResponse](t, e.do(t, http.MethodGet, base, nil))
	require.Len(t, rules, 12)
	assert.Equal(t, "max_pickup_distance_minutes", rules[0].Name)
	assert.Equal(t, "24", rules[0].Value)
	assert.True(t, rules[0].IsDefault)

	res := e.do(t, http.MethodPut, base+"/max_pickup_distance_minutes", dto.SetRuleRequest{Value: "30"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	set := decode[dto.RuleResponse](t, res)
	assert.Equal(t, "30", set.Value)
	assert.False(t, set.IsDefault)

	res = e.do(t, http.MethodPut, base+"/max_pickup_distance_minutes", dto.SetRuleRequest{Value: "soon"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"ride-logbook-service/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "nested", "ridelog.db")
	return cfg
}

func TestNewWithoutKeyUsesOfflineEstimate(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.Cache.ProviderEnabled())

	m, err := a.Cache.Metric(ctx, "Muster Str 1, 45451 MusterStadt", "Hauptbahnhof")
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(m.Source))
}

func TestNewWithKeyEnablesProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.APIKey = "test-key"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.Cache.ProviderEnabled())
}

func TestHandlerServesHealth(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","route_provider":"offline"}`, rec.Body.String())
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.Driver = "oracle"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

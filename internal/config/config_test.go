package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ridelog.yaml")
	body := `
timezone: Europe/Berlin
db:
  dsn: /tmp/other.db
provider:
  batch_timeout: 45s
cache:
  retention_months: 3
  preload_destinations:
    - Hauptbahnhof 1, Frankfurt am Main
    - Flughafen, Frankfurt am Main
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/other.db", cfg.DB.DSN)
	assert.Equal(t, 45*time.Second, cfg.Provider.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Provider.SingleTimeout)
	assert.Equal(t, 3, cfg.Cache.RetentionMonths)
	assert.Len(t, cfg.Cache.PreloadDestinations, 2)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RIDELOG_CONFIG", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("DATABASE_URL", "postgres://ridelog@localhost/ridelog")
	t.Setenv("GOOGLE_MAPS_API_KEY", " key ")
	t.Setenv("COMPANY_ID", "7")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DB.Driver)
	assert.Equal(t, "postgres://ridelog@localhost/ridelog", cfg.DB.DSN)
	assert.Equal(t, "key", cfg.Provider.APIKey)
	assert.Equal(t, int64(7), cfg.CompanyID)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.DB.Driver = "mysql"
	cfg.Timezone = "Mars/Olympus"
	cfg.Provider.SingleTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db.driver")
	assert.Contains(t, err.Error(), "timezone")
	assert.Contains(t, err.Error(), "timeouts")
}

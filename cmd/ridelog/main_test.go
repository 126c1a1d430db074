package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/ports"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points the CLI at a fresh SQLite file with no provider.
func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RIDELOG_CONFIG", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "ridelog.db"))
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("COMPANY_ID", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, in string, args ...string) (string, int) {
	t.Helper()

	var out, errOut bytes.Buffer
	oldOut, oldErr, oldIn := stdout, stderr, stdin
	stdout, stderr, stdin = &out, &errOut, strings.NewReader(in)
	t.Cleanup(func() { stdout, stderr, stdin = oldOut, oldErr, oldIn })

	r := NewCommandRegistry(VersionInfo{Version: "test"})
	registerCommands(r)
	err := r.Execute(args)
	return out.String(), exitCode(err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"usage", usagef("bad"), exitInput},
		{"help flag", flag.ErrHelp, exitInput},
		{"invalid input", fmt.Errorf("set: %w", domain.ErrInvalidInput), exitInput},
		{"not found", fmt.Errorf("get ride 9: %w", domain.ErrNotFound), exitInput},
		{"time parse", &domain.TimeParseError{Field: "date", Value: "x"}, exitInput},
		{"provider", fmt.Errorf("matrix: %w", ports.ErrProviderUnavailable), exitProvider},
		{"pinned provider", providerError(errors.New("no key")), exitProvider},
		{"storage", errors.New("database is locked"), exitStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestUnknownCommandIsInputError(t *testing.T) {
	setupEnv(t)

	_, code := run(t, "", "frobnicate")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "", "cache", "defragment")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "")
	assert.Equal(t, exitInput, code)
}

func TestDBInitCreatesDefaultCompany(t *testing.T) {
	setupEnv(t)

	out, code := run(t, "", "db", "init")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Company 1")

	// Idempotent.
	out, code = run(t, "", "db", "init")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Company 1")
}

func TestRulesSetAndList(t *testing.T) {
	setupEnv(t)
	_, code := run(t, "", "db", "init")
	require.Equal(t, exitOK, code)

	_, code = run(t, "", "rules", "set", "max_pickup_distance_minutes", "30")
	require.Equal(t, exitOK, code)

	out, code := run(t, "", "rules", "list")
	require.Equal(t, exitOK, code)
	assert.Regexp(t, `max_pickup_distance_minutes\s+│ 30\s+│ minutes\s+│ stored`, out)
	assert.Regexp(t, `time_tolerance_minutes\s+│ 10\s+│ minutes\s+│ default`, out)

	_, code = run(t, "", "rules", "set", "max_pickup_distance_minutes", "soon")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "", "rules", "set", "max_pickup_distance_minutes")
	assert.Equal(t, exitInput, code)
}

func TestCachePreloadWithoutKeyIsProviderError(t *testing.T) {
	setupEnv(t)

	_, code := run(t, "", "cache", "preload", "Hauptbahnhof, MusterStadt")
	assert.Equal(t, exitProvider, code)
}

func TestCacheClearAsksFirst(t *testing.T) {
	setupEnv(t)

	out, code := run(t, "n\n", "cache", "clear")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Aborted.")

	out, code = run(t, "", "cache", "clear", "--yes")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Deleted 0 entries.")
}

func TestCacheExportAndStatsOnEmptyStore(t *testing.T) {
	setupEnv(t)

	out, code := run(t, "", "cache", "export")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "origin,destination,distance_km,duration_min,use_count,created_at,last_used\n", out)

	out, code = run(t, "", "cache", "stats")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Entries:          0")
	assert.Contains(t, out, "Provider enabled: false")

	out, code = run(t, "", "cache", "timeframe")
	require.Equal(t, exitOK, code)
	for _, label := range []string{"today", "7d", "30d", "365d"} {
		assert.Contains(t, out, label)
	}
}

func TestValidateInputErrors(t *testing.T) {
	setupEnv(t)

	_, code := run(t, "", "validate", "ride", "abc")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "", "validate", "ride", "42")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "", "validate", "week", "1", "someday")
	assert.Equal(t, exitInput, code)

	_, code = run(t, "", "validate", "shift")
	assert.Equal(t, exitInput, code)
}

func TestValidateEmptyWeekIsCompliant(t *testing.T) {
	setupEnv(t)
	_, code := run(t, "", "db", "init")
	require.Equal(t, exitOK, code)

	out, code := run(t, "", "validate", "week", "1", "2026-03-04")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "week of 2026-03-02")
	assert.Contains(t, out, "Compliance rate: 100.0%")
}

func TestViolationsListEmpty(t *testing.T) {
	setupEnv(t)

	out, code := run(t, "", "violations", "list", "3")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Driver 3: 0 open violation(s)")
}

package services

import (
	"context"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/testhelpers"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleStoreDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.NewFixture(t)
	company := f.Company("Muster Str 1, 45451 MusterStadt")
	rs := NewRuleStore(f.Rules)

	v, err := rs.Get(ctx, company, domain.RuleMaxPickupDistanceMinutes)
	require.NoError(t, err)
	assert.True(t, v.IsDefault)
	assert.Equal(t, "24", v.Raw)

	require.NoError(t, rs.Set(ctx, company, domain.RuleMaxPickupDistanceMinutes, " 30 "))
	require.NoError(t, rs.Set(ctx, company, domain.RuleMaxPickupDistanceMinutes, "35"))

	v, err = rs.Get(ctx, company, domain.RuleMaxPickupDistanceMinutes)
	require.NoError(t, err)
	assert.False(t, v.IsDefault)
	assert.Equal(t, "35", v.Raw)

	snap, err := rs.Snapshot(ctx, company)
	require.NoError(t, err)
	assert.Equal(t, 35.0, snap.MaxPickupDistanceMinutes)
	assert.Equal(t, 7.0, snap.MaxHQDeviationKm)
	assert.Equal(t, "Headquarters", snap.ShiftStartLocation)

	require.NoError(t, rs.Reset(ctx, company, domain.RuleMaxPickupDistanceMinutes))
	v, err = rs.Get(ctx, company, domain.RuleMaxPickupDistanceMinutes)
	require.NoError(t, err)
	assert.True(t, v.IsDefault)
}

func TestRuleStoreRejectsValuesOutsideUnit(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.NewFixture(t)
	company := f.Company("HQ")
	rs := NewRuleStore(f.Rules)

	cases := []struct {
		name domain.RuleName
		raw  string
	}{
		{domain.RuleNightStartHour, "25"},
		{domain.RuleNightEndHour, "6.5"},
		{domain.RuleMaxHQDeviationKm, "-1"},
		{domain.RuleTimeToleranceMinutes, "ten"},
		{domain.RuleShiftStartLocation, "   "},
	}
	for _, tc := range cases {
		err := rs.Set(ctx, company, tc.name, tc.raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%s=%q", tc.name, tc.raw)
	}

	snap, err := rs.Snapshot(ctx, company)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRuleSnapshot(company).NightStartHour, snap.NightStartHour)
}

func TestRuleStoreSnapshotIgnoresInvalidAndDisabledRows(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.NewFixture(t)
	company := f.Company("HQ")
	rs := NewRuleStore(f.Rules)

	// Written behind the store's back, as a legacy import would.
	require.NoError(t, f.Rules.UpsertRule(ctx, company, domain.RuleValue{
		Name: domain.RuleTimeToleranceMinutes, Unit: domain.UnitMinutes, Raw: "abc",
	}, ""))
	require.NoError(t, rs.Set(ctx, company, domain.RuleMaxPreviousDestMinutes, "20"))
	_, err := f.Store.ExecContext(ctx, f.Store.Rebind(`UPDATE rules SET enabled = 0 WHERE company_id = ? AND rule_name = ?;`),
		company, string(domain.RuleMaxPreviousDestMinutes))
	require.NoError(t, err)

	snap, err := rs.Snapshot(ctx, company)
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.TimeToleranceMinutes)
	assert.Equal(t, 18.0, snap.MaxPreviousDestMinutes)

	v, err := rs.Get(ctx, company, domain.RuleTimeToleranceMinutes)
	require.NoError(t, err)
	assert.True(t, v.IsDefault)
}

func TestRuleStoreUnknownRule(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.NewFixture(t)
	company := f.Company("HQ")
	rs := NewRuleStore(f.Rules)

	v, err := rs.Get(ctx, company, "custom_flag")
	require.NoError(t, err)
	assert.Empty(t, v.Raw)

	require.NoError(t, rs.Set(ctx, company, "custom_flag", "on"))
	v, err = rs.Get(ctx, company, "custom_flag")
	require.NoError(t, err)
	assert.Equal(t, "on", v.Raw)

	assert.Len(t, rs.Definitions(), 12)
}

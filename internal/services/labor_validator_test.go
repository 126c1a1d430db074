package services

import (
	"context"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/testhelpers"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type laborEnv struct {
	f         *testhelpers.Fixture
	company   int64
	driver    int64
	validator *LaborValidator
}

func newLaborEnv(t *testing.T) *laborEnv {
	t.Helper()
	f := testhelpers.NewFixture(t)
	company := f.Company(testHQ)
	return &laborEnv{
		f:         f,
		company:   company,
		driver:    f.Driver(company),
		validator: NewLaborValidator(f.Shifts, f.Rides, f.Labor, f.Loc),
	}
}

func (e *laborEnv) ride(s domain.Shift, pickup, dropoff string) {
	id := s.ID
	e.f.Ride(domain.Ride{
		CompanyID:      e.company,
		DriverID:       e.driver,
		ShiftID:        &id,
		PickupTime:     e.f.At(pickup),
		DropoffTime:    e.f.AtPtr(dropoff),
		PickupLocation: testHQ,
		Destination:    testHQ,
		Status:         domain.RideCompleted,
	})
}

func byType(vs []domain.LaborViolation) map[domain.LaborViolationType][]domain.LaborViolation {
	out := map[domain.LaborViolationType][]domain.LaborViolation{}
	for _, v := range vs {
		out[v.Type] = append(out[v.Type], v)
	}
	return out
}

func TestBreakDeficitFromScheduledPause(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "09:00", "17:00", testhelpers.Float(10))

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)

	got := byType(vs)
	require.Len(t, got[domain.InsufficientBreak], 1)
	v := got[domain.InsufficientBreak][0]
	assert.Equal(t, domain.SeverityHigh, v.Severity)

	d, ok := v.Details.(domain.BreakDetails)
	require.True(t, ok)
	assert.Equal(t, 30.0, d.RequiredMinutes)
	assert.Equal(t, 20.0, d.DeficitMinutes)
	assert.Equal(t, "scheduled", d.Source)
	assert.Empty(t, got[domain.MaxShiftExceeded])
}

func TestInsufficientDailyRestAcrossDays(t *testing.T) {
	e := newLaborEnv(t)
	e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "23:00", testhelpers.Float(45))
	today := e.f.Shift(e.company, e.driver, "2026-03-03", "08:00", "16:00", testhelpers.Float(30))

	vs, err := e.validator.EvaluateShift(context.Background(), today)
	require.NoError(t, err)

	got := byType(vs)
	require.Len(t, got[domain.InsufficientDailyRest], 1)
	d := got[domain.InsufficientDailyRest][0].Details.(domain.RestDetails)
	assert.Equal(t, 9.0, d.RestHours)
	assert.Equal(t, 2.0, d.DeficitHours)
}

func TestRestAfterMidnightShift(t *testing.T) {
	e := newLaborEnv(t)
	e.f.Shift(e.company, e.driver, "2026-03-02", "18:00", "02:00", testhelpers.Float(30))
	next := e.f.Shift(e.company, e.driver, "2026-03-03", "10:00", "14:00", nil)

	vs, err := e.validator.EvaluateShift(context.Background(), next)
	require.NoError(t, err)

	got := byType(vs)
	require.Len(t, got[domain.InsufficientDailyRest], 1)
	assert.Equal(t, 8.0, got[domain.InsufficientDailyRest][0].Details.(domain.RestDetails).RestHours)
}

func TestLongShiftIsFlagged(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "17:30", testhelpers.Float(60))

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)

	got := byType(vs)
	require.Len(t, got[domain.MaxShiftExceeded], 1)
	assert.Equal(t, 1.5, got[domain.MaxShiftExceeded][0].Details.(domain.ShiftDurationDetails).ExcessHours)
	assert.Empty(t, got[domain.InsufficientBreak])
}

func TestContinuousWorkUpToFirstBreak(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "16:00", testhelpers.Float(45))
	e.ride(s, "2026-03-02 06:00", "2026-03-02 09:00")
	e.ride(s, "2026-03-02 09:12", "2026-03-02 13:00")
	e.ride(s, "2026-03-02 13:30", "2026-03-02 16:00")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	got := byType(vs)

	assert.Empty(t, got[domain.InsufficientBreak], "scheduled 45 min pause satisfies the requirement")

	require.Len(t, got[domain.ShortBreakIntervals], 1)
	assert.Equal(t, domain.SeverityMedium, got[domain.ShortBreakIntervals][0].Severity)
	assert.Equal(t, []float64{12}, got[domain.ShortBreakIntervals][0].Details.(domain.ShortBreakDetails).GapMinutes)

	require.Len(t, got[domain.ContinuousWorkTooLong], 1)
	c := got[domain.ContinuousWorkTooLong][0].Details.(domain.ContinuousWorkDetails)
	assert.Equal(t, 7.0, c.WorkedHours)
	assert.True(t, c.SegmentStart.Equal(e.f.At("2026-03-02 06:00")))
	assert.True(t, c.SegmentEnd.Equal(e.f.At("2026-03-02 13:00")))

	assert.Empty(t, got[domain.MaxShiftExceeded])
}

func TestContinuousWorkBetweenTwoBreaks(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "16:00", testhelpers.Float(60))
	e.ride(s, "2026-03-02 06:00", "2026-03-02 07:00")
	e.ride(s, "2026-03-02 07:30", "2026-03-02 10:00")
	e.ride(s, "2026-03-02 10:05", "2026-03-02 14:00")
	e.ride(s, "2026-03-02 14:30", "2026-03-02 15:00")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	got := byType(vs)

	require.Len(t, got[domain.ContinuousWorkTooLong], 1)
	c := got[domain.ContinuousWorkTooLong][0].Details.(domain.ContinuousWorkDetails)
	assert.True(t, c.SegmentStart.Equal(e.f.At("2026-03-02 07:30")))
	assert.True(t, c.SegmentEnd.Equal(e.f.At("2026-03-02 14:00")))
	assert.Equal(t, 6.5, c.WorkedHours)
	assert.Empty(t, got[domain.InsufficientBreak])
}

func TestIdleTailIsNotContinuousWork(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "08:00", "16:00", testhelpers.Float(45))
	e.ride(s, "2026-03-02 08:00", "2026-03-02 09:00")
	e.ride(s, "2026-03-02 09:05", "2026-03-02 10:00")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestWorkAfterLastBreakIsNotMeasured(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "16:00", testhelpers.Float(45))
	e.ride(s, "2026-03-02 06:00", "2026-03-02 07:00")
	e.ride(s, "2026-03-02 07:45", "2026-03-02 15:45")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, byType(vs)[domain.ContinuousWorkTooLong])
}

func TestScheduledPauseCoversDenseRides(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "08:00", "17:00", testhelpers.Float(45))
	e.ride(s, "2026-03-02 08:00", "2026-03-02 09:55")
	e.ride(s, "2026-03-02 10:00", "2026-03-02 11:55")
	e.ride(s, "2026-03-02 12:00", "2026-03-02 13:55")
	e.ride(s, "2026-03-02 14:00", "2026-03-02 15:55")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestRideBreaksUsedWithoutScheduledPause(t *testing.T) {
	e := newLaborEnv(t)
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "08:00", "15:00", nil)
	e.ride(s, "2026-03-02 08:00", "2026-03-02 10:00")
	e.ride(s, "2026-03-02 10:20", "2026-03-02 15:00")

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)

	got := byType(vs)
	require.Len(t, got[domain.InsufficientBreak], 1)
	b := got[domain.InsufficientBreak][0].Details.(domain.BreakDetails)
	assert.Equal(t, 20.0, b.ActualMinutes)
	assert.Equal(t, 10.0, b.DeficitMinutes)
	assert.Equal(t, "rides", b.Source)
	assert.Empty(t, got[domain.ContinuousWorkTooLong])
}

func TestUnparseableShiftTimesSkipChecks(t *testing.T) {
	e := newLaborEnv(t)
	s := domain.Shift{
		CompanyID: e.company,
		DriverID:  e.driver,
		ShiftDate: e.f.Date("2026-03-02"),
		StartTime: "morgens",
		EndTime:   "abends",
	}

	vs, err := e.validator.EvaluateShift(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestValidateWeekReportsWeeklyHours(t *testing.T) {
	e := newLaborEnv(t)
	ctx := context.Background()

	monday := e.f.Date("2026-03-02")
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i).Format(domain.DateLayout)
		e.f.Shift(e.company, e.driver, day, "06:00", "15:00", testhelpers.Float(45))
	}

	rep, err := e.validator.ValidateWeek(ctx, e.driver, e.f.Date("2026-03-05"))
	require.NoError(t, err)

	assert.True(t, rep.WeekStart.Equal(monday))
	assert.Equal(t, 7, rep.ShiftCount)
	assert.Equal(t, 63.0, rep.TotalHours)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, domain.WeeklyHoursExceeded, rep.Violations[0].Type)
	assert.Equal(t, 3.0, rep.Violations[0].Details.(domain.WeeklyHoursDetails).ExcessHours)
	assert.Equal(t, 85.7, rep.ComplianceRate)
	require.NotNil(t, rep.NextAvailable)
	assert.True(t, rep.NextAvailable.Equal(e.f.At("2026-03-09 02:00")))

	open, err := e.validator.ListOpen(ctx, e.driver)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.NotZero(t, open[0].ID)
	assert.Equal(t, domain.WeeklyHoursExceeded, open[0].Type)
}

func TestValidateWeekChecksRestBetweenShifts(t *testing.T) {
	e := newLaborEnv(t)
	e.f.Shift(e.company, e.driver, "2026-03-02", "12:00", "22:00", testhelpers.Float(45))
	e.f.Shift(e.company, e.driver, "2026-03-03", "06:00", "10:00", nil)

	rep, err := e.validator.ValidateWeek(context.Background(), e.driver, e.f.Date("2026-03-02"))
	require.NoError(t, err)

	got := byType(rep.Violations)
	require.Len(t, got[domain.InsufficientDailyRest], 1)
	assert.Equal(t, 8.0, got[domain.InsufficientDailyRest][0].Details.(domain.RestDetails).RestHours)
	// One high violation over two shifts.
	assert.Equal(t, 50.0, rep.ComplianceRate)
}

func TestValidateWeekChecksRestAgainstPreviousWeek(t *testing.T) {
	e := newLaborEnv(t)
	sunday := e.f.Shift(e.company, e.driver, "2026-03-01", "14:00", "23:00", testhelpers.Float(45))
	e.f.Shift(e.company, e.driver, "2026-03-02", "06:00", "12:00", testhelpers.Float(30))

	rep, err := e.validator.ValidateWeek(context.Background(), e.driver, e.f.Date("2026-03-04"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ShiftCount)

	got := byType(rep.Violations)
	require.Len(t, got[domain.InsufficientDailyRest], 1)
	d := got[domain.InsufficientDailyRest][0].Details.(domain.RestDetails)
	assert.Equal(t, sunday.ID, d.PreviousShiftID)
	assert.Equal(t, 7.0, d.RestHours)
}

func TestValidateWeekWithoutShifts(t *testing.T) {
	e := newLaborEnv(t)

	rep, err := e.validator.ValidateWeek(context.Background(), e.driver, e.f.Date("2026-03-04"))
	require.NoError(t, err)
	assert.Zero(t, rep.ShiftCount)
	assert.Empty(t, rep.Violations)
	assert.Equal(t, 100.0, rep.ComplianceRate)
	assert.Nil(t, rep.NextAvailable)
}

func TestValidateShiftStoresViolations(t *testing.T) {
	e := newLaborEnv(t)
	ctx := context.Background()
	s := e.f.Shift(e.company, e.driver, "2026-03-02", "09:00", "17:00", testhelpers.Float(10))

	for i := 0; i < 2; i++ {
		vs, err := e.validator.ValidateShift(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, vs, 1)
	}

	open, err := e.validator.ListOpen(ctx, e.driver)
	require.NoError(t, err)
	assert.Len(t, open, 2, "duplicates are kept for per-record resolution")

	_, err = e.validator.ValidateShift(ctx, 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequiredBreakTable(t *testing.T) {
	for _, tc := range []struct {
		length time.Duration
		want   float64
	}{
		{5*time.Hour + 59*time.Minute, 0},
		{6 * time.Hour, 30},
		{8*time.Hour + 59*time.Minute, 30},
		{9 * time.Hour, 45},
		{12 * time.Hour, 45},
	} {
		assert.Equal(t, tc.want, domain.RequiredBreakMinutes(tc.length), tc.length.String())
	}
}

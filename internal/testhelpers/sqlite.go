package testhelpers

import (
	"context"
	"path/filepath"
	"ride-logbook-service/internal/adapters/repositories"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// OpenSQLite returns a migrated store on a temp file that is closed when t ends.
func OpenSQLite(t testing.TB) *db.Store {
	t.Helper()

	ctx := context.Background()
	store, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "ridelog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, repositories.InitSchema(ctx, store))
	return store
}

// Fixture seeds companies, drivers, shifts and rides through the real repositories.
type Fixture struct {
	T     testing.TB
	Store *db.Store
	Loc   *time.Location

	Companies *repositories.SQLCompanyRepository
	Drivers   *repositories.SQLDriverRepository
	Shifts    *repositories.SQLShiftRepository
	Rides     *repositories.SQLRideRepository
	Rules     *repositories.SQLRuleRepository
	Labor     *repositories.SQLLaborViolationRepository
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	store := OpenSQLite(t)
	loc := time.UTC
	return &Fixture{
		T:         t,
		Store:     store,
		Loc:       loc,
		Companies: repositories.NewSQLCompanyRepository(store),
		Drivers:   repositories.NewSQLDriverRepository(store),
		Shifts:    repositories.NewSQLShiftRepository(store, loc),
		Rides:     repositories.NewSQLRideRepository(store, loc),
		Rules:     repositories.NewSQLRuleRepository(store),
		Labor:     repositories.NewSQLLaborViolationRepository(store, loc),
	}
}

func (f *Fixture) Company(hq string) int64 {
	f.T.Helper()
	id, err := f.Companies.CreateCompany(context.Background(), domain.Company{Name: "Taxi " + hq, HeadquartersAddress: hq, Active: true})
	require.NoError(f.T, err)
	return id
}

func (f *Fixture) Driver(companyID int64) int64 {
	f.T.Helper()
	id, err := f.Drivers.CreateDriver(context.Background(), domain.Driver{CompanyID: companyID, Name: "Driver", Status: domain.DriverActive})
	require.NoError(f.T, err)
	return id
}

// Shift creates a shift on date ("YYYY-MM-DD") from start to end ("HH:MM").
func (f *Fixture) Shift(companyID, driverID int64, date, start, end string, pause *float64) domain.Shift {
	f.T.Helper()
	s := domain.Shift{
		CompanyID:    companyID,
		DriverID:     driverID,
		ShiftDate:    f.Date(date),
		StartTime:    start,
		EndTime:      end,
		PauseMinutes: pause,
		Status:       domain.ShiftCompleted,
	}
	id, err := f.Shifts.CreateShift(context.Background(), s)
	require.NoError(f.T, err)
	s.ID = id
	return s
}

func (f *Fixture) Ride(r domain.Ride) domain.Ride {
	f.T.Helper()
	id, err := f.Rides.CreateRide(context.Background(), r)
	require.NoError(f.T, err)
	r.ID = id
	return r
}

func (f *Fixture) Date(s string) time.Time {
	f.T.Helper()
	d, err := time.ParseInLocation(domain.DateLayout, s, f.Loc)
	require.NoError(f.T, err)
	return d
}

// At parses "YYYY-MM-DD HH:MM" in the fixture zone.
func (f *Fixture) At(s string) time.Time {
	f.T.Helper()
	t, err := time.ParseInLocation("2006-01-02 15:04", s, f.Loc)
	require.NoError(f.T, err)
	return t
}

// AtPtr is At returning a pointer, for optional timestamps.
func (f *Fixture) AtPtr(s string) *time.Time {
	t := f.At(s)
	return &t
}

func Float(v float64) *float64 { return &v }

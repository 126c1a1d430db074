package ports

import (
	"context"
	"ride-logbook-service/internal/domain"
	"time"
)

type CompanyRepository interface {
	GetCompany(ctx context.Context, id int64) (domain.Company, error)
	CreateCompany(ctx context.Context, c domain.Company) (int64, error)
}

type DriverRepository interface {
	GetDriver(ctx context.Context, id int64) (domain.Driver, error)
	CreateDriver(ctx context.Context, d domain.Driver) (int64, error)
}

type ShiftRepository interface {
	GetShift(ctx context.Context, id int64) (domain.Shift, error)
	// CreateShift rejects inactive drivers and overlapping shifts with domain.ErrInvalidInput.
	CreateShift(ctx context.Context, s domain.Shift) (int64, error)
	// Non-cancelled shifts of a driver with shift_date in [from, to), by date and start.
	ShiftsForDriver(ctx context.Context, driverID int64, from, to time.Time) ([]domain.Shift, error)
}

type RideRepository interface {
	GetRide(ctx context.Context, id int64) (domain.Ride, error)
	CreateRide(ctx context.Context, r domain.Ride) (int64, error)
	// Non-cancelled rides of a driver picked up on day's civil date, by pickup time.
	RidesForDriverOn(ctx context.Context, driverID int64, day time.Time) ([]domain.Ride, error)
	// Non-cancelled rides belonging to a shift, by pickup time.
	RidesForShift(ctx context.Context, s domain.Shift) ([]domain.Ride, error)
	SaveRideViolations(ctx context.Context, rideID int64, tags []domain.ViolationTag, status domain.RideStatus) error
}

type RuleRepository interface {
	// Enabled rule rows of a company.
	ListRules(ctx context.Context, companyID int64) (map[domain.RuleName]domain.RuleValue, error)
	UpsertRule(ctx context.Context, companyID int64, v domain.RuleValue, description string) error
	DeleteRule(ctx context.Context, companyID int64, name domain.RuleName) error
}

type LaborViolationRepository interface {
	AppendViolations(ctx context.Context, vs []domain.LaborViolation) ([]int64, error)
	OpenViolations(ctx context.Context, driverID int64) ([]domain.LaborViolation, error)
	SaveWeeklyReport(ctx context.Context, r domain.WeeklyComplianceReport) error
}

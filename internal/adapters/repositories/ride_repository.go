package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
	"time"
)

// SQL-backed implementation of the RideRepository port.
type SQLRideRepository struct {
	Store *db.Store
	Loc   *time.Location
}

func NewSQLRideRepository(store *db.Store, loc *time.Location) *SQLRideRepository {
	return &SQLRideRepository{Store: store, Loc: locOrLocal(loc)}
}

const rideColumns = `
	id, company_id, driver_id, shift_id, pickup_time, dropoff_time,
	pickup_location, destination, vehicle_plate, revenue, is_reserved,
	assigned_during_ride, current_route_destination, status, violations`

func (r *SQLRideRepository) GetRide(ctx context.Context, id int64) (domain.Ride, error) {
	if r.Store == nil {
		return domain.Ride{}, errors.New("ride repository: DB is nil")
	}

	rides, err := r.query(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ?;`, id)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("get ride %d: %w", id, err)
	}
	if len(rides) == 0 {
		return domain.Ride{}, fmt.Errorf("get ride %d: %w", id, domain.ErrNotFound)
	}

	return rides[0], nil
}

func (r *SQLRideRepository) CreateRide(ctx context.Context, ride domain.Ride) (int64, error) {
	if r.Store == nil {
		return 0, errors.New("ride repository: DB is nil")
	}

	if ride.CompanyID <= 0 || ride.DriverID <= 0 {
		return 0, fmt.Errorf("create ride: company and driver are required: %w", domain.ErrInvalidInput)
	}
	if ride.DropoffTime != nil && !ride.PickupTime.IsZero() && ride.DropoffTime.Before(ride.PickupTime) {
		return 0, fmt.Errorf("create ride: dropoff before pickup: %w", domain.ErrInvalidInput)
	}
	if ride.Status == "" {
		ride.Status = domain.RidePending
	}

	tags, err := encodeTags(ride.Violations)
	if err != nil {
		return 0, fmt.Errorf("create ride: %w", err)
	}

	var pickup *time.Time
	if !ride.PickupTime.IsZero() {
		pickup = &ride.PickupTime
	}

	q := r.Store.Rebind(`
	INSERT INTO rides (
		company_id, driver_id, shift_id, pickup_time, dropoff_time,
		pickup_location, destination, vehicle_plate, revenue, is_reserved,
		assigned_during_ride, current_route_destination, status, violations
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`)

	var id int64
	err = r.Store.QueryRowContext(ctx, q,
		ride.CompanyID, ride.DriverID, nullInt64(ride.ShiftID),
		nullTime(pickup, r.Loc), nullTime(ride.DropoffTime, r.Loc),
		ride.PickupLocation, ride.Destination, ride.VehiclePlate,
		nullFloat(ride.Revenue), boolInt(ride.IsReserved),
		boolInt(ride.AssignedDuringRide), ride.CurrentRouteDestination,
		string(ride.Status), tags,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create ride: %w", err)
	}

	return id, nil
}

func (r *SQLRideRepository) RidesForDriverOn(ctx context.Context, driverID int64, day time.Time) ([]domain.Ride, error) {
	if r.Store == nil {
		return nil, errors.New("ride repository: DB is nil")
	}

	from := domain.StartOfDay(day.In(r.Loc))
	to := from.AddDate(0, 0, 1)

	rides, err := r.query(ctx, `
	SELECT `+rideColumns+`
	FROM rides
	WHERE driver_id = ?
		AND pickup_time >= ?
		AND pickup_time < ?
		AND status <> ?
	ORDER BY pickup_time, id;
	`, driverID, domain.FormatTimestamp(from, r.Loc), domain.FormatTimestamp(to, r.Loc), string(domain.RideCancelled))
	if err != nil {
		return nil, fmt.Errorf("list rides driver=%d day=%s: %w", driverID, from.Format(domain.DateLayout), err)
	}

	return rides, nil
}

// RidesForShift returns the rides linked to s, plus the driver's unlinked
// rides picked up on the shift date.
func (r *SQLRideRepository) RidesForShift(ctx context.Context, s domain.Shift) ([]domain.Ride, error) {
	if r.Store == nil {
		return nil, errors.New("ride repository: DB is nil")
	}

	from := domain.StartOfDay(s.ShiftDate)
	to := from.AddDate(0, 0, 1)

	rides, err := r.query(ctx, `
	SELECT `+rideColumns+`
	FROM rides
	WHERE status <> ?
		AND (
			shift_id = ?
			OR (shift_id IS NULL AND driver_id = ? AND pickup_time >= ? AND pickup_time < ?)
		)
	ORDER BY pickup_time, id;
	`, string(domain.RideCancelled), s.ID, s.DriverID, domain.FormatTimestamp(from, r.Loc), domain.FormatTimestamp(to, r.Loc))
	if err != nil {
		return nil, fmt.Errorf("list rides shift=%d: %w", s.ID, err)
	}

	return rides, nil
}

func (r *SQLRideRepository) SaveRideViolations(
	ctx context.Context,
	rideID int64,
	tags []domain.ViolationTag,
	status domain.RideStatus,
) error {
	if r.Store == nil {
		return errors.New("ride repository: DB is nil")
	}

	encoded, err := encodeTags(tags)
	if err != nil {
		return fmt.Errorf("save ride violations %d: %w", rideID, err)
	}

	res, err := r.Store.ExecContext(ctx, r.Store.Rebind(`
	UPDATE rides SET violations = ?, status = ? WHERE id = ?;
	`), encoded, string(status), rideID)
	if err != nil {
		return fmt.Errorf("save ride violations %d: %w", rideID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save ride violations %d: rows affected: %w", rideID, err)
	}
	if n == 0 {
		return fmt.Errorf("save ride violations %d: %w", rideID, domain.ErrNotFound)
	}

	return nil
}

func (r *SQLRideRepository) query(ctx context.Context, query string, args ...any) ([]domain.Ride, error) {
	rows, err := r.Store.QueryContext(ctx, r.Store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query rides table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Ride, 0, 16)
	for rows.Next() {
		var (
			ride                   domain.Ride
			shiftID                sql.NullInt64
			pickup, dropoff        sql.NullString
			revenue                sql.NullFloat64
			reserved, assigned     int64
			status, violationsJSON string
		)
		err := rows.Scan(
			&ride.ID, &ride.CompanyID, &ride.DriverID, &shiftID, &pickup, &dropoff,
			&ride.PickupLocation, &ride.Destination, &ride.VehiclePlate, &revenue, &reserved,
			&assigned, &ride.CurrentRouteDestination, &status, &violationsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ride row: %w", err)
		}

		ride.ShiftID = int64Ptr(shiftID)
		if t := parseStoredTime("pickup_time", pickup, r.Loc); t != nil {
			ride.PickupTime = *t
		}
		ride.DropoffTime = parseStoredTime("dropoff_time", dropoff, r.Loc)
		ride.Revenue = floatPtr(revenue)
		ride.IsReserved = reserved != 0
		ride.AssignedDuringRide = assigned != 0
		ride.Status = domain.RideStatus(status)
		ride.Violations = decodeTags(violationsJSON)

		out = append(out, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ride row iteration: %w", err)
	}

	return out, nil
}

func encodeTags(tags []domain.ViolationTag) (string, error) {
	if tags == nil {
		tags = []domain.ViolationTag{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode violation tags: %w", err)
	}
	return string(b), nil
}

// decodeTags tolerates legacy rows holding a bare or comma separated string.
func decodeTags(s string) []domain.ViolationTag {
	var tags []domain.ViolationTag
	if s == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(s), &tags); err == nil {
		return tags
	}
	for _, part := range splitTrim(s, ",") {
		tags = append(tags, domain.ViolationTag(part))
	}
	return tags
}

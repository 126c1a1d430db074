package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
	"strings"
	"time"
)

// SQL-backed implementation of the ShiftRepository port.
type SQLShiftRepository struct {
	Store *db.Store
	Loc   *time.Location
}

func NewSQLShiftRepository(store *db.Store, loc *time.Location) *SQLShiftRepository {
	return &SQLShiftRepository{Store: store, Loc: locOrLocal(loc)}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const shiftColumns = `id, company_id, driver_id, shift_date, start_time, end_time, pause_min, status`

func (r *SQLShiftRepository) GetShift(ctx context.Context, id int64) (domain.Shift, error) {
	if r.Store == nil {
		return domain.Shift{}, errors.New("shift repository: DB is nil")
	}

	shifts, err := r.query(ctx, r.Store, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?;`, id)
	if err != nil {
		return domain.Shift{}, fmt.Errorf("get shift %d: %w", id, err)
	}
	if len(shifts) == 0 {
		return domain.Shift{}, fmt.Errorf("get shift %d: %w", id, domain.ErrNotFound)
	}

	return shifts[0], nil
}

func (r *SQLShiftRepository) ShiftsForDriver(ctx context.Context, driverID int64, from, to time.Time) ([]domain.Shift, error) {
	if r.Store == nil {
		return nil, errors.New("shift repository: DB is nil")
	}

	shifts, err := r.query(ctx, r.Store, `
	SELECT `+shiftColumns+`
	FROM shifts
	WHERE driver_id = ?
		AND shift_date >= ?
		AND shift_date < ?
		AND status <> ?
	ORDER BY shift_date, start_time, id;
	`, driverID, from.Format(domain.DateLayout), to.Format(domain.DateLayout), string(domain.ShiftCancelled))
	if err != nil {
		return nil, fmt.Errorf("list shifts driver=%d: %w", driverID, err)
	}

	return shifts, nil
}

// CreateShift stores s after checking that its driver is active and that it
// does not overlap another live shift of the same driver.
func (r *SQLShiftRepository) CreateShift(ctx context.Context, s domain.Shift) (int64, error) {
	if r.Store == nil {
		return 0, errors.New("shift repository: DB is nil")
	}

	if s.DriverID <= 0 || s.CompanyID <= 0 || s.ShiftDate.IsZero() {
		return 0, fmt.Errorf("create shift: company, driver and date are required: %w", domain.ErrInvalidInput)
	}
	if s.Status == "" {
		s.Status = domain.ShiftScheduled
	}

	start, end, err := s.Interval(r.Loc)
	if err != nil {
		return 0, fmt.Errorf("create shift: %w: %w", domain.ErrInvalidInput, err)
	}
	if !end.After(start) {
		return 0, fmt.Errorf("create shift: end must be after start: %w", domain.ErrInvalidInput)
	}

	tx, err := r.Store.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create shift: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.Status != domain.ShiftCancelled {
		var status string
		err := tx.QueryRowContext(ctx, r.Store.Rebind(`SELECT status FROM drivers WHERE id = ?;`), s.DriverID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("create shift: driver %d: %w", s.DriverID, domain.ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("create shift: load driver %d: %w", s.DriverID, err)
		}
		if domain.DriverStatus(status) != domain.DriverActive {
			return 0, fmt.Errorf("create shift: driver %d is %s: %w", s.DriverID, status, domain.ErrInvalidInput)
		}

		day := domain.StartOfDay(s.ShiftDate)
		nearby, err := r.query(ctx, tx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE driver_id = ?
			AND shift_date >= ?
			AND shift_date <= ?
			AND status <> ?;
		`, s.DriverID, day.AddDate(0, 0, -1).Format(domain.DateLayout), day.AddDate(0, 0, 1).Format(domain.DateLayout), string(domain.ShiftCancelled))
		if err != nil {
			return 0, fmt.Errorf("create shift: load nearby shifts: %w", err)
		}

		for _, other := range nearby {
			oStart, oEnd, err := other.Interval(r.Loc)
			if err != nil {
				continue
			}
			if start.Before(oEnd) && oStart.Before(end) {
				return 0, fmt.Errorf("create shift: overlaps shift %d: %w", other.ID, domain.ErrInvalidInput)
			}
		}
	}

	var id int64
	err = tx.QueryRowContext(ctx, r.Store.Rebind(`
	INSERT INTO shifts (company_id, driver_id, shift_date, start_time, end_time, pause_min, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`),
		s.CompanyID, s.DriverID, s.ShiftDate.Format(domain.DateLayout),
		strings.TrimSpace(s.StartTime), strings.TrimSpace(s.EndTime),
		nullFloat(s.PauseMinutes), string(s.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create shift: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create shift: commit: %w", err)
	}

	return id, nil
}

func (r *SQLShiftRepository) query(ctx context.Context, q queryer, query string, args ...any) ([]domain.Shift, error) {
	rows, err := q.QueryContext(ctx, r.Store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query shifts table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Shift, 0, 8)
	for rows.Next() {
		var s domain.Shift
		var date, status string
		var pause sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.DriverID, &date, &s.StartTime, &s.EndTime, &pause, &status); err != nil {
			return nil, fmt.Errorf("scan shift row: %w", err)
		}

		day, err := domain.ParseDate("shift_date", date, r.Loc)
		if err != nil {
			return nil, fmt.Errorf("shift %d: %w", s.ID, err)
		}
		s.ShiftDate = day
		s.PauseMinutes = floatPtr(pause)
		s.Status = domain.ShiftStatus(status)

		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shift row iteration: %w", err)
	}

	return out, nil
}

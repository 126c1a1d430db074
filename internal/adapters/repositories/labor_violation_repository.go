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

// SQL-backed implementation of the LaborViolationRepository port.
type SQLLaborViolationRepository struct {
	Store *db.Store
	Loc   *time.Location
}

func NewSQLLaborViolationRepository(store *db.Store, loc *time.Location) *SQLLaborViolationRepository {
	return &SQLLaborViolationRepository{Store: store, Loc: locOrLocal(loc)}
}

// AppendViolations inserts every violation in one transaction and returns
// the new ids in input order. Duplicates of earlier detections are kept.
func (r *SQLLaborViolationRepository) AppendViolations(ctx context.Context, vs []domain.LaborViolation) ([]int64, error) {
	if r.Store == nil {
		return nil, errors.New("labor violation repository: DB is nil")
	}

	if len(vs) == 0 {
		return nil, nil
	}

	tx, err := r.Store.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append labor violations: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.Store.Rebind(`
	INSERT INTO labor_law_violations (
		driver_id, shift_id, ride_id, violation_type, severity,
		message, details, timestamp, resolved, resolution_notes
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`))
	if err != nil {
		return nil, fmt.Errorf("append labor violations: db prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(vs))
	for _, v := range vs {
		details := []byte("{}")
		if v.Details != nil {
			details, err = json.Marshal(v.Details)
			if err != nil {
				return nil, fmt.Errorf("append labor violations: encode %s details: %w", v.Type, err)
			}
		}

		detected := v.DetectedAt
		if detected.IsZero() {
			detected = time.Now()
		}

		var id int64
		err := stmt.QueryRowContext(ctx,
			v.DriverID, nullInt64(v.ShiftID), nullInt64(v.RideID), string(v.Type), string(v.Severity),
			v.Message, string(details), domain.FormatTimestamp(detected, r.Loc), boolInt(v.Resolved), v.ResolutionNotes,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("append labor violations: insert %s driver=%d: %w", v.Type, v.DriverID, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append labor violations: commit: %w", err)
	}

	return ids, nil
}

func (r *SQLLaborViolationRepository) OpenViolations(ctx context.Context, driverID int64) ([]domain.LaborViolation, error) {
	if r.Store == nil {
		return nil, errors.New("labor violation repository: DB is nil")
	}

	rows, err := r.Store.QueryContext(ctx, r.Store.Rebind(`
	SELECT id, driver_id, shift_id, ride_id, violation_type, severity,
		message, details, timestamp, resolved, resolution_notes
	FROM labor_law_violations
	WHERE driver_id = ? AND resolved = 0
	ORDER BY timestamp, id;
	`), driverID)
	if err != nil {
		return nil, fmt.Errorf("open labor violations driver=%d: %w", driverID, err)
	}
	defer rows.Close()

	var out []domain.LaborViolation
	for rows.Next() {
		var (
			v                 domain.LaborViolation
			shiftID, rideID   sql.NullInt64
			kind, severity    string
			details, detected string
			resolved          int64
		)
		err := rows.Scan(&v.ID, &v.DriverID, &shiftID, &rideID, &kind, &severity,
			&v.Message, &details, &detected, &resolved, &v.ResolutionNotes)
		if err != nil {
			return nil, fmt.Errorf("open labor violations driver=%d: scan row: %w", driverID, err)
		}

		v.ShiftID = int64Ptr(shiftID)
		v.RideID = int64Ptr(rideID)
		v.Type = domain.LaborViolationType(kind)
		v.Severity = domain.Severity(severity)
		v.Resolved = resolved != 0
		if t := parseStoredTime("timestamp", sql.NullString{String: detected, Valid: true}, r.Loc); t != nil {
			v.DetectedAt = *t
		}

		// Unknown or damaged payloads keep the row visible without details.
		if d, err := domain.DecodeViolationDetails(v.Type, []byte(details)); err == nil {
			v.Details = d
		}

		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("open labor violations driver=%d: row iteration: %w", driverID, err)
	}

	return out, nil
}

// SaveWeeklyReport replaces the stored report for the driver and week.
func (r *SQLLaborViolationRepository) SaveWeeklyReport(ctx context.Context, rep domain.WeeklyComplianceReport) error {
	if r.Store == nil {
		return errors.New("labor violation repository: DB is nil")
	}

	_, err := r.Store.ExecContext(ctx, r.Store.Rebind(`
	INSERT INTO weekly_compliance_reports (
		driver_id, week_start, shift_count, total_hours, violation_count,
		compliance_rate, next_available, generated_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (driver_id, week_start) DO UPDATE
	SET shift_count = EXCLUDED.shift_count,
		total_hours = EXCLUDED.total_hours,
		violation_count = EXCLUDED.violation_count,
		compliance_rate = EXCLUDED.compliance_rate,
		next_available = EXCLUDED.next_available,
		generated_at = EXCLUDED.generated_at;
	`),
		rep.DriverID, rep.WeekStart.Format(domain.DateLayout), rep.ShiftCount, rep.TotalHours,
		len(rep.Violations), rep.ComplianceRate, nullTime(rep.NextAvailable, r.Loc),
		domain.FormatTimestamp(time.Now(), r.Loc),
	)
	if err != nil {
		return fmt.Errorf("save weekly report driver=%d week=%s: %w",
			rep.DriverID, rep.WeekStart.Format(domain.DateLayout), err)
	}

	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
)

// DefaultHeadquarters is the address of the company created by EnsureDefaultCompany.
const DefaultHeadquarters = "Muster Str 1, 45451 MusterStadt"

var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS companies (
		id {{id}},
		name TEXT NOT NULL,
		headquarters_address TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS drivers (
		id {{id}},
		company_id BIGINT NOT NULL REFERENCES companies(id),
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Active',
		vehicle TEXT NOT NULL DEFAULT ''
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS shifts (
		id {{id}},
		company_id BIGINT NOT NULL REFERENCES companies(id),
		driver_id BIGINT NOT NULL REFERENCES drivers(id),
		shift_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		pause_min {{real}},
		status TEXT NOT NULL DEFAULT 'Scheduled'
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS rides (
		id {{id}},
		company_id BIGINT NOT NULL REFERENCES companies(id),
		driver_id BIGINT NOT NULL REFERENCES drivers(id),
		shift_id BIGINT REFERENCES shifts(id),
		pickup_time TEXT,
		dropoff_time TEXT,
		pickup_location TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		vehicle_plate TEXT NOT NULL DEFAULT '',
		revenue {{real}},
		is_reserved INTEGER NOT NULL DEFAULT 0,
		assigned_during_ride INTEGER NOT NULL DEFAULT 0,
		current_route_destination TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Pending',
		violations TEXT NOT NULL DEFAULT '[]'
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS rules (
		company_id BIGINT NOT NULL,
		rule_name TEXT NOT NULL,
		rule_value TEXT NOT NULL,
		rule_type TEXT NOT NULL DEFAULT 'number',
		description TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (company_id, rule_name)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS address_cache (
		id {{id}},
		origin_address TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		distance_km {{real}} NOT NULL,
		duration_minutes {{real}} NOT NULL,
		created_date TEXT NOT NULL,
		last_used TEXT NOT NULL,
		use_count BIGINT NOT NULL DEFAULT 1,
		UNIQUE (origin_address, destination_address)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS labor_law_violations (
		id {{id}},
		driver_id BIGINT NOT NULL,
		shift_id BIGINT,
		ride_id BIGINT,
		violation_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		timestamp TEXT NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		resolution_notes TEXT NOT NULL DEFAULT ''
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS weekly_compliance_reports (
		driver_id BIGINT NOT NULL,
		week_start TEXT NOT NULL,
		shift_count INTEGER NOT NULL,
		total_hours {{real}} NOT NULL,
		violation_count INTEGER NOT NULL,
		compliance_rate {{real}} NOT NULL,
		next_available TEXT,
		generated_at TEXT NOT NULL,
		PRIMARY KEY (driver_id, week_start)
	);
	`,
	`CREATE INDEX IF NOT EXISTS idx_rides_driver_pickup ON rides(driver_id, pickup_time);`,
	`CREATE INDEX IF NOT EXISTS idx_rides_shift ON rides(shift_id);`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_driver_date ON shifts(driver_id, shift_date);`,
	`CREATE INDEX IF NOT EXISTS idx_address_cache_use_count ON address_cache(use_count);`,
	`CREATE INDEX IF NOT EXISTS idx_labor_violations_driver ON labor_law_violations(driver_id, resolved);`,
}

// Initialize the database schema for the store's dialect.
func InitSchema(ctx context.Context, store *db.Store) error {
	if store == nil || store.DB == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, store.Expand(stmt)); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// EnsureDefaultCompany creates company 1 with the default headquarters when
// the companies table is empty and returns the id of the first company.
func EnsureDefaultCompany(ctx context.Context, store *db.Store) (int64, error) {
	if store == nil || store.DB == nil {
		return 0, errors.New("ensure default company: DB is nil")
	}

	var id int64
	err := store.QueryRowContext(ctx, `SELECT id FROM companies ORDER BY id LIMIT 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ensure default company: query companies: %w", err)
	}

	repo := NewSQLCompanyRepository(store)
	return repo.CreateCompany(ctx, domain.Company{
		Name:                "Default Company",
		HeadquartersAddress: DefaultHeadquarters,
		Active:              true,
	})
}

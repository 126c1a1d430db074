package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
	"strings"
)

// SQL-backed implementation of the DriverRepository port.
type SQLDriverRepository struct{ Store *db.Store }

func NewSQLDriverRepository(store *db.Store) *SQLDriverRepository {
	return &SQLDriverRepository{Store: store}
}

func (r *SQLDriverRepository) GetDriver(ctx context.Context, id int64) (domain.Driver, error) {
	if r.Store == nil {
		return domain.Driver{}, errors.New("driver repository: DB is nil")
	}

	q := r.Store.Rebind(`
	SELECT id, company_id, name, status, vehicle
	FROM drivers
	WHERE id = ?;
	`)

	var d domain.Driver
	var status string
	err := r.Store.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.CompanyID, &d.Name, &status, &d.Vehicle)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Driver{}, fmt.Errorf("get driver %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Driver{}, fmt.Errorf("get driver %d: %w", id, err)
	}
	d.Status = domain.DriverStatus(status)

	return d, nil
}

func (r *SQLDriverRepository) CreateDriver(ctx context.Context, d domain.Driver) (int64, error) {
	if r.Store == nil {
		return 0, errors.New("driver repository: DB is nil")
	}

	if d.CompanyID <= 0 || strings.TrimSpace(d.Name) == "" {
		return 0, fmt.Errorf("create driver: company and name are required: %w", domain.ErrInvalidInput)
	}
	if d.Status == "" {
		d.Status = domain.DriverActive
	}

	q := r.Store.Rebind(`
	INSERT INTO drivers (company_id, name, status, vehicle)
	VALUES (?, ?, ?, ?)
	RETURNING id;
	`)

	var id int64
	if err := r.Store.QueryRowContext(ctx, q, d.CompanyID, d.Name, string(d.Status), d.Vehicle).Scan(&id); err != nil {
		return 0, fmt.Errorf("create driver: %w", err)
	}

	return id, nil
}

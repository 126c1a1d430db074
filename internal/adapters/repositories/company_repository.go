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

// SQL-backed implementation of the CompanyRepository port.
type SQLCompanyRepository struct{ Store *db.Store }

func NewSQLCompanyRepository(store *db.Store) *SQLCompanyRepository {
	return &SQLCompanyRepository{Store: store}
}

func (r *SQLCompanyRepository) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	if r.Store == nil {
		return domain.Company{}, errors.New("company repository: DB is nil")
	}

	q := r.Store.Rebind(`
	SELECT id, name, headquarters_address, active
	FROM companies
	WHERE id = ?;
	`)

	var c domain.Company
	var active int64
	err := r.Store.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.HeadquartersAddress, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Company{}, fmt.Errorf("get company %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company %d: %w", id, err)
	}
	c.Active = active != 0

	return c, nil
}

func (r *SQLCompanyRepository) CreateCompany(ctx context.Context, c domain.Company) (int64, error) {
	if r.Store == nil {
		return 0, errors.New("company repository: DB is nil")
	}

	if strings.TrimSpace(c.Name) == "" {
		return 0, fmt.Errorf("create company: name is required: %w", domain.ErrInvalidInput)
	}

	q := r.Store.Rebind(`
	INSERT INTO companies (name, headquarters_address, active)
	VALUES (?, ?, ?)
	RETURNING id;
	`)

	var id int64
	if err := r.Store.QueryRowContext(ctx, q, c.Name, strings.TrimSpace(c.HeadquartersAddress), boolInt(c.Active)).Scan(&id); err != nil {
		return 0, fmt.Errorf("create company: %w", err)
	}

	return id, nil
}

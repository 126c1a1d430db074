package repositories

import (
	"context"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/db"
)

// SQL-backed implementation of the RuleRepository port.
type SQLRuleRepository struct{ Store *db.Store }

func NewSQLRuleRepository(store *db.Store) *SQLRuleRepository {
	return &SQLRuleRepository{Store: store}
}

// ListRules returns the enabled rule rows of a company. Disabled rows are
// treated as absent so that the default applies.
func (r *SQLRuleRepository) ListRules(ctx context.Context, companyID int64) (map[domain.RuleName]domain.RuleValue, error) {
	if r.Store == nil {
		return nil, errors.New("rule repository: DB is nil")
	}

	rows, err := r.Store.QueryContext(ctx, r.Store.Rebind(`
	SELECT rule_name, rule_value, rule_type
	FROM rules
	WHERE company_id = ? AND enabled = 1;
	`), companyID)
	if err != nil {
		return nil, fmt.Errorf("list rules company=%d: query rules table: %w", companyID, err)
	}
	defer rows.Close()

	out := make(map[domain.RuleName]domain.RuleValue)
	for rows.Next() {
		var name, value, unit string
		if err := rows.Scan(&name, &value, &unit); err != nil {
			return nil, fmt.Errorf("list rules company=%d: scan row: %w", companyID, err)
		}
		out[domain.RuleName(name)] = domain.RuleValue{
			Name: domain.RuleName(name),
			Unit: domain.RuleUnit(unit),
			Raw:  value,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules company=%d: row iteration: %w", companyID, err)
	}

	return out, nil
}

// UpsertRule stores v as the enabled value of its rule; last writer wins.
func (r *SQLRuleRepository) UpsertRule(ctx context.Context, companyID int64, v domain.RuleValue, description string) error {
	if r.Store == nil {
		return errors.New("rule repository: DB is nil")
	}

	unit := v.Unit
	if unit == "" {
		unit = domain.UnitString
	}

	_, err := r.Store.ExecContext(ctx, r.Store.Rebind(`
	INSERT INTO rules (company_id, rule_name, rule_value, rule_type, description, enabled)
	VALUES (?, ?, ?, ?, ?, 1)
	ON CONFLICT (company_id, rule_name) DO UPDATE
	SET rule_value = EXCLUDED.rule_value,
		rule_type = EXCLUDED.rule_type,
		description = EXCLUDED.description,
		enabled = 1;
	`), companyID, string(v.Name), v.Raw, string(unit), description)
	if err != nil {
		return fmt.Errorf("upsert rule %s company=%d: %w", v.Name, companyID, err)
	}

	return nil
}

func (r *SQLRuleRepository) DeleteRule(ctx context.Context, companyID int64, name domain.RuleName) error {
	if r.Store == nil {
		return errors.New("rule repository: DB is nil")
	}

	_, err := r.Store.ExecContext(ctx, r.Store.Rebind(`
	DELETE FROM rules WHERE company_id = ? AND rule_name = ?;
	`), companyID, string(name))
	if err != nil {
		return fmt.Errorf("delete rule %s company=%d: %w", name, companyID, err)
	}

	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"strings"

	"github.com/sirupsen/logrus"
)

// RuleStore resolves tenant rule values over the catalog defaults.
type RuleStore struct {
	repo ports.RuleRepository
}

func NewRuleStore(repo ports.RuleRepository) *RuleStore {
	return &RuleStore{repo: repo}
}

// Definitions lists the closed rule catalog.
func (s *RuleStore) Definitions() []domain.RuleDefinition {
	return domain.RuleDefinitions()
}

// Get returns the stored value of name for a company, or its default. A name
// outside the catalog with no stored row yields an empty value.
func (s *RuleStore) Get(ctx context.Context, companyID int64, name domain.RuleName) (domain.RuleValue, error) {
	if s.repo == nil {
		return domain.RuleValue{}, errors.New("rule store: repository is nil")
	}

	stored, err := s.repo.ListRules(ctx, companyID)
	if err != nil {
		return domain.RuleValue{}, fmt.Errorf("rule store get %s: %w", name, err)
	}

	if v, ok := stored[name]; ok {
		def, known := domain.LookupRule(name)
		if !known {
			return v, nil
		}
		parsed, perr := domain.ParseRuleValue(def, v.Raw)
		if perr == nil {
			return parsed, nil
		}
		obs.Logger(ctx).WithError(perr).WithField("company_id", companyID).Warn("stored rule value invalid; using default")
	}

	if def, ok := domain.LookupRule(name); ok {
		return domain.DefaultRuleValue(def), nil
	}
	return domain.RuleValue{Name: name}, nil
}

// Set stores raw for name; the last writer wins. Catalog rules are checked
// against their unit first.
func (s *RuleStore) Set(ctx context.Context, companyID int64, name domain.RuleName, raw string) error {
	if s.repo == nil {
		return errors.New("rule store: repository is nil")
	}

	name = domain.RuleName(strings.TrimSpace(string(name)))
	if name == "" {
		return fmt.Errorf("rule store set: rule name is empty: %w", domain.ErrInvalidInput)
	}

	v := domain.RuleValue{Name: name, Unit: domain.UnitString, Raw: strings.TrimSpace(raw)}
	description := ""
	if def, ok := domain.LookupRule(name); ok {
		parsed, err := domain.ParseRuleValue(def, raw)
		if err != nil {
			return fmt.Errorf("rule store set: %w", err)
		}
		v = parsed
		description = def.Description
	}

	if err := s.repo.UpsertRule(ctx, companyID, v, description); err != nil {
		return fmt.Errorf("rule store set %s: %w", name, err)
	}

	obs.Logger(ctx).WithFields(logrus.Fields{
		"company_id": companyID,
		"rule":       name,
		"value":      v.Raw,
	}).Info("rule updated")
	return nil
}

// Reset removes a company override so the default applies again.
func (s *RuleStore) Reset(ctx context.Context, companyID int64, name domain.RuleName) error {
	if s.repo == nil {
		return errors.New("rule store: repository is nil")
	}
	if err := s.repo.DeleteRule(ctx, companyID, name); err != nil {
		return fmt.Errorf("rule store reset %s: %w", name, err)
	}
	return nil
}

// Snapshot reads every rule of a company once. Stored values that no longer
// parse are logged and replaced by their defaults.
func (s *RuleStore) Snapshot(ctx context.Context, companyID int64) (domain.RuleSnapshot, error) {
	if s.repo == nil {
		return domain.RuleSnapshot{}, errors.New("rule store: repository is nil")
	}

	stored, err := s.repo.ListRules(ctx, companyID)
	if err != nil {
		return domain.RuleSnapshot{}, fmt.Errorf("rule store snapshot company %d: %w", companyID, err)
	}

	snap, invalid := domain.NewRuleSnapshot(companyID, stored)
	if len(invalid) > 0 {
		obs.Logger(ctx).WithFields(logrus.Fields{
			"company_id": companyID,
			"rules":      invalid,
		}).Warn("invalid stored rule values replaced by defaults")
	}

	return snap, nil
}

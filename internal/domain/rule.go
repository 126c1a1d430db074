package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RuleName identifies a tenant-configurable rule parameter.
type RuleName string

const (
	RuleMaxPickupDistanceMinutes  RuleName = "max_pickup_distance_minutes"
	RuleMaxNextJobDistanceMinutes RuleName = "max_next_job_distance_minutes"
	RuleMaxPreviousDestMinutes    RuleName = "max_previous_dest_minutes"
	RuleMaxHQDeviationKm          RuleName = "max_hq_deviation_km"
	RuleTimeToleranceMinutes      RuleName = "time_tolerance_minutes"
	RuleShiftStartLocation        RuleName = "shift_start_location"
	RuleMinimumWageHourly         RuleName = "minimum_wage_hourly"
	RuleNightBonusRate            RuleName = "night_bonus_rate"
	RuleWeekendBonusRate          RuleName = "weekend_bonus_rate"
	RuleHolidayBonusRate          RuleName = "holiday_bonus_rate"
	RuleNightStartHour            RuleName = "night_start_hour"
	RuleNightEndHour              RuleName = "night_end_hour"
)

// RuleUnit is the dimension of a rule value and drives validation on write.
type RuleUnit string

const (
	UnitNumber     RuleUnit = "number"
	UnitMinutes    RuleUnit = "minutes"
	UnitKilometres RuleUnit = "km"
	UnitPercent    RuleUnit = "percent"
	UnitCurrency   RuleUnit = "currency/h"
	UnitHour       RuleUnit = "hour"
	UnitBoolean    RuleUnit = "boolean"
	UnitString     RuleUnit = "string"
)

type RuleDefinition struct {
	Name        RuleName
	Unit        RuleUnit
	Default     string
	Description string
}

var ruleCatalog = []RuleDefinition{
	{RuleMaxPickupDistanceMinutes, UnitMinutes, "24", "Maximum driving time from the current location to the pickup"},
	{RuleMaxNextJobDistanceMinutes, UnitMinutes, "30", "Maximum driving time from a destination to the next pickup"},
	{RuleMaxPreviousDestMinutes, UnitMinutes, "18", "Maximum driving time from a destination back to its pickup"},
	{RuleMaxHQDeviationKm, UnitKilometres, "7", "Maximum extra distance from headquarters before the next job"},
	{RuleTimeToleranceMinutes, UnitMinutes, "10", "Allowed gap between a dropoff and the next pickup"},
	{RuleShiftStartLocation, UnitString, "Headquarters", "Marker word for the shift start location"},
	{RuleMinimumWageHourly, UnitCurrency, "12.41", "Statutory minimum wage in EUR per hour"},
	{RuleNightBonusRate, UnitPercent, "15", "Night work bonus"},
	{RuleWeekendBonusRate, UnitPercent, "10", "Weekend work bonus"},
	{RuleHolidayBonusRate, UnitPercent, "25", "Public holiday bonus"},
	{RuleNightStartHour, UnitHour, "22", "Hour at which night work begins"},
	{RuleNightEndHour, UnitHour, "6", "Hour at which night work ends"},
}

// RuleDefinitions returns the closed catalog of rules the core understands.
func RuleDefinitions() []RuleDefinition {
	out := make([]RuleDefinition, len(ruleCatalog))
	copy(out, ruleCatalog)
	return out
}

func LookupRule(name RuleName) (RuleDefinition, bool) {
	for _, d := range ruleCatalog {
		if d.Name == name {
			return d, true
		}
	}
	return RuleDefinition{}, false
}

// RuleValue is the effective value of one rule for one tenant.
type RuleValue struct {
	Name      RuleName
	Unit      RuleUnit
	Raw       string
	IsDefault bool
}

func (v RuleValue) String() string { return v.Raw }

func (v RuleValue) Float() (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v.Raw), "%"))
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("rule %s: %q is not a number: %w", v.Name, v.Raw, ErrInvalidInput)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("rule %s: %q is not finite: %w", v.Name, v.Raw, ErrInvalidInput)
	}
	return f, nil
}

func (v RuleValue) Bool() (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(v.Raw))
	if err != nil {
		return false, fmt.Errorf("rule %s: %q is not a boolean: %w", v.Name, v.Raw, ErrInvalidInput)
	}
	return b, nil
}

// ParseRuleValue checks raw against the unit of def.
func ParseRuleValue(def RuleDefinition, raw string) (RuleValue, error) {
	v := RuleValue{Name: def.Name, Unit: def.Unit, Raw: strings.TrimSpace(raw)}

	switch def.Unit {
	case UnitString:
		if v.Raw == "" {
			return v, fmt.Errorf("rule %s: value must not be empty: %w", def.Name, ErrInvalidInput)
		}
	case UnitBoolean:
		if _, err := v.Bool(); err != nil {
			return v, err
		}
	case UnitHour:
		f, err := v.Float()
		if err != nil {
			return v, err
		}
		if f != math.Trunc(f) || f < 0 || f > 23 {
			return v, fmt.Errorf("rule %s: hour %q must be a whole number 0-23: %w", def.Name, raw, ErrInvalidInput)
		}
	default:
		f, err := v.Float()
		if err != nil {
			return v, err
		}
		if f < 0 {
			return v, fmt.Errorf("rule %s: %q must not be negative: %w", def.Name, raw, ErrInvalidInput)
		}
	}

	return v, nil
}

// DefaultRuleValue returns the shipped default for a catalog rule.
func DefaultRuleValue(def RuleDefinition) RuleValue {
	return RuleValue{Name: def.Name, Unit: def.Unit, Raw: def.Default, IsDefault: true}
}

// RuleSnapshot is a point-in-time view of every catalog rule for a tenant.
// Validators take one per top-level evaluation.
type RuleSnapshot struct {
	CompanyID int64

	MaxPickupDistanceMinutes  float64
	MaxNextJobDistanceMinutes float64
	MaxPreviousDestMinutes    float64
	MaxHQDeviationKm          float64
	TimeToleranceMinutes      float64
	ShiftStartLocation        string
	MinimumWageHourly         float64
	NightBonusRate            float64
	WeekendBonusRate          float64
	HolidayBonusRate          float64
	NightStartHour            int
	NightEndHour              int

	Values map[RuleName]RuleValue
}

// NewRuleSnapshot builds a snapshot from stored values. Catalog rules that are
// missing or hold a value that does not parse for their unit use the default;
// their names are returned so the caller can report them.
func NewRuleSnapshot(companyID int64, stored map[RuleName]RuleValue) (RuleSnapshot, []RuleName) {
	snap := RuleSnapshot{CompanyID: companyID, Values: make(map[RuleName]RuleValue, len(ruleCatalog)+len(stored))}
	var invalid []RuleName

	for name, v := range stored {
		snap.Values[name] = v
	}

	for _, def := range ruleCatalog {
		v, ok := stored[def.Name]
		if ok {
			parsed, err := ParseRuleValue(def, v.Raw)
			if err != nil {
				invalid = append(invalid, def.Name)
				ok = false
			} else {
				v = parsed
			}
		}
		if !ok {
			v = DefaultRuleValue(def)
		}
		snap.Values[def.Name] = v
	}

	num := func(name RuleName) float64 {
		f, _ := snap.Values[name].Float()
		return f
	}

	snap.MaxPickupDistanceMinutes = num(RuleMaxPickupDistanceMinutes)
	snap.MaxNextJobDistanceMinutes = num(RuleMaxNextJobDistanceMinutes)
	snap.MaxPreviousDestMinutes = num(RuleMaxPreviousDestMinutes)
	snap.MaxHQDeviationKm = num(RuleMaxHQDeviationKm)
	snap.TimeToleranceMinutes = num(RuleTimeToleranceMinutes)
	snap.ShiftStartLocation = snap.Values[RuleShiftStartLocation].Raw
	snap.MinimumWageHourly = num(RuleMinimumWageHourly)
	snap.NightBonusRate = num(RuleNightBonusRate)
	snap.WeekendBonusRate = num(RuleWeekendBonusRate)
	snap.HolidayBonusRate = num(RuleHolidayBonusRate)
	snap.NightStartHour = int(num(RuleNightStartHour))
	snap.NightEndHour = int(num(RuleNightEndHour))

	return snap, invalid
}

// DefaultRuleSnapshot returns the snapshot of a tenant with no stored rules.
func DefaultRuleSnapshot(companyID int64) RuleSnapshot {
	snap, _ := NewRuleSnapshot(companyID, nil)
	return snap
}

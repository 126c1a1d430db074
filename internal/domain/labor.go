package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Statutory work-time limits. These are law, not tenant configuration.
const (
	MaxShiftDuration     = 10 * time.Hour
	BreakThresholdShort  = 6 * time.Hour
	BreakThresholdLong   = 9 * time.Hour
	RequiredBreakShort   = 30.0
	RequiredBreakLong    = 45.0
	MinBreakInterval     = 15 * time.Minute
	ShortBreakLowerBound = 10 * time.Minute
	MinDailyRest         = 11 * time.Hour
	MaxContinuousWork    = 6 * time.Hour
	MaxWeeklyWorkingTime = 60 * time.Hour
)

// RequiredBreakMinutes returns the total break a shift of length d must contain.
func RequiredBreakMinutes(d time.Duration) float64 {
	switch {
	case d >= BreakThresholdLong:
		return RequiredBreakLong
	case d >= BreakThresholdShort:
		return RequiredBreakShort
	default:
		return 0
	}
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight ranks severities for the weekly compliance rate.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type LaborViolationType string

const (
	MaxShiftExceeded      LaborViolationType = "max_shift_exceeded"
	InsufficientBreak     LaborViolationType = "insufficient_break"
	ShortBreakIntervals   LaborViolationType = "short_break_intervals"
	ContinuousWorkTooLong LaborViolationType = "continuous_work_too_long"
	InsufficientDailyRest LaborViolationType = "insufficient_daily_rest"
	WeeklyHoursExceeded   LaborViolationType = "weekly_hours_exceeded"
)

// ViolationDetails is the type-specific payload of a LaborViolation.
// Consumers switch on the concrete type.
type ViolationDetails interface {
	Kind() LaborViolationType
}

type ShiftDurationDetails struct {
	ShiftHours  float64 `json:"shift_hours"`
	MaxHours    float64 `json:"max_hours"`
	ExcessHours float64 `json:"excess_hours"`
}

type BreakDetails struct {
	ShiftHours      float64 `json:"shift_hours"`
	RequiredMinutes float64 `json:"required_minutes"`
	ActualMinutes   float64 `json:"actual_minutes"`
	DeficitMinutes  float64 `json:"deficit_minutes"`
	Source          string  `json:"source"`
}

type ShortBreakDetails struct {
	GapMinutes     []float64 `json:"gap_minutes"`
	MinimumMinutes float64   `json:"minimum_minutes"`
}

type ContinuousWorkDetails struct {
	SegmentStart time.Time `json:"segment_start"`
	SegmentEnd   time.Time `json:"segment_end"`
	WorkedHours  float64   `json:"worked_hours"`
	MaxHours     float64   `json:"max_hours"`
}

type RestDetails struct {
	PreviousShiftID int64     `json:"previous_shift_id"`
	PreviousEnd     time.Time `json:"previous_end"`
	CurrentStart    time.Time `json:"current_start"`
	RestHours       float64   `json:"rest_hours"`
	RequiredHours   float64   `json:"required_hours"`
	DeficitHours    float64   `json:"deficit_hours"`
}

type WeeklyHoursDetails struct {
	WeekStart   string  `json:"week_start"`
	ShiftCount  int     `json:"shift_count"`
	TotalHours  float64 `json:"total_hours"`
	MaxHours    float64 `json:"max_hours"`
	ExcessHours float64 `json:"excess_hours"`
}

func (ShiftDurationDetails) Kind() LaborViolationType  { return MaxShiftExceeded }
func (BreakDetails) Kind() LaborViolationType          { return InsufficientBreak }
func (ShortBreakDetails) Kind() LaborViolationType     { return ShortBreakIntervals }
func (ContinuousWorkDetails) Kind() LaborViolationType { return ContinuousWorkTooLong }
func (RestDetails) Kind() LaborViolationType           { return InsufficientDailyRest }
func (WeeklyHoursDetails) Kind() LaborViolationType    { return WeeklyHoursExceeded }

// DecodeViolationDetails restores the typed payload stored for kind.
func DecodeViolationDetails(kind LaborViolationType, raw []byte) (ViolationDetails, error) {
	var d ViolationDetails
	switch kind {
	case MaxShiftExceeded:
		d = &ShiftDurationDetails{}
	case InsufficientBreak:
		d = &BreakDetails{}
	case ShortBreakIntervals:
		d = &ShortBreakDetails{}
	case ContinuousWorkTooLong:
		d = &ContinuousWorkDetails{}
	case InsufficientDailyRest:
		d = &RestDetails{}
	case WeeklyHoursExceeded:
		d = &WeeklyHoursDetails{}
	default:
		return nil, fmt.Errorf("decode violation details: unknown type %q", kind)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, fmt.Errorf("decode violation details %s: %w", kind, err)
		}
	}

	switch v := d.(type) {
	case *ShiftDurationDetails:
		return *v, nil
	case *BreakDetails:
		return *v, nil
	case *ShortBreakDetails:
		return *v, nil
	case *ContinuousWorkDetails:
		return *v, nil
	case *RestDetails:
		return *v, nil
	case *WeeklyHoursDetails:
		return *v, nil
	}
	return d, nil
}

// LaborViolation is one work-time rule breach. Severity never changes after
// detection; only an operator marks it resolved.
type LaborViolation struct {
	ID              int64
	DriverID        int64
	ShiftID         *int64
	RideID          *int64
	Type            LaborViolationType
	Severity        Severity
	Message         string
	Details         ViolationDetails
	DetectedAt      time.Time
	Resolved        bool
	ResolutionNotes string
}

// WeeklyComplianceReport summarizes one driver's ISO week.
type WeeklyComplianceReport struct {
	DriverID       int64
	WeekStart      time.Time
	ShiftCount     int
	TotalHours     float64
	Violations     []LaborViolation
	ComplianceRate float64
	NextAvailable  *time.Time
}

// ComplianceRate scores a set of violations across n shifts from 100 down to 0,
// weighting each by severity.
func ComplianceRate(violations []LaborViolation, n int) float64 {
	if n <= 0 {
		if len(violations) == 0 {
			return 100
		}
		n = 1
	}

	weight := 0
	for _, v := range violations {
		weight += v.Severity.Weight()
	}

	rate := 100 - float64(weight)/float64(3*n)*100
	return math.Max(0, Round1(rate))
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 { return math.Round(f*10) / 10 }

// Round2 rounds to two decimal places.
func Round2(f float64) float64 { return math.Round(f*100) / 100 }

package domain

import (
	"slices"
	"time"
)

type RideStatus string

const (
	RidePending           RideStatus = "Pending"
	RideInProgress        RideStatus = "In Progress"
	RideCompleted         RideStatus = "Completed"
	RideFlagged           RideStatus = "Violation"
	RideNeedsReassignment RideStatus = "Needs Reassignment"
	RideCancelled         RideStatus = "Cancelled"
)

// ViolationTag is the stable, locale-independent identifier of a failed ride rule.
type ViolationTag string

const (
	TagShiftStart             ViolationTag = "RULE_1_SHIFT_START"
	TagPickupDistanceExceeded ViolationTag = "RULE_2_PICKUP_DISTANCE_EXCEEDED"
	TagNoReturnToHQ           ViolationTag = "RULE_3_NO_RETURN_TO_HQ"
	TagHQDeviationExceeded    ViolationTag = "RULE_3_HQ_DEVIATION_EXCEEDED"
	TagTimeGapExceeded        ViolationTag = "RULE_4_TIME_GAP_EXCEEDED"
	TagTimeGapParseError      ViolationTag = "RULE_4_TIME_GAP_PARSE_ERROR"
	TagIllogicalRoute         ViolationTag = "RULE_5_ILLOGICAL_ROUTE"
)

// Ride is one recorded trip. A nil DropoffTime means the ride is unfinished
// or its stored dropoff could not be parsed.
type Ride struct {
	ID                      int64
	CompanyID               int64
	DriverID                int64
	ShiftID                 *int64
	PickupTime              time.Time
	DropoffTime             *time.Time
	PickupLocation          string
	Destination             string
	VehiclePlate            string
	Revenue                 *float64
	IsReserved              bool
	AssignedDuringRide      bool
	CurrentRouteDestination string
	Status                  RideStatus
	Violations              []ViolationTag
}

// Finished reports whether the ride has been completed, whether or not it
// was later flagged.
func (r Ride) Finished() bool {
	return r.Status == RideCompleted || r.Status == RideFlagged
}

// RideViolation is one failed ride rule with the measured value that failed
// it (minutes or kilometres, see Unit). Measured is zero when not applicable.
type RideViolation struct {
	Tag      ViolationTag `json:"tag"`
	Measured float64      `json:"measured"`
	Unit     string       `json:"unit,omitempty"`
	Message  string       `json:"message"`
}

type RideValidation struct {
	RideID     int64           `json:"ride_id"`
	Violations []RideViolation `json:"violations"`
}

func (v RideValidation) OK() bool { return len(v.Violations) == 0 }

// Tags returns the violation tags in rule order.
func (v RideValidation) Tags() []ViolationTag {
	out := make([]ViolationTag, 0, len(v.Violations))
	for _, x := range v.Violations {
		if !slices.Contains(out, x.Tag) {
			out = append(out, x.Tag)
		}
	}
	return out
}

// Find returns the violation carrying tag, if any.
func (v RideValidation) Find(tag ViolationTag) (RideViolation, bool) {
	for _, x := range v.Violations {
		if x.Tag == tag {
			return x, true
		}
	}
	return RideViolation{}, false
}

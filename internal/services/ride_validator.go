package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// hqMarkerWord is accepted in place of the full headquarters address.
const hqMarkerWord = "Zentrale"

// maxRouteDetourKm bounds how far a pickup may pull a running route off course.
const maxRouteDetourKm = 2.0

// RideValidator checks a ride against the five ride rules of its company.
type RideValidator struct {
	rides     ports.RideRepository
	companies ports.CompanyRepository
	rules     *RuleStore
	metrics   ports.MetricSource
}

func NewRideValidator(
	rides ports.RideRepository,
	companies ports.CompanyRepository,
	rules *RuleStore,
	metrics ports.MetricSource,
) *RideValidator {
	return &RideValidator{rides: rides, companies: companies, rules: rules, metrics: metrics}
}

// rideContext is everything one evaluation reads, fetched once at entry.
type rideContext struct {
	ride  domain.Ride
	hq    string
	rules domain.RuleSnapshot
	// Same-day rides of the driver before and after this one, by pickup time.
	earlier []domain.Ride
	later   []domain.Ride
}

// Validate evaluates R1 to R5 in order. Violations are data; only storage
// failures are returned as errors.
func (v *RideValidator) Validate(ctx context.Context, ride domain.Ride) (_ domain.RideValidation, err error) {
	if obs.RequestID(ctx) == "" {
		ctx = obs.WithRequestID(ctx)
	}
	defer obs.Time(ctx, "ride.Validate")(&err)

	if v.rides == nil || v.companies == nil || v.rules == nil || v.metrics == nil {
		return domain.RideValidation{}, errors.New("validate ride: validator is not fully configured")
	}

	rc, err := v.load(ctx, ride)
	if err != nil {
		return domain.RideValidation{}, fmt.Errorf("validate ride %d: %w", ride.ID, err)
	}

	out := domain.RideValidation{RideID: ride.ID, Violations: []domain.RideViolation{}}
	checks := []func(context.Context, *rideContext) (*domain.RideViolation, error){
		v.checkShiftStart,
		v.checkPickupDistance,
		v.checkPostRide,
		v.checkTimeGap,
		v.checkRouteLogic,
	}
	for _, check := range checks {
		violation, err := check(ctx, rc)
		if err != nil {
			return domain.RideValidation{}, fmt.Errorf("validate ride %d: %w", ride.ID, err)
		}
		if violation != nil {
			out.Violations = append(out.Violations, *violation)
		}
	}

	obs.Logger(ctx).WithFields(logrus.Fields{
		"ride_id":    ride.ID,
		"violations": out.Tags(),
	}).Debug("ride validated")

	return out, nil
}

func (v *RideValidator) load(ctx context.Context, ride domain.Ride) (*rideContext, error) {
	company, err := v.companies.GetCompany(ctx, ride.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}

	snap, err := v.rules.Snapshot(ctx, ride.CompanyID)
	if err != nil {
		return nil, err
	}

	rc := &rideContext{ride: ride, hq: company.HeadquartersAddress, rules: snap}
	if ride.DriverID == 0 || ride.PickupTime.IsZero() {
		return rc, nil
	}

	day, err := v.rides.RidesForDriverOn(ctx, ride.DriverID, ride.PickupTime)
	if err != nil {
		return nil, fmt.Errorf("load driver history: %w", err)
	}

	for _, r := range day {
		if ride.ID != 0 && r.ID == ride.ID {
			continue
		}
		if r.PickupTime.Before(ride.PickupTime) || (r.PickupTime.Equal(ride.PickupTime) && ride.ID != 0 && r.ID < ride.ID) {
			rc.earlier = append(rc.earlier, r)
		} else {
			rc.later = append(rc.later, r)
		}
	}

	return rc, nil
}

func (rc *rideContext) previous() (domain.Ride, bool) {
	if len(rc.earlier) == 0 {
		return domain.Ride{}, false
	}
	return rc.earlier[len(rc.earlier)-1], true
}

// previousFinished is the latest earlier ride that was completed. Rides still
// pending or in progress are skipped.
func (rc *rideContext) previousFinished() (domain.Ride, bool) {
	for i := len(rc.earlier) - 1; i >= 0; i-- {
		if rc.earlier[i].Finished() {
			return rc.earlier[i], true
		}
	}
	return domain.Ride{}, false
}

func (rc *rideContext) next() (domain.Ride, bool) {
	if len(rc.later) == 0 {
		return domain.Ride{}, false
	}
	return rc.later[0], true
}

// atHeadquarters matches the normalized HQ address or, failing that, the
// configured marker word.
func (rc *rideContext) atHeadquarters(addr string) bool {
	norm := domain.NormalizeAddress(addr)
	if norm == "" {
		return false
	}
	if hq := domain.NormalizeAddress(rc.hq); hq != "" && norm == hq {
		return true
	}
	return domain.ContainsFold(norm, rc.rules.ShiftStartLocation) || domain.ContainsFold(norm, hqMarkerWord)
}

func (v *RideValidator) checkShiftStart(_ context.Context, rc *rideContext) (*domain.RideViolation, error) {
	r := rc.ride
	if r.DriverID == 0 || r.PickupTime.IsZero() {
		return &domain.RideViolation{
			Tag:     domain.TagShiftStart,
			Message: "first ride of the day cannot be determined without driver and pickup time",
		}, nil
	}
	if len(rc.earlier) > 0 || rc.atHeadquarters(r.PickupLocation) {
		return nil, nil
	}
	return &domain.RideViolation{
		Tag:     domain.TagShiftStart,
		Message: fmt.Sprintf("first ride of the day starts at %q instead of headquarters", r.PickupLocation),
	}, nil
}

func (v *RideValidator) checkPickupDistance(ctx context.Context, rc *rideContext) (*domain.RideViolation, error) {
	r := rc.ride
	if r.IsReserved {
		return nil, nil
	}

	from := rc.hq
	if prev, ok := rc.previous(); ok {
		from = prev.Destination
	}

	m, err := v.metrics.Metric(ctx, from, r.PickupLocation)
	if err != nil {
		return nil, fmt.Errorf("pickup distance: %w", err)
	}

	limit := rc.rules.MaxPickupDistanceMinutes
	if m.DurationMinutes <= limit {
		return nil, nil
	}
	return &domain.RideViolation{
		Tag:      domain.TagPickupDistanceExceeded,
		Measured: m.DurationMinutes,
		Unit:     "min",
		Message:  fmt.Sprintf("pickup is %.0f min away, limit %.0f min", m.DurationMinutes, limit),
	}, nil
}

func (v *RideValidator) checkPostRide(ctx context.Context, rc *rideContext) (*domain.RideViolation, error) {
	r := rc.ride

	next, ok := rc.next()
	if !ok {
		if rc.atHeadquarters(r.Destination) {
			return nil, nil
		}
		return &domain.RideViolation{
			Tag:     domain.TagNoReturnToHQ,
			Message: fmt.Sprintf("last ride of the day ends at %q instead of headquarters", r.Destination),
		}, nil
	}

	toNext, err := v.metrics.Metric(ctx, r.Destination, next.PickupLocation)
	if err != nil {
		return nil, fmt.Errorf("post ride: %w", err)
	}
	back, err := v.metrics.Metric(ctx, r.Destination, r.PickupLocation)
	if err != nil {
		return nil, fmt.Errorf("post ride: %w", err)
	}
	if toNext.DurationMinutes <= rc.rules.MaxNextJobDistanceMinutes && back.DurationMinutes <= rc.rules.MaxPreviousDestMinutes {
		return nil, nil
	}

	a, err := v.metrics.Metric(ctx, r.Destination, rc.hq)
	if err != nil {
		return nil, fmt.Errorf("post ride: %w", err)
	}
	b, err := v.metrics.Metric(ctx, next.PickupLocation, rc.hq)
	if err != nil {
		return nil, fmt.Errorf("post ride: %w", err)
	}

	deviation := b.DistanceKm - a.DistanceKm
	limit := rc.rules.MaxHQDeviationKm
	if deviation <= limit {
		return nil, nil
	}
	return &domain.RideViolation{
		Tag:      domain.TagHQDeviationExceeded,
		Measured: domain.Round2(deviation - limit),
		Unit:     "km",
		Message: fmt.Sprintf(
			"next pickup lies %.1f km further from headquarters than this destination, limit %.1f km",
			deviation, limit,
		),
	}, nil
}

func (v *RideValidator) checkTimeGap(_ context.Context, rc *rideContext) (*domain.RideViolation, error) {
	prev, ok := rc.previousFinished()
	if !ok {
		return nil, nil
	}
	if prev.DropoffTime == nil {
		return &domain.RideViolation{
			Tag:     domain.TagTimeGapParseError,
			Message: fmt.Sprintf("previous ride %d has no usable dropoff time", prev.ID),
		}, nil
	}

	gap := rc.ride.PickupTime.Sub(*prev.DropoffTime).Minutes()
	limit := rc.rules.TimeToleranceMinutes
	if math.Abs(gap) <= limit {
		return nil, nil
	}
	return &domain.RideViolation{
		Tag:      domain.TagTimeGapExceeded,
		Measured: gap,
		Unit:     "min",
		Message:  fmt.Sprintf("%.0f min between previous dropoff and this pickup, tolerance %.0f min", gap, limit),
	}, nil
}

func (v *RideValidator) checkRouteLogic(ctx context.Context, rc *rideContext) (*domain.RideViolation, error) {
	r := rc.ride
	if !r.AssignedDuringRide || domain.NormalizeAddress(r.CurrentRouteDestination) == "" {
		return nil, nil
	}

	origin := rc.hq
	if prev, ok := rc.previous(); ok {
		origin = prev.PickupLocation
	}

	leg1, err := v.metrics.Metric(ctx, origin, r.PickupLocation)
	if err != nil {
		return nil, fmt.Errorf("route logic: %w", err)
	}
	leg2, err := v.metrics.Metric(ctx, r.PickupLocation, r.CurrentRouteDestination)
	if err != nil {
		return nil, fmt.Errorf("route logic: %w", err)
	}
	direct, err := v.metrics.Metric(ctx, origin, r.CurrentRouteDestination)
	if err != nil {
		return nil, fmt.Errorf("route logic: %w", err)
	}

	detour := leg1.DistanceKm + leg2.DistanceKm - direct.DistanceKm
	if detour <= maxRouteDetourKm {
		return nil, nil
	}
	return &domain.RideViolation{
		Tag:      domain.TagIllogicalRoute,
		Measured: domain.Round2(detour),
		Unit:     "km",
		Message:  fmt.Sprintf("pickup adds a %.1f km detour to the running route", detour),
	}, nil
}

// Persist stores the tags on the ride and moves it to Violation or Completed.
func (v *RideValidator) Persist(ctx context.Context, rideID int64, violations []domain.RideViolation) error {
	if v.rides == nil {
		return errors.New("persist ride violations: ride repository is nil")
	}

	tags := domain.RideValidation{Violations: violations}.Tags()
	status := domain.RideCompleted
	if len(tags) > 0 {
		status = domain.RideFlagged
	}

	if err := v.rides.SaveRideViolations(ctx, rideID, tags, status); err != nil {
		return fmt.Errorf("persist ride %d violations: %w", rideID, err)
	}
	return nil
}

// ValidateAndPersist loads a stored ride, validates it and records the outcome.
func (v *RideValidator) ValidateAndPersist(ctx context.Context, rideID int64) (domain.RideValidation, error) {
	if v.rides == nil {
		return domain.RideValidation{}, errors.New("validate ride: ride repository is nil")
	}

	ride, err := v.rides.GetRide(ctx, rideID)
	if err != nil {
		return domain.RideValidation{}, fmt.Errorf("validate ride %d: %w", rideID, err)
	}

	res, err := v.Validate(ctx, ride)
	if err != nil {
		return domain.RideValidation{}, err
	}
	if err := v.Persist(ctx, rideID, res.Violations); err != nil {
		return domain.RideValidation{}, err
	}

	return res, nil
}

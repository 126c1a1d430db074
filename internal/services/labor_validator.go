package services

import (
	"context"
	"errors"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/platform/obs"
	"ride-logbook-service/internal/ports"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// restLookback is how far back the previous shift of a driver is searched.
const restLookback = 7

// LaborValidator checks shifts and weeks against the statutory work-time limits.
type LaborValidator struct {
	shifts     ports.ShiftRepository
	rides      ports.RideRepository
	violations ports.LaborViolationRepository
	loc        *time.Location
	now        func() time.Time
}

func NewLaborValidator(
	shifts ports.ShiftRepository,
	rides ports.RideRepository,
	violations ports.LaborViolationRepository,
	loc *time.Location,
) *LaborValidator {
	if loc == nil {
		loc = time.Local
	}
	return &LaborValidator{shifts: shifts, rides: rides, violations: violations, loc: loc, now: time.Now}
}

func (v *LaborValidator) violation(
	s domain.Shift,
	sev domain.Severity,
	details domain.ViolationDetails,
	msg string,
) domain.LaborViolation {
	id := s.ID
	return domain.LaborViolation{
		DriverID:   s.DriverID,
		ShiftID:    &id,
		Type:       details.Kind(),
		Severity:   sev,
		Message:    msg,
		Details:    details,
		DetectedAt: v.now(),
	}
}

// EvaluateShift runs every check for one shift without storing anything.
// Checks whose inputs do not parse are skipped.
func (v *LaborValidator) EvaluateShift(ctx context.Context, s domain.Shift) (_ []domain.LaborViolation, err error) {
	defer obs.Time(ctx, "labor.EvaluateShift")(&err)

	if err := v.configured(); err != nil {
		return nil, err
	}

	out, err := v.shiftLocal(ctx, s)
	if err != nil {
		return nil, err
	}

	prev, err := v.previousShift(ctx, s)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if rv, ok := v.checkRest(*prev, s); ok {
			out = append(out, rv)
		}
	}

	weekStart := domain.ISOWeekStart(s.ShiftDate)
	week, err := v.shifts.ShiftsForDriver(ctx, s.DriverID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("evaluate shift %d: load week: %w", s.ID, err)
	}
	if !containsShift(week, s.ID) {
		week = append(week, s)
	}
	if wv, ok := v.checkWeek(s, weekStart, week); ok {
		out = append(out, wv)
	}

	return out, nil
}

// ValidateShift evaluates a stored shift and appends its violations.
func (v *LaborValidator) ValidateShift(ctx context.Context, shiftID int64) ([]domain.LaborViolation, error) {
	if obs.RequestID(ctx) == "" {
		ctx = obs.WithRequestID(ctx)
	}
	if err := v.configured(); err != nil {
		return nil, err
	}

	s, err := v.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("validate shift %d: %w", shiftID, err)
	}

	vs, err := v.EvaluateShift(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("validate shift %d: %w", shiftID, err)
	}

	if err := v.store(ctx, vs); err != nil {
		return nil, fmt.Errorf("validate shift %d: %w", shiftID, err)
	}

	obs.Logger(ctx).WithFields(logrus.Fields{"shift_id": shiftID, "violations": len(vs)}).Info("shift validated")
	return vs, nil
}

// ValidateWeek checks every shift of the ISO week containing anyDate, the
// rest before each of them (the first against the previous week) and the
// weekly total, then stores the violations and the weekly report.
func (v *LaborValidator) ValidateWeek(
	ctx context.Context,
	driverID int64,
	anyDate time.Time,
) (_ domain.WeeklyComplianceReport, err error) {
	if obs.RequestID(ctx) == "" {
		ctx = obs.WithRequestID(ctx)
	}
	defer obs.Time(ctx, "labor.ValidateWeek")(&err)

	if err := v.configured(); err != nil {
		return domain.WeeklyComplianceReport{}, err
	}

	weekStart := domain.ISOWeekStart(anyDate.In(v.loc))
	shifts, err := v.shifts.ShiftsForDriver(ctx, driverID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return domain.WeeklyComplianceReport{}, fmt.Errorf("validate week: load shifts: %w", err)
	}
	v.sortShifts(shifts)

	rep := domain.WeeklyComplianceReport{
		DriverID:   driverID,
		WeekStart:  weekStart,
		ShiftCount: len(shifts),
		Violations: []domain.LaborViolation{},
	}

	var lastEnd *time.Time
	for i, s := range shifts {
		local, err := v.shiftLocal(ctx, s)
		if err != nil {
			return domain.WeeklyComplianceReport{}, fmt.Errorf("validate week: %w", err)
		}
		rep.Violations = append(rep.Violations, local...)

		var prev *domain.Shift
		if i > 0 {
			prev = &shifts[i-1]
		} else if prev, err = v.previousShift(ctx, s); err != nil {
			return domain.WeeklyComplianceReport{}, fmt.Errorf("validate week: %w", err)
		}
		if prev != nil {
			if rv, ok := v.checkRest(*prev, s); ok {
				rep.Violations = append(rep.Violations, rv)
			}
		}

		if _, end, err := s.Interval(v.loc); err == nil && (lastEnd == nil || end.After(*lastEnd)) {
			lastEnd = &end
		}
	}

	rep.TotalHours = domain.Round2(v.totalHours(shifts))
	if len(shifts) > 0 {
		if wv, ok := v.checkWeek(shifts[len(shifts)-1], weekStart, shifts); ok {
			rep.Violations = append(rep.Violations, wv)
		}
	}

	rep.ComplianceRate = domain.ComplianceRate(rep.Violations, len(shifts))
	if lastEnd != nil {
		next := lastEnd.Add(domain.MinDailyRest)
		rep.NextAvailable = &next
	}

	if err := v.store(ctx, rep.Violations); err != nil {
		return domain.WeeklyComplianceReport{}, fmt.Errorf("validate week: %w", err)
	}
	if err := v.violations.SaveWeeklyReport(ctx, rep); err != nil {
		return domain.WeeklyComplianceReport{}, fmt.Errorf("validate week: %w", err)
	}

	obs.Logger(ctx).WithFields(logrus.Fields{
		"driver_id":       driverID,
		"week_start":      weekStart.Format(domain.DateLayout),
		"violations":      len(rep.Violations),
		"compliance_rate": rep.ComplianceRate,
	}).Info("week validated")

	return rep, nil
}

// ListOpen returns the unresolved violations of a driver.
func (v *LaborValidator) ListOpen(ctx context.Context, driverID int64) ([]domain.LaborViolation, error) {
	if v.violations == nil {
		return nil, errors.New("list violations: repository is nil")
	}
	vs, err := v.violations.OpenViolations(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list violations driver %d: %w", driverID, err)
	}
	return vs, nil
}

func (v *LaborValidator) configured() error {
	if v.shifts == nil || v.rides == nil || v.violations == nil {
		return errors.New("labor validator: repositories are not configured")
	}
	return nil
}

func (v *LaborValidator) store(ctx context.Context, vs []domain.LaborViolation) error {
	if len(vs) == 0 {
		return nil
	}
	ids, err := v.violations.AppendViolations(ctx, vs)
	if err != nil {
		return err
	}
	for i := range vs {
		if i < len(ids) {
			vs[i].ID = ids[i]
		}
	}
	return nil
}

// shiftLocal runs the checks that need only the shift and its rides.
func (v *LaborValidator) shiftLocal(ctx context.Context, s domain.Shift) ([]domain.LaborViolation, error) {
	var out []domain.LaborViolation

	start, end, ierr := s.Interval(v.loc)
	if ierr != nil {
		obs.Logger(ctx).WithError(ierr).Debug("shift times unparseable; skipping duration checks")
	}

	rides, err := v.rides.RidesForShift(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("shift %d: load rides: %w", s.ID, err)
	}
	gaps := rideGaps(rides)

	if ierr == nil {
		length := end.Sub(start)
		hours := length.Hours()

		if length > domain.MaxShiftDuration {
			limit := domain.MaxShiftDuration.Hours()
			out = append(out, v.violation(s, domain.SeverityHigh, domain.ShiftDurationDetails{
				ShiftHours:  domain.Round2(hours),
				MaxHours:    limit,
				ExcessHours: domain.Round2(hours - limit),
			}, fmt.Sprintf("shift lasts %.1f h, maximum %.0f h", hours, limit)))
		}

		if required := domain.RequiredBreakMinutes(length); required > 0 {
			actual, source := actualBreak(s, rides, gaps)
			if actual < required {
				out = append(out, v.violation(s, domain.SeverityHigh, domain.BreakDetails{
					ShiftHours:      domain.Round2(hours),
					RequiredMinutes: required,
					ActualMinutes:   domain.Round1(actual),
					DeficitMinutes:  domain.Round1(required - actual),
					Source:          source,
				}, fmt.Sprintf("%.0f min break for a %.1f h shift, %.0f min required", actual, hours, required)))
			}
		}
	}

	var short []float64
	for _, g := range gaps {
		if g.length > domain.ShortBreakLowerBound && g.length < domain.MinBreakInterval {
			short = append(short, domain.Round1(g.length.Minutes()))
		}
	}
	if len(short) > 0 {
		out = append(out, v.violation(s, domain.SeverityMedium, domain.ShortBreakDetails{
			GapMinutes:     short,
			MinimumMinutes: domain.MinBreakInterval.Minutes(),
		}, fmt.Sprintf("%d pause(s) shorter than %.0f min do not count as breaks", len(short), domain.MinBreakInterval.Minutes())))
	}

	if len(rides) >= 2 {
		for _, seg := range workSegments(firstPickup(rides), gaps) {
			worked := seg.end.Sub(seg.start)
			if worked <= domain.MaxContinuousWork {
				continue
			}
			out = append(out, v.violation(s, domain.SeverityHigh, domain.ContinuousWorkDetails{
				SegmentStart: seg.start,
				SegmentEnd:   seg.end,
				WorkedHours:  domain.Round2(worked.Hours()),
				MaxHours:     domain.MaxContinuousWork.Hours(),
			}, fmt.Sprintf("%.1f h worked without a break of at least %.0f min", worked.Hours(), domain.MinBreakInterval.Minutes())))
		}
	}

	return out, nil
}

// checkRest compares the end of prev with the start of cur.
func (v *LaborValidator) checkRest(prev, cur domain.Shift) (domain.LaborViolation, bool) {
	_, prevEnd, err := prev.Interval(v.loc)
	if err != nil {
		return domain.LaborViolation{}, false
	}
	curStart, _, err := cur.Interval(v.loc)
	if err != nil {
		return domain.LaborViolation{}, false
	}

	rest := curStart.Sub(prevEnd)
	if rest >= domain.MinDailyRest {
		return domain.LaborViolation{}, false
	}

	required := domain.MinDailyRest.Hours()
	return v.violation(cur, domain.SeverityHigh, domain.RestDetails{
		PreviousShiftID: prev.ID,
		PreviousEnd:     prevEnd,
		CurrentStart:    curStart,
		RestHours:       domain.Round2(rest.Hours()),
		RequiredHours:   required,
		DeficitHours:    domain.Round2(required - rest.Hours()),
	}, fmt.Sprintf("%.1f h rest since the previous shift, %.0f h required", rest.Hours(), required)), true
}

func (v *LaborValidator) checkWeek(s domain.Shift, weekStart time.Time, week []domain.Shift) (domain.LaborViolation, bool) {
	total := v.totalHours(week)
	limit := domain.MaxWeeklyWorkingTime.Hours()
	if total <= limit {
		return domain.LaborViolation{}, false
	}
	return v.violation(s, domain.SeverityHigh, domain.WeeklyHoursDetails{
		WeekStart:   weekStart.Format(domain.DateLayout),
		ShiftCount:  len(week),
		TotalHours:  domain.Round2(total),
		MaxHours:    limit,
		ExcessHours: domain.Round2(total - limit),
	}, fmt.Sprintf("%.1f h worked in the week of %s, maximum %.0f h", total, weekStart.Format(domain.DateLayout), limit)), true
}

func (v *LaborValidator) totalHours(shifts []domain.Shift) float64 {
	var total time.Duration
	for _, s := range shifts {
		if d, err := s.Duration(v.loc); err == nil {
			total += d
		}
	}
	return total.Hours()
}

// previousShift finds the latest other shift of the driver that starts
// before s.
func (v *LaborValidator) previousShift(ctx context.Context, s domain.Shift) (*domain.Shift, error) {
	curStart, _, err := s.Interval(v.loc)
	if err != nil {
		return nil, nil
	}

	day := domain.StartOfDay(s.ShiftDate)
	candidates, err := v.shifts.ShiftsForDriver(ctx, s.DriverID, day.AddDate(0, 0, -restLookback), day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("shift %d: load previous shifts: %w", s.ID, err)
	}

	var best *domain.Shift
	var bestStart time.Time
	for i := range candidates {
		c := candidates[i]
		if c.ID == s.ID {
			continue
		}
		start, _, err := c.Interval(v.loc)
		if err != nil || !start.Before(curStart) {
			continue
		}
		if best == nil || start.After(bestStart) {
			best, bestStart = &candidates[i], start
		}
	}
	return best, nil
}

func (v *LaborValidator) sortShifts(shifts []domain.Shift) {
	start := func(s domain.Shift) time.Time {
		t, _, err := s.Interval(v.loc)
		if err != nil {
			return s.ShiftDate
		}
		return t
	}
	sort.SliceStable(shifts, func(i, j int) bool { return start(shifts[i]).Before(start(shifts[j])) })
}

func containsShift(shifts []domain.Shift, id int64) bool {
	for _, s := range shifts {
		if s.ID == id {
			return true
		}
	}
	return false
}

// gap is the idle time between one dropoff and the next pickup.
type gap struct {
	from   time.Time
	to     time.Time
	length time.Duration
}

// rideGaps lists the gaps between consecutive rides. A ride without a dropoff
// leaves no gap after it.
func rideGaps(rides []domain.Ride) []gap {
	sorted := make([]domain.Ride, len(rides))
	copy(sorted, rides)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PickupTime.Before(sorted[j].PickupTime) })

	var out []gap
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].DropoffTime == nil {
			continue
		}
		from, to := *sorted[i].DropoffTime, sorted[i+1].PickupTime
		if !to.After(from) {
			continue
		}
		out = append(out, gap{from: from, to: to, length: to.Sub(from)})
	}
	return out
}

// actualBreak is the scheduled pause. Only a shift without a recorded pause
// falls back to the breaks its rides show.
func actualBreak(s domain.Shift, rides []domain.Ride, gaps []gap) (float64, string) {
	if s.PauseMinutes != nil {
		return *s.PauseMinutes, "scheduled"
	}
	if len(rides) < 2 {
		return 0, "scheduled"
	}

	var detected float64
	for _, g := range gaps {
		if g.length >= domain.MinBreakInterval {
			detected += g.length.Minutes()
		}
	}
	return detected, "rides"
}

type segment struct {
	start time.Time
	end   time.Time
}

// workSegments returns the stretches of driving that end in a lawful break.
// The first starts at the first pickup; each ends at the dropoff before a
// break of at least MinBreakInterval. Work after the last break is open and
// not returned.
func workSegments(first time.Time, gaps []gap) []segment {
	var out []segment
	cur := first
	for _, g := range gaps {
		if g.length < domain.MinBreakInterval {
			continue
		}
		if g.from.After(cur) {
			out = append(out, segment{start: cur, end: g.from})
		}
		if g.to.After(cur) {
			cur = g.to
		}
	}
	return out
}

func firstPickup(rides []domain.Ride) time.Time {
	first := rides[0].PickupTime
	for _, r := range rides[1:] {
		if r.PickupTime.Before(first) {
			first = r.PickupTime
		}
	}
	return first
}

package domain

import (
	"fmt"
	"time"
)

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "Scheduled"
	ShiftActive    ShiftStatus = "Active"
	ShiftCompleted ShiftStatus = "Completed"
	ShiftCancelled ShiftStatus = "Cancelled"
)

// Shift is a driver's work period on one civil date. Start and end keep the
// stored text because legacy rows carry either a clock time or a full timestamp.
type Shift struct {
	ID           int64
	CompanyID    int64
	DriverID     int64
	ShiftDate    time.Time
	StartTime    string
	EndTime      string
	PauseMinutes *float64
	Status       ShiftStatus
}

// Interval parses start and end. An end earlier than the start is read as
// belonging to the following day.
func (s Shift) Interval(loc *time.Location) (start, end time.Time, err error) {
	start, err = ParseTimeOfDay("start_time", s.StartTime, s.ShiftDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift %d: %w", s.ID, err)
	}

	end, err = ParseTimeOfDay("end_time", s.EndTime, s.ShiftDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift %d: %w", s.ID, err)
	}

	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}

	return start, end, nil
}

func (s Shift) Duration(loc *time.Location) (time.Duration, error) {
	start, end, err := s.Interval(loc)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the storage form of calendar days.
	DateLayout = "2006-01-02"
	// TimestampLayout is the storage form of local civil timestamps.
	TimestampLayout = "2006-01-02 15:04:05"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ErrUnparseableTime is wrapped by every TimeParseError.
var ErrUnparseableTime = errors.New("unparseable time")

// TimeParseError is the tagged result of a time field that matches neither a
// bare clock time nor a full ISO timestamp.
type TimeParseError struct {
	Field string
	Value string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("%s: %q is neither HH:MM[:SS] nor an ISO timestamp", e.Field, e.Value)
}

func (e *TimeParseError) Unwrap() error { return ErrUnparseableTime }

// IsTimeParseError reports whether err carries a TimeParseError.
func IsTimeParseError(err error) bool {
	var pe *TimeParseError
	return errors.As(err, &pe)
}

// ParseTimeOfDay resolves a stored time field against day. The field may be a
// bare "HH:MM" or "HH:MM:SS", or a full ISO timestamp (in which case day is
// ignored). Timestamps without an offset are read in loc.
func ParseTimeOfDay(field, value string, day time.Time, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)

	if m := clockPattern.FindStringSubmatch(value); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		sec := 0
		if m[3] != "" {
			sec, _ = strconv.Atoi(m[3])
		}
		if h > 23 || mi > 59 || sec > 59 {
			return time.Time{}, &TimeParseError{Field: field, Value: value}
		}
		y, mo, d := day.Date()
		return time.Date(y, mo, d, h, mi, sec, 0, loc), nil
	}

	return ParseTimestamp(field, value, loc)
}

// ParseTimestamp accepts only full ISO timestamps.
func ParseTimestamp(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &TimeParseError{Field: field, Value: value}
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}

	return time.Time{}, &TimeParseError{Field: field, Value: value}
}

// ParseDate accepts "YYYY-MM-DD" or any ISO timestamp and returns local midnight.
func ParseDate(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, nil
	}

	t, err := ParseTimestamp(field, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// StartOfDay returns local midnight of t's civil date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ISOWeekStart returns local midnight of the Monday of t's ISO week.
func ISOWeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// FormatTimestamp renders t in the storage form, in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

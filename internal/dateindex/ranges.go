package dateindex

import (
	"errors"
	"fmt"
	"time"
)

// Relative names a calendar-aligned range around "now".
type Relative string

const (
	Today     Relative = "today"
	Yesterday Relative = "yesterday"
	ThisWeek  Relative = "this_week"
	LastWeek  Relative = "last_week"
	ThisMonth Relative = "this_month"
	LastMonth Relative = "last_month"
	ThisYear  Relative = "this_year"
	LastYear  Relative = "last_year"
)

var (
	// ErrInvalidRange is returned for a range whose start is after its end.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrUnknownRelative is returned for an unrecognised relative keyword.
	ErrUnknownRelative = errors.New("unknown relative date")
)

// Range is an inclusive time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Filter selects documents by date: either an explicit Range or a Relative keyword.
type Filter struct {
	Range    *Range
	Relative Relative
}

// Resolve turns the filter into a concrete range. Relative keywords are
// evaluated in loc at now; weeks start on Sunday; each range runs from
// 00:00:00.000 on its first day to 23:59:59.999 on its last.
func (f Filter) Resolve(now time.Time, loc *time.Location) (Range, error) {
	if f.Range != nil {
		if f.Range.Start.After(f.Range.End) {
			return Range{}, fmt.Errorf("%w: %s after %s", ErrInvalidRange, f.Range.Start.Format(time.RFC3339), f.Range.End.Format(time.RFC3339))
		}
		return *f.Range, nil
	}
	return RelativeRange(f.Relative, now, loc)
}

// RelativeRange computes the calendar range named by rel.
func RelativeRange(rel Relative, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	today := startOfDay(now)

	switch rel {
	case Today:
		return dayRange(today, today), nil
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return dayRange(y, y), nil
	case ThisWeek, LastWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		if rel == LastWeek {
			start = start.AddDate(0, 0, -7)
		}
		return dayRange(start, start.AddDate(0, 0, 6)), nil
	case ThisMonth, LastMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		if rel == LastMonth {
			start = start.AddDate(0, -1, 0)
		}
		return dayRange(start, start.AddDate(0, 1, -1)), nil
	case ThisYear, LastYear:
		year := now.Year()
		if rel == LastYear {
			year--
		}
		return dayRange(time.Date(year, time.January, 1, 0, 0, 0, 0, loc), time.Date(year, time.December, 31, 0, 0, 0, 0, loc)), nil
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownRelative, rel)
	}
}

// DayRange spans whole days from first through last.
func DayRange(first, last time.Time) Range {
	return dayRange(startOfDay(first), startOfDay(last))
}

func dayRange(first, last time.Time) Range {
	return Range{Start: first, End: endOfDay(last)}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

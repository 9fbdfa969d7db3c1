package painlog

import (
	"errors"
	"strings"
	"time"
)

type View string

const (
	ViewToday  View = "today"
	ViewWeek   View = "week"
	ViewMonth  View = "month"
	ViewCustom View = "custom"
)

const (
	weekDays  = 7
	monthDays = 30
)

var (
	ErrInvalidView  = errors.New("view must be one of: today, week, month, custom")
	ErrInvalidRange = errors.New("custom range requires start <= end")
)

// DateRange is inclusive on both ends. Start is local midnight of the first
// day and End the last nanosecond of the last day, both in Location.
type DateRange struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

func ParseView(input string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(input))) {
	case "", ViewWeek:
		return ViewWeek, nil
	case ViewToday:
		return ViewToday, nil
	case ViewMonth:
		return ViewMonth, nil
	case ViewCustom:
		return ViewCustom, nil
	}
	return "", ErrInvalidView
}

// ResolveRange turns a view selection into concrete bounds. start and end are
// only read for ViewCustom and are interpreted as calendar dates in loc.
func ResolveRange(view View, now time.Time, loc *time.Location, start, end time.Time) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := StartOfDay(now, loc)
	switch view {
	case ViewToday:
		return dayRange(today, today, loc), nil
	case ViewWeek:
		return dayRange(today.AddDate(0, 0, -(weekDays - 1)), today, loc), nil
	case ViewMonth:
		return dayRange(today.AddDate(0, 0, -(monthDays - 1)), today, loc), nil
	case ViewCustom:
		if start.IsZero() || end.IsZero() {
			return DateRange{}, ErrInvalidRange
		}
		first := StartOfDay(start, loc)
		last := StartOfDay(end, loc)
		if last.Before(first) {
			return DateRange{}, ErrInvalidRange
		}
		return dayRange(first, last, loc), nil
	}
	return DateRange{}, ErrInvalidView
}

// SingleDay reports whether the range covers exactly one calendar day.
func (r DateRange) SingleDay() bool {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(r.Start, loc) == DayKey(r.End, loc)
}

func (r DateRange) Days() int {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	days := 0
	for day := StartOfDay(r.Start, loc); !day.After(r.End); day = day.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func dayRange(first, last time.Time, loc *time.Location) DateRange {
	return DateRange{
		Start:    first,
		End:      last.AddDate(0, 0, 1).Add(-time.Nanosecond),
		Location: loc,
	}
}

// Package calendar converts instants into calendar days, weeks, and months
// in a fixed location. Windows are inclusive at both ends and end at
// 23:59:59.999 of their last day.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a calendar day.
const DateLayout = "2006-01-02"

// DateTimeLayout is the local timestamp format accepted from clients.
const DateTimeLayout = "2006-01-02 15:04:05"

// TimeLayout is the storage format of a time of day.
const TimeLayout = "15:04:05"

// Clock returns the current instant. Services take one so tests can pin
// day boundaries.
type Clock func() time.Time

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Window is an inclusive [Start, End] range of instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339Nano), w.End.Format(time.RFC3339Nano))
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	return next.Add(-time.Millisecond)
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// Day is the window covering the calendar day of d.
func Day(d time.Time) Window {
	return Window{Start: StartOfDay(d), End: EndOfDay(d)}
}

// Week is the seven-day window starting on weekStart's day.
func Week(weekStart time.Time) Window {
	return Window{Start: StartOfDay(weekStart), End: EndOfDay(AddDays(weekStart, 6))}
}

// Month is the window from monthStart's day up to, but not including, the
// same day one month later. That day is clamped to the end of the next
// month, so a window starting on Jan 31 stops before Feb 28.
func Month(monthStart time.Time) Window {
	y, m, d := monthStart.Date()
	loc := monthStart.Location()
	last := time.Date(y, m+2, 0, 0, 0, 0, 0, loc).Day()
	next := time.Date(y, m+1, min(d, last), 0, 0, 0, 0, loc)
	return Window{Start: StartOfDay(monthStart), End: EndOfDay(AddDays(next, -1))}
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(AddDays(t, -offset))
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DateKey formats t's calendar day in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD day as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp accepts RFC 3339 or "2006-01-02 15:04:05" interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

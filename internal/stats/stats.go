// Package stats rolls focus sessions up into daily, weekly, and monthly
// totals and reports how many days in a row the user has focused.
//
// A session belongs to the calendar day its start time falls on in the
// configured location; its end time is never consulted.
package stats

import (
	"sort"
	"time"

	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/model"
)

// SumMinutes adds up the durations of sessions starting inside w.
func SumMinutes(sessions []model.FocusSession, w calendar.Window) int {
	total := 0
	for _, s := range sessions {
		if w.Contains(s.StartTime) {
			total += s.DurationMinutes
		}
	}
	return total
}

// FocusDates returns the distinct calendar days, in loc, on which any
// session started.
func FocusDates(sessions []model.FocusSession, loc *time.Location) map[string]struct{} {
	dates := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		dates[calendar.DateKey(s.StartTime.In(loc))] = struct{}{}
	}
	return dates
}

// SortedDates lists a date set in ascending order.
func SortedDates(dates map[string]struct{}) []string {
	out := make([]string, 0, len(dates))
	for d := range dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ContinuousDays counts consecutive focus days ending today. A day with no
// session breaks the run, so without a session today the result is 0.
func ContinuousDays(dates map[string]struct{}, today time.Time) int {
	n := 0
	for d := today; ; d = calendar.AddDays(d, -1) {
		if _, ok := dates[calendar.DateKey(d)]; !ok {
			return n
		}
		n++
	}
}

// Build computes a report from the full session history as of now.
// currentStreak comes from the check-in history and is copied through.
func Build(sessions []model.FocusSession, now time.Time, currentStreak int) model.Statistics {
	dates := FocusDates(sessions, now.Location())

	total := 0
	for _, s := range sessions {
		total += s.DurationMinutes
	}

	return model.Statistics{
		TotalFocusMinutes:   total,
		TotalFocusCount:     len(sessions),
		ContinuousFocusDays: ContinuousDays(dates, now),
		TotalFocusDays:      len(dates),
		TodayFocusMinutes:   SumMinutes(sessions, calendar.Day(now)),
		WeeklyFocusMinutes:  SumMinutes(sessions, calendar.Week(calendar.WeekStart(now))),
		MonthlyFocusMinutes: SumMinutes(sessions, calendar.Month(calendar.MonthStart(now))),
		CurrentStreak:       currentStreak,
	}
}

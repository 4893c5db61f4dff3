package model

import "time"

// CheckIn is one day's attendance. StreakCount is fixed when the row is
// written and never recomputed.
type CheckIn struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Date        string    `json:"date" db:"check_date"`
	Time        string    `json:"time" db:"check_time"`
	StreakCount int       `json:"streak_count" db:"streak_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FocusSession is one completed focus interval. DurationMinutes is what the
// client reported and need not equal EndTime-StartTime.
type FocusSession struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	EndTime         time.Time `json:"end_time" db:"end_time"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	TaskDescription string    `json:"task_description" db:"task_description"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Statistics is a point-in-time rollup of a user's focus history.
type Statistics struct {
	TotalFocusMinutes   int `json:"total_focus_time"`
	TotalFocusCount     int `json:"total_focus_count"`
	ContinuousFocusDays int `json:"continuous_days"`
	TotalFocusDays      int `json:"total_days"`
	TodayFocusMinutes   int `json:"today_focus_time"`
	WeeklyFocusMinutes  int `json:"weekly_focus_time"`
	MonthlyFocusMinutes int `json:"monthly_focus_time"`
	CurrentStreak       int `json:"current_streak"`
}

package model

import "time"

// TodoItem is a stand-alone to-do owned by one user.
type TodoItem struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Type            string     `json:"type" db:"type"`
	DurationMinutes int        `json:"duration_minutes" db:"duration_minutes"`
	IsCompleted     bool       `json:"is_completed" db:"is_completed"`
	IsImportant     bool       `json:"is_important" db:"is_important"`
	IsUrgent        bool       `json:"is_urgent" db:"is_urgent"`
	FocusMinutes    *int       `json:"focus_minutes" db:"focus_minutes"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TodoFilter narrows a to-do listing. Zero values mean "any".
type TodoFilter struct {
	Completed     *bool
	Type          string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

package model

import "time"

// NoCurrentIndex marks a collection whose sequence is not running.
const NoCurrentIndex = -1

// DefaultItemMinutes is the planned duration of an item created without one.
const DefaultItemMinutes = 25

// TodoCollection is a named, ordered group of sub-tasks that can be walked
// through one step at a time. Version increases on every write to the
// collection or its items.
type TodoCollection struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	SequenceActive bool       `json:"sequence_active" db:"sequence_active"`
	CurrentIndex   int        `json:"current_index" db:"current_index"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	Version        int64      `json:"version" db:"version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

type TodoCollectionItem struct {
	ID                 int64      `json:"id" db:"id"`
	CollectionID       int64      `json:"collection_id" db:"collection_id"`
	Title              string     `json:"title" db:"title"`
	Description        string     `json:"description" db:"description"`
	DurationMinutes    int        `json:"duration_minutes" db:"duration_minutes"`
	IsCompleted        bool       `json:"is_completed" db:"is_completed"`
	OrderIndex         int        `json:"order_index" db:"order_index"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ActualFocusMinutes *int       `json:"actual_focus_minutes" db:"actual_focus_minutes"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// CollectionWithItems is a collection together with its items ordered by
// OrderIndex.
type CollectionWithItems struct {
	TodoCollection
	Items []TodoCollectionItem `json:"items"`
}

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/cadence/internal/model"
)

type TodoStore struct {
	db Querier
}

func NewTodoStore(db Querier) *TodoStore {
	return &TodoStore{db: db}
}

var todoCols = []string{
	"id", "user_id", "title", "description", "type", "duration_minutes",
	"is_completed", "is_important", "is_urgent", "focus_minutes",
	"completed_at", "created_at", "updated_at",
}

func (s *TodoStore) Create(ctx context.Context, t model.TodoItem, now time.Time) (*model.TodoItem, error) {
	now = now.UTC()
	id, err := insert(ctx, s.db, builder.Insert("todo_items").
		Columns("user_id", "title", "description", "type", "duration_minutes",
			"is_important", "is_urgent", "created_at", "updated_at").
		Values(t.UserID, t.Title, t.Description, t.Type, t.DurationMinutes,
			t.IsImportant, t.IsUrgent, now, now))
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TodoStore) GetByID(ctx context.Context, id int64) (*model.TodoItem, error) {
	t, err := getOne[model.TodoItem](ctx, s.db, builder.Select(todoCols...).From("todo_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// List returns the user's to-dos, newest first, narrowed by f.
func (s *TodoStore) List(ctx context.Context, userID int64, f model.TodoFilter) ([]model.TodoItem, error) {
	q := builder.Select(todoCols...).From("todo_items").Where(sq.Eq{"user_id": userID})
	if f.Completed != nil {
		q = q.Where(sq.Eq{"is_completed": *f.Completed})
	}
	if f.Type != "" {
		q = q.Where(sq.Eq{"type": f.Type})
	}
	if f.CreatedAfter != nil {
		q = q.Where(sq.GtOrEq{"created_at": f.CreatedAfter.UTC()})
	}
	if f.CreatedBefore != nil {
		q = q.Where(sq.LtOrEq{"created_at": f.CreatedBefore.UTC()})
	}

	todos, err := getMany[model.TodoItem](ctx, s.db, q.OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Update overwrites the editable fields of t.
func (s *TodoStore) Update(ctx context.Context, t model.TodoItem, now time.Time) (*model.TodoItem, error) {
	_, err := exec(ctx, s.db, builder.Update("todo_items").
		Set("title", t.Title).
		Set("description", t.Description).
		Set("type", t.Type).
		Set("duration_minutes", t.DurationMinutes).
		Set("is_important", t.IsImportant).
		Set("is_urgent", t.IsUrgent).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": t.ID}))
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return s.GetByID(ctx, t.ID)
}

// SetCompletion stores the completion flag and its timestamp together.
func (s *TodoStore) SetCompletion(ctx context.Context, id int64, completed bool, completedAt *time.Time, now time.Time) error {
	_, err := exec(ctx, s.db, builder.Update("todo_items").
		Set("is_completed", completed).
		Set("completed_at", utcPtr(completedAt)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set todo completion: %w", err)
	}
	return nil
}

func (s *TodoStore) SetFocusMinutes(ctx context.Context, id int64, minutes int, now time.Time) error {
	_, err := exec(ctx, s.db, builder.Update("todo_items").
		Set("focus_minutes", minutes).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set todo focus time: %w", err)
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, id int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("todo_items").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Package todo manages stand-alone to-do items.
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

// Input carries the editable fields of a to-do.
type Input struct {
	Title           string
	Description     string
	Type            string
	DurationMinutes int
	IsImportant     bool
	IsUrgent        bool
}

func (in *Input) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Type = strings.TrimSpace(in.Type)
	if in.Title == "" {
		return apperr.InvalidArgument("title is required")
	}
	if in.Type == "" {
		return apperr.InvalidArgument("type is required")
	}
	if in.DurationMinutes < 1 {
		return apperr.InvalidArgument("duration must be at least one minute")
	}
	return nil
}

type Service struct {
	db     *sqlx.DB
	clock  calendar.Clock
	logger *slog.Logger
}

func NewService(db *sqlx.DB, clock calendar.Clock, logger *slog.Logger) *Service {
	return &Service{db: db, clock: clock, logger: logger.With("component", "todo")}
}

func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (*model.TodoItem, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	t, err := store.NewTodoStore(s.db).Create(ctx, model.TodoItem{
		UserID:          ownerID,
		Title:           in.Title,
		Description:     in.Description,
		Type:            in.Type,
		DurationMinutes: in.DurationMinutes,
		IsImportant:     in.IsImportant,
		IsUrgent:        in.IsUrgent,
	}, s.clock())
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*model.TodoItem, error) {
	t, err := owned(ctx, store.NewTodoStore(s.db), ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}
	return t, nil
}

// List returns the owner's to-dos, newest first.
func (s *Service) List(ctx context.Context, ownerID int64, f model.TodoFilter) ([]model.TodoItem, error) {
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return nil, apperr.InvalidArgument("from is after to")
	}
	todos, err := store.NewTodoStore(s.db).List(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []model.TodoItem{}
	}
	return todos, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id int64, in Input) (*model.TodoItem, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var out *model.TodoItem
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ts := store.NewTodoStore(tx)
		t, err := owned(ctx, ts, ownerID, id)
		if err != nil {
			return err
		}
		t.Title = in.Title
		t.Description = in.Description
		t.Type = in.Type
		t.DurationMinutes = in.DurationMinutes
		t.IsImportant = in.IsImportant
		t.IsUrgent = in.IsUrgent
		out, err = ts.Update(ctx, *t, s.clock())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}
	return out, nil
}

// Toggle flips completion, stamping or clearing CompletedAt.
func (s *Service) Toggle(ctx context.Context, ownerID, id int64) (*model.TodoItem, error) {
	now := s.clock()
	var out *model.TodoItem
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ts := store.NewTodoStore(tx)
		t, err := owned(ctx, ts, ownerID, id)
		if err != nil {
			return err
		}
		completed := !t.IsCompleted
		var completedAt *time.Time
		if completed {
			completedAt = &now
		}
		if err := ts.SetCompletion(ctx, id, completed, completedAt, now); err != nil {
			return err
		}
		out, err = ts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("toggle todo %d: %w", id, err)
	}
	return out, nil
}

// SetFocusTime records the focus minutes spent on a to-do.
func (s *Service) SetFocusTime(ctx context.Context, ownerID, id int64, minutes int) (*model.TodoItem, error) {
	if minutes < 0 {
		return nil, apperr.InvalidArgument("focus time must not be negative")
	}

	var out *model.TodoItem
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ts := store.NewTodoStore(tx)
		if _, err := owned(ctx, ts, ownerID, id); err != nil {
			return err
		}
		if err := ts.SetFocusMinutes(ctx, id, minutes, s.clock()); err != nil {
			return err
		}
		var err error
		out, err = ts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("set focus time on todo %d: %w", id, err)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ts := store.NewTodoStore(tx)
		if _, err := owned(ctx, ts, ownerID, id); err != nil {
			return err
		}
		return ts.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	s.logger.Debug("todo deleted", "todo_id", id, "user_id", ownerID)
	return nil
}

func owned(ctx context.Context, ts *store.TodoStore, ownerID, id int64) (*model.TodoItem, error) {
	t, err := ts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	if t.UserID != ownerID {
		return nil, apperr.ErrForbidden
	}
	return t, nil
}

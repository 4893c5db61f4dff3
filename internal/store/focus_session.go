package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/cadence/internal/model"
)

type FocusSessionStore struct {
	db Querier
}

func NewFocusSessionStore(db Querier) *FocusSessionStore {
	return &FocusSessionStore{db: db}
}

var focusSessionCols = []string{
	"id", "user_id", "start_time", "end_time", "duration_minutes", "task_description", "created_at",
}

func (s *FocusSessionStore) Create(ctx context.Context, fs model.FocusSession, now time.Time) (*model.FocusSession, error) {
	id, err := insert(ctx, s.db, builder.Insert("focus_sessions").
		Columns("user_id", "start_time", "end_time", "duration_minutes", "task_description", "created_at").
		Values(fs.UserID, fs.StartTime.UTC(), fs.EndTime.UTC(), fs.DurationMinutes, fs.TaskDescription, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("insert focus session: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FocusSessionStore) GetByID(ctx context.Context, id int64) (*model.FocusSession, error) {
	fs, err := getOne[model.FocusSession](ctx, s.db, builder.Select(focusSessionCols...).From("focus_sessions").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get focus session: %w", err)
	}
	return fs, nil
}

// ListByUser returns every session of the user, most recent start first.
func (s *FocusSessionStore) ListByUser(ctx context.Context, userID int64) ([]model.FocusSession, error) {
	out, err := getMany[model.FocusSession](ctx, s.db, builder.Select(focusSessionCols...).From("focus_sessions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("start_time DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list focus sessions: %w", err)
	}
	return out, nil
}

// ListByUserAndRange returns sessions whose start time lies in [start, end],
// both bounds inclusive, earliest first.
func (s *FocusSessionStore) ListByUserAndRange(ctx context.Context, userID int64, start, end time.Time) ([]model.FocusSession, error) {
	out, err := getMany[model.FocusSession](ctx, s.db, builder.Select(focusSessionCols...).From("focus_sessions").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"start_time": start.UTC()}).
		Where(sq.LtOrEq{"start_time": end.UTC()}).
		OrderBy("start_time ASC", "id ASC"))
	if err != nil {
		return nil, fmt.Errorf("list focus sessions in range: %w", err)
	}
	return out, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/cadence/internal/model"
)

type CheckInStore struct {
	db Querier
}

func NewCheckInStore(db Querier) *CheckInStore {
	return &CheckInStore{db: db}
}

var checkInCols = []string{"id", "user_id", "check_date", "check_time", "streak_count", "created_at"}

// Create records a check-in. A second check-in for the same user and date
// fails with apperr.ErrAlreadyExists.
func (s *CheckInStore) Create(ctx context.Context, c model.CheckIn, now time.Time) (*model.CheckIn, error) {
	id, err := insert(ctx, s.db, builder.Insert("check_ins").
		Columns("user_id", "check_date", "check_time", "streak_count", "created_at").
		Values(c.UserID, c.Date, c.Time, c.StreakCount, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("insert check-in: %w", err)
	}
	return getOneCheckIn(ctx, s.db, sq.Eq{"id": id})
}

// GetByUserAndDate looks up the check-in for a calendar date in
// "2006-01-02" form.
func (s *CheckInStore) GetByUserAndDate(ctx context.Context, userID int64, date string) (*model.CheckIn, error) {
	return getOneCheckIn(ctx, s.db, sq.Eq{"user_id": userID, "check_date": date})
}

// MaxStreak is the highest streak count the user ever reached, 0 if they
// never checked in.
func (s *CheckInStore) MaxStreak(ctx context.Context, userID int64) (int, error) {
	n, err := getInt(ctx, s.db, builder.Select("COALESCE(MAX(streak_count), 0)").
		From("check_ins").
		Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return 0, fmt.Errorf("max streak: %w", err)
	}
	return n, nil
}

// ListByUserAndDateRange returns check-ins with from <= date <= to, oldest
// first. Empty bounds are open.
func (s *CheckInStore) ListByUserAndDateRange(ctx context.Context, userID int64, from, to string) ([]model.CheckIn, error) {
	q := builder.Select(checkInCols...).From("check_ins").Where(sq.Eq{"user_id": userID})
	if from != "" {
		q = q.Where(sq.GtOrEq{"check_date": from})
	}
	if to != "" {
		q = q.Where(sq.LtOrEq{"check_date": to})
	}
	cs, err := getMany[model.CheckIn](ctx, s.db, q.OrderBy("check_date ASC"))
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	return cs, nil
}

func getOneCheckIn(ctx context.Context, q Querier, where sq.Eq) (*model.CheckIn, error) {
	c, err := getOne[model.CheckIn](ctx, q, builder.Select(checkInCols...).From("check_ins").Where(where))
	if err != nil {
		return nil, fmt.Errorf("get check-in: %w", err)
	}
	return c, nil
}

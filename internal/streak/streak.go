// Package streak records daily check-ins and the run of consecutive days
// behind each one.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/metrics"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

// Next is the streak count for a check-in made the day after yesterday.
// A nil yesterday restarts the run at 1.
func Next(yesterday *model.CheckIn) int {
	if yesterday == nil {
		return 1
	}
	return yesterday.StreakCount + 1
}

// Service computes streaks in the calendar of loc.
type Service struct {
	db     *sqlx.DB
	clock  calendar.Clock
	loc    *time.Location
	logger *slog.Logger
}

func NewService(db *sqlx.DB, clock calendar.Clock, loc *time.Location, logger *slog.Logger) *Service {
	return &Service{db: db, clock: clock, loc: loc, logger: logger.With("component", "streak")}
}

// CheckIn records today's check-in. A second check-in on the same day
// fails with apperr.ErrAlreadyExists.
func (s *Service) CheckIn(ctx context.Context, ownerID int64) (*model.CheckIn, error) {
	now := s.clock().In(s.loc)
	today := calendar.DateKey(now)
	yesterday := calendar.DateKey(calendar.AddDays(now, -1))

	var out *model.CheckIn
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCheckInStore(tx)

		existing, err := cs.GetByUserAndDate(ctx, ownerID, today)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("check-in for %s: %w", today, apperr.ErrAlreadyExists)
		}

		prev, err := cs.GetByUserAndDate(ctx, ownerID, yesterday)
		if err != nil {
			return err
		}

		out, err = cs.Create(ctx, model.CheckIn{
			UserID:      ownerID,
			Date:        today,
			Time:        now.Format(calendar.TimeLayout),
			StreakCount: Next(prev),
		}, now)
		return err
	})
	metrics.CheckIns.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("check in user %d: %w", ownerID, err)
	}

	s.logger.Info("checked in", "user_id", ownerID, "date", today, "streak", out.StreakCount)
	return out, nil
}

// CurrentStreak is the longest streak the owner has ever reached. It does
// not drop back after a missed day; 0 means no check-ins at all.
func (s *Service) CurrentStreak(ctx context.Context, ownerID int64) (int, error) {
	n, err := store.NewCheckInStore(s.db).MaxStreak(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("current streak: %w", err)
	}
	return n, nil
}

// HasCheckedInToday reports whether a check-in exists for today's date.
func (s *Service) HasCheckedInToday(ctx context.Context, ownerID int64) (bool, error) {
	today := calendar.DateKey(s.clock().In(s.loc))
	c, err := store.NewCheckInStore(s.db).GetByUserAndDate(ctx, ownerID, today)
	if err != nil {
		return false, fmt.Errorf("has checked in today: %w", err)
	}
	return c != nil, nil
}

// History lists check-ins between two "2006-01-02" dates, both inclusive.
// An empty bound is open.
func (s *Service) History(ctx context.Context, ownerID int64, from, to string) ([]model.CheckIn, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := calendar.ParseDate(d, s.loc); err != nil {
			return nil, apperr.InvalidArgument(err.Error())
		}
	}
	if from != "" && to != "" && from > to {
		return nil, apperr.InvalidArgument("from is after to")
	}

	cs, err := store.NewCheckInStore(s.db).ListByUserAndDateRange(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("check-in history: %w", err)
	}
	if cs == nil {
		cs = []model.CheckIn{}
	}
	return cs, nil
}

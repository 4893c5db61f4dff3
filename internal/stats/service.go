package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/metrics"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

// StreakReader supplies the check-in streak shown in reports.
type StreakReader interface {
	CurrentStreak(ctx context.Context, ownerID int64) (int, error)
}

// NewSession is a finished focus interval reported by a client.
type NewSession struct {
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	TaskDescription string
}

// Service records focus sessions and aggregates them in the calendar of
// loc. Day arguments may carry any time of day; only their date in loc is
// used.
type Service struct {
	db      *sqlx.DB
	streaks StreakReader
	clock   calendar.Clock
	loc     *time.Location
	logger  *slog.Logger
}

func NewService(db *sqlx.DB, streaks StreakReader, clock calendar.Clock, loc *time.Location, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		streaks: streaks,
		clock:   clock,
		loc:     loc,
		logger:  logger.With("component", "stats"),
	}
}

// Location is the calendar used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// CreateSession records a focus session.
func (s *Service) CreateSession(ctx context.Context, ownerID int64, ns NewSession) (*model.FocusSession, error) {
	if ns.StartTime.IsZero() || ns.EndTime.IsZero() {
		return nil, apperr.InvalidArgument("start and end time are required")
	}
	if ns.EndTime.Before(ns.StartTime) {
		return nil, apperr.InvalidArgument("end time is before start time")
	}
	if ns.DurationMinutes < 0 {
		return nil, apperr.InvalidArgument("duration must not be negative")
	}

	fs, err := store.NewFocusSessionStore(s.db).Create(ctx, model.FocusSession{
		UserID:          ownerID,
		StartTime:       ns.StartTime,
		EndTime:         ns.EndTime,
		DurationMinutes: ns.DurationMinutes,
		TaskDescription: strings.TrimSpace(ns.TaskDescription),
	}, s.clock())
	if err != nil {
		return nil, fmt.Errorf("create focus session: %w", err)
	}

	metrics.FocusMinutes.Add(float64(fs.DurationMinutes))
	s.logger.Info("focus session recorded", "user_id", ownerID, "session_id", fs.ID, "minutes", fs.DurationMinutes)
	return fs, nil
}

// ListAll returns every session of the owner, newest first.
func (s *Service) ListAll(ctx context.Context, ownerID int64) ([]model.FocusSession, error) {
	out, err := store.NewFocusSessionStore(s.db).ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return nonNil(out), nil
}

// ListDaily returns the sessions starting on day.
func (s *Service) ListDaily(ctx context.Context, ownerID int64, day time.Time) ([]model.FocusSession, error) {
	return s.list(ctx, ownerID, calendar.Day(day.In(s.loc)))
}

// ListWeekly returns the sessions starting in the seven days from weekStart.
func (s *Service) ListWeekly(ctx context.Context, ownerID int64, weekStart time.Time) ([]model.FocusSession, error) {
	return s.list(ctx, ownerID, calendar.Week(weekStart.In(s.loc)))
}

// ListMonthly returns the sessions starting in the month from monthStart.
func (s *Service) ListMonthly(ctx context.Context, ownerID int64, monthStart time.Time) ([]model.FocusSession, error) {
	return s.list(ctx, ownerID, calendar.Month(monthStart.In(s.loc)))
}

// DailyTotal sums the minutes of sessions starting on day.
func (s *Service) DailyTotal(ctx context.Context, ownerID int64, day time.Time) (int, error) {
	return s.total(ctx, ownerID, calendar.Day(day.In(s.loc)))
}

// WeeklyTotal sums the minutes of the seven days starting at weekStart.
func (s *Service) WeeklyTotal(ctx context.Context, ownerID int64, weekStart time.Time) (int, error) {
	return s.total(ctx, ownerID, calendar.Week(weekStart.In(s.loc)))
}

// MonthlyTotal sums the minutes of the calendar month starting at
// monthStart.
func (s *Service) MonthlyTotal(ctx context.Context, ownerID int64, monthStart time.Time) (int, error) {
	return s.total(ctx, ownerID, calendar.Month(monthStart.In(s.loc)))
}

// ContinuousFocusDays counts consecutive focus days ending today.
func (s *Service) ContinuousFocusDays(ctx context.Context, ownerID int64) (int, error) {
	sessions, err := s.history(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return ContinuousDays(FocusDates(sessions, s.loc), s.Now()), nil
}

// TotalFocusDays counts the distinct days with at least one session.
func (s *Service) TotalFocusDays(ctx context.Context, ownerID int64) (int, error) {
	sessions, err := s.history(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return len(FocusDates(sessions, s.loc)), nil
}

// BuildReport recomputes the owner's statistics from scratch.
func (s *Service) BuildReport(ctx context.Context, ownerID int64) (*model.Statistics, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.ReportDuration, start)

	now := s.Now()
	sessions, err := s.history(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	streak, err := s.streaks.CurrentStreak(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	report := Build(sessions, now, streak)
	s.logger.Debug("report built", "user_id", ownerID, "sessions", len(sessions), "elapsed", time.Since(start))
	return &report, nil
}

// Now is the current instant in the service location.
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) history(ctx context.Context, ownerID int64) ([]model.FocusSession, error) {
	sessions, err := store.NewFocusSessionStore(s.db).ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load focus history: %w", err)
	}
	return sessions, nil
}

func (s *Service) list(ctx context.Context, ownerID int64, w calendar.Window) ([]model.FocusSession, error) {
	out, err := store.NewFocusSessionStore(s.db).ListByUserAndRange(ctx, ownerID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list sessions in %s: %w", w, err)
	}
	return nonNil(out), nil
}

func (s *Service) total(ctx context.Context, ownerID int64, w calendar.Window) (int, error) {
	sessions, err := s.list(ctx, ownerID, w)
	if err != nil {
		return 0, err
	}
	return SumMinutes(sessions, w), nil
}

func nonNil(s []model.FocusSession) []model.FocusSession {
	if s == nil {
		return []model.FocusSession{}
	}
	return s
}

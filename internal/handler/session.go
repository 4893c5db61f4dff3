package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/stats"
	"github.com/dukerupert/cadence/internal/websocket"
)

// SessionHandler records focus sessions and serves their statistics.
// Timestamps without an offset are read in the service's location.
type SessionHandler struct {
	stats *stats.Service
	base
}

func NewSessionHandler(ss *stats.Service, hub *websocket.Hub, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{stats: ss, base: base{hub: hub, logger: logger}}
}

type sessionRequest struct {
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=1440"`
	TaskDescription string `json:"task_description" validate:"max=500"`
}

// periodResponse is a session listing together with its minute total.
type periodResponse struct {
	Start        string               `json:"start"`
	End          string               `json:"end"`
	TotalMinutes int                  `json:"total_minutes"`
	Sessions     []model.FocusSession `json:"sessions"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	loc := h.stats.Location()
	start, err := calendar.ParseTimestamp(req.StartTime, loc)
	if err != nil {
		badRequest(w, "invalid start_time")
		return
	}
	end, err := calendar.ParseTimestamp(req.EndTime, loc)
	if err != nil {
		badRequest(w, "invalid end_time")
		return
	}

	fs, err := h.stats.CreateSession(r.Context(), auth.UserID(r.Context()), stats.NewSession{
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: req.DurationMinutes,
		TaskDescription: req.TaskDescription,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("session", "created", fs.ID, map[string]any{"duration_minutes": fs.DurationMinutes}))
	writeJSON(w, http.StatusCreated, fs)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.stats.ListAll(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Daily answers ?date=YYYY-MM-DD, defaulting to today.
func (h *SessionHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dateParam(w, r, "date", h.stats.Now())
	if !ok {
		return
	}
	h.period(w, r, calendar.Day(day), h.stats.ListDaily, h.stats.DailyTotal, day)
}

// Weekly answers ?week_start=YYYY-MM-DD, defaulting to the current week's
// Monday.
func (h *SessionHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	start, ok := h.dateParam(w, r, "week_start", calendar.WeekStart(h.stats.Now()))
	if !ok {
		return
	}
	h.period(w, r, calendar.Week(start), h.stats.ListWeekly, h.stats.WeeklyTotal, start)
}

// Monthly answers ?month_start=YYYY-MM-DD, defaulting to the first of the
// current month.
func (h *SessionHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	start, ok := h.dateParam(w, r, "month_start", calendar.MonthStart(h.stats.Now()))
	if !ok {
		return
	}
	h.period(w, r, calendar.Month(start), h.stats.ListMonthly, h.stats.MonthlyTotal, start)
}

func (h *SessionHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.BuildReport(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type (
	lister  func(ctx context.Context, ownerID int64, from time.Time) ([]model.FocusSession, error)
	totaler func(ctx context.Context, ownerID int64, from time.Time) (int, error)
)

func (h *SessionHandler) period(w http.ResponseWriter, r *http.Request, win calendar.Window, list lister, total totaler, from time.Time) {
	owner := auth.UserID(r.Context())
	sessions, err := list(r.Context(), owner, from)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	minutes, err := total(r.Context(), owner, from)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periodResponse{
		Start:        win.Start.Format(time.RFC3339Nano),
		End:          win.End.Format(time.RFC3339Nano),
		TotalMinutes: minutes,
		Sessions:     sessions,
	})
}

func (h *SessionHandler) dateParam(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	d, err := calendar.ParseDate(v, h.stats.Location())
	if err != nil {
		badRequest(w, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

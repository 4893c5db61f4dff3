package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/streak"
	"github.com/dukerupert/cadence/internal/websocket"
)

type CheckInHandler struct {
	streaks *streak.Service
	base
}

func NewCheckInHandler(ss *streak.Service, hub *websocket.Hub, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{streaks: ss, base: base{hub: hub, logger: logger}}
}

// Create checks the caller in for today. A second call on the same day
// answers 409.
func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.streaks.CheckIn(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("checkin", "created", c.ID, map[string]any{"streak_count": c.StreakCount}))
	writeJSON(w, http.StatusCreated, c)
}

func (h *CheckInHandler) Streak(w http.ResponseWriter, r *http.Request) {
	n, err := h.streaks.CurrentStreak(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"current_streak": n})
}

func (h *CheckInHandler) Today(w http.ResponseWriter, r *http.Request) {
	ok, err := h.streaks.HasCheckedInToday(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"checked_in": ok})
}

func (h *CheckInHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cs, err := h.streaks.History(r.Context(), auth.UserID(r.Context()), q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

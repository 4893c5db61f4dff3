package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/todo"
	"github.com/dukerupert/cadence/internal/websocket"
)

type TodoHandler struct {
	todos *todo.Service
	loc   *time.Location
	base
}

func NewTodoHandler(ts *todo.Service, loc *time.Location, hub *websocket.Hub, retry RetryPolicy, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: ts, loc: loc, base: base{hub: hub, retry: retry, logger: logger}}
}

type todoRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	Type            string `json:"type" validate:"required,max=50"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=1,max=1440"`
	IsImportant     bool   `json:"is_important"`
	IsUrgent        bool   `json:"is_urgent"`
}

func (req todoRequest) input() todo.Input {
	return todo.Input{
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		DurationMinutes: req.DurationMinutes,
		IsImportant:     req.IsImportant,
		IsUrgent:        req.IsUrgent,
	}
}

type focusTimeRequest struct {
	Minutes *int `json:"minutes" validate:"required,min=0"`
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.todos.Create(r.Context(), auth.UserID(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("todo", "created", t.ID, nil))
	writeJSON(w, http.StatusCreated, t)
}

// List supports ?completed=true|false, ?type= and ?from=/?to= dates.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f model.TodoFilter
	if v := q.Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "completed must be true or false")
			return
		}
		f.Completed = &b
	}
	f.Type = q.Get("type")
	if v := q.Get("from"); v != "" {
		d, err := calendar.ParseDate(v, h.loc)
		if err != nil {
			badRequest(w, "from must be YYYY-MM-DD")
			return
		}
		start := calendar.StartOfDay(d)
		f.CreatedAfter = &start
	}
	if v := q.Get("to"); v != "" {
		d, err := calendar.ParseDate(v, h.loc)
		if err != nil {
			badRequest(w, "to must be YYYY-MM-DD")
			return
		}
		end := calendar.EndOfDay(d)
		f.CreatedBefore = &end
	}

	todos, err := h.todos.List(r.Context(), auth.UserID(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if todos == nil {
		todos = []model.TodoItem{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	t, err := h.todos.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.todos.Update(r.Context(), auth.UserID(r.Context()), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("todo", "updated", t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	t, err := h.todos.Toggle(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("todo", "toggled", t.ID, map[string]any{"is_completed": t.IsCompleted}))
	writeJSON(w, http.StatusOK, t)
}

func (h *TodoHandler) SetFocusTime(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req focusTimeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.todos.SetFocusTime(r.Context(), auth.UserID(r.Context()), id, *req.Minutes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("todo", "updated", t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	if err := h.todos.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("todo", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

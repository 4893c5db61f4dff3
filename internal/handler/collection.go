package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/sequence"
	"github.com/dukerupert/cadence/internal/websocket"
)

// CollectionHandler serves collections, their items and the sequencer.
// Idempotent writes are retried on conflict; Advance, ToggleItem and
// DeleteItem are not, since replaying them against newer state would apply
// the step twice.
type CollectionHandler struct {
	seq *sequence.Service
	base
}

func NewCollectionHandler(seq *sequence.Service, hub *websocket.Hub, retry RetryPolicy, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{seq: seq, base: base{hub: hub, retry: retry, logger: logger}}
}

type itemRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=1440"`
}

func (req itemRequest) newItem() sequence.NewItem {
	return sequence.NewItem{Title: req.Title, Description: req.Description, DurationMinutes: req.DurationMinutes}
}

type collectionRequest struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Items       []itemRequest `json:"items" validate:"max=100,dive"`
}

type collectionUpdateRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if !decode(w, r, &req) {
		return
	}
	items := make([]sequence.NewItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.newItem()
	}
	c, err := h.seq.Create(r.Context(), auth.UserID(r.Context()), req.Title, req.Description, items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("collection", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	cs, err := h.seq.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	c, err := h.seq.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req collectionUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	owner := auth.UserID(r.Context())
	c, err := withRetry(r.Context(), h.retry, "update", func(ctx context.Context) (*model.CollectionWithItems, error) {
		return h.seq.Update(ctx, owner, id, req.Title, req.Description)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.changed(r.Context(), "updated", c)
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	if err := h.seq.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("collection", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	items, err := h.seq.Items(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CollectionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	owner := auth.UserID(r.Context())
	item, err := withRetry(r.Context(), h.retry, "add_item", func(ctx context.Context) (*model.TodoCollectionItem, error) {
		return h.seq.AddItem(ctx, owner, id, req.newItem())
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), websocket.NewMessage("collection", "item_added", id, map[string]any{"item_id": item.ID}))
	writeJSON(w, http.StatusCreated, item)
}

func (h *CollectionHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	cid, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	c, err := h.seq.ToggleItem(r.Context(), auth.UserID(r.Context()), cid, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.changed(r.Context(), "item_toggled", c)
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) SetItemFocusTime(w http.ResponseWriter, r *http.Request) {
	cid, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	var req focusTimeRequest
	if !decode(w, r, &req) {
		return
	}
	owner := auth.UserID(r.Context())
	c, err := withRetry(r.Context(), h.retry, "focus", func(ctx context.Context) (*model.CollectionWithItems, error) {
		return h.seq.RecordItemFocus(ctx, owner, cid, itemID, *req.Minutes)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.changed(r.Context(), "updated", c)
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	cid, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	c, err := h.seq.DeleteItem(r.Context(), auth.UserID(r.Context()), cid, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.changed(r.Context(), "item_deleted", c)
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", true, h.seq.Start)
}

func (h *CollectionHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "next", false, h.seq.Advance)
}

func (h *CollectionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "stop", true, h.seq.Stop)
}

// Current returns the item under the sequence pointer, or null when the
// sequence is not running.
func (h *CollectionHandler) Current(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	item, err := h.seq.CurrentItem(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

type sequenceOp func(ctx context.Context, ownerID, collectionID int64) (*model.CollectionWithItems, error)

func (h *CollectionHandler) transition(w http.ResponseWriter, r *http.Request, op string, retryable bool, fn sequenceOp) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	owner := auth.UserID(r.Context())
	call := func(ctx context.Context) (*model.CollectionWithItems, error) {
		return fn(ctx, owner, id)
	}

	var c *model.CollectionWithItems
	if retryable {
		c, err = withRetry(r.Context(), h.retry, op, call)
	} else {
		c, err = call(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.changed(r.Context(), "sequence_"+op, c)
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) changed(ctx context.Context, action string, c *model.CollectionWithItems) {
	h.publish(ctx, websocket.NewMessage("collection", action, c.ID, map[string]any{
		"sequence_active": c.SequenceActive,
		"current_index":   c.CurrentIndex,
		"version":         c.Version,
	}))
}

func itemParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	cid, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return 0, 0, false
	}
	itemID, err := parsePathID(r, "item_id")
	if err != nil {
		badRequest(w, "invalid item id")
		return 0, 0, false
	}
	return cid, itemID, true
}

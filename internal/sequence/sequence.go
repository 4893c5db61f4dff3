// Package sequence steps a user through the items of a collection one at a
// time.
//
// The state machine lives in pure transition functions over an Aggregate
// (a collection and its ordered items). A transition returns the new
// aggregate plus the writes needed to persist it; Service loads the
// aggregate, runs a transition and applies those writes in one
// transaction.
package sequence

import (
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/model"
)

// Phase is the externally visible state of a sequence.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Aggregate is a collection together with its items in ascending
// OrderIndex. Position i in Items is sequence position i.
type Aggregate struct {
	Collection model.TodoCollection
	Items      []model.TodoCollectionItem
}

// Phase reports PhaseActive while the sequence is running and PhaseIdle
// otherwise. Finished is only ever observed as a transition result.
func (a Aggregate) Phase() Phase {
	if a.Collection.SequenceActive {
		return PhaseActive
	}
	return PhaseIdle
}

// Current returns the item under the sequence pointer, or nil when the
// sequence is not running.
func (a Aggregate) Current() *model.TodoCollectionItem {
	i := a.Collection.CurrentIndex
	if !a.Collection.SequenceActive || i < 0 || i >= len(a.Items) {
		return nil
	}
	item := a.Items[i]
	return &item
}

// AllCompleted reports whether the collection has items and every one of
// them is completed.
func (a Aggregate) AllCompleted() bool {
	if len(a.Items) == 0 {
		return false
	}
	for _, item := range a.Items {
		if !item.IsCompleted {
			return false
		}
	}
	return true
}

// View copies the aggregate into its API shape.
func (a Aggregate) View() *model.CollectionWithItems {
	items := make([]model.TodoCollectionItem, len(a.Items))
	copy(items, a.Items)
	return &model.CollectionWithItems{TodoCollection: a.Collection, Items: items}
}

func (a Aggregate) clone() Aggregate {
	items := make([]model.TodoCollectionItem, len(a.Items))
	copy(items, a.Items)
	return Aggregate{Collection: a.Collection, Items: items}
}

func (a Aggregate) indexOf(itemID int64) int {
	for i, item := range a.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Effect is a write a transition asks the caller to persist.
type Effect interface {
	effect()
}

// SaveCollection persists the collection's sequence state and completion
// stamp.
type SaveCollection struct {
	Collection model.TodoCollection
}

// SaveItem persists one item's progress.
type SaveItem struct {
	Item model.TodoCollectionItem
}

// DeleteItem removes one item.
type DeleteItem struct {
	ItemID int64
}

func (SaveCollection) effect() {}
func (SaveItem) effect()       {}
func (DeleteItem) effect()     {}

// Result is the outcome of a transition.
type Result struct {
	Aggregate Aggregate
	Effects   []Effect
	// Phase is the state the transition left the sequence in.
	Phase Phase
}

// Finished reports whether this transition walked past the last item.
func (r Result) Finished() bool {
	return r.Phase == PhaseFinished
}

// Transition computes the next aggregate state at instant now.
type Transition func(a Aggregate, now time.Time) (Result, error)

// Start points the sequence at the first item. Starting a running sequence
// rewinds it.
func Start(a Aggregate, _ time.Time) (Result, error) {
	if len(a.Items) == 0 {
		return Result{}, apperr.InvalidState("collection has no items")
	}
	next := a.clone()
	next.Collection.SequenceActive = true
	next.Collection.CurrentIndex = 0
	return Result{
		Aggregate: next,
		Effects:   []Effect{SaveCollection{Collection: next.Collection}},
		Phase:     PhaseActive,
	}, nil
}

// Advance moves the pointer to the next item, or finishes the sequence
// when the pointer is on the last item. Item completion is left alone.
func Advance(a Aggregate, _ time.Time) (Result, error) {
	if !a.Collection.SequenceActive {
		return Result{}, apperr.InvalidState("sequence not active")
	}
	next := a.clone()
	phase := PhaseActive
	if a.Collection.CurrentIndex < len(a.Items)-1 {
		next.Collection.CurrentIndex++
	} else {
		next.Collection.SequenceActive = false
		next.Collection.CurrentIndex = model.NoCurrentIndex
		phase = PhaseFinished
	}
	return Result{
		Aggregate: next,
		Effects:   []Effect{SaveCollection{Collection: next.Collection}},
		Phase:     phase,
	}, nil
}

// Stop leaves the sequence idle whatever state it was in.
func Stop(a Aggregate, _ time.Time) (Result, error) {
	next := a.clone()
	next.Collection.SequenceActive = false
	next.Collection.CurrentIndex = model.NoCurrentIndex
	return Result{
		Aggregate: next,
		Effects:   []Effect{SaveCollection{Collection: next.Collection}},
		Phase:     PhaseIdle,
	}, nil
}

// ToggleItem flips one item's completion. When that leaves every item
// completed and the collection has never been completed, the collection is
// stamped with now. Un-completing an item keeps an existing stamp.
func ToggleItem(itemID int64) Transition {
	return func(a Aggregate, now time.Time) (Result, error) {
		i := a.indexOf(itemID)
		if i < 0 {
			return Result{}, fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
		}

		next := a.clone()
		item := &next.Items[i]
		if item.IsCompleted {
			item.IsCompleted = false
			item.CompletedAt = nil
		} else {
			stamp := now
			item.IsCompleted = true
			item.CompletedAt = &stamp
		}

		effects := []Effect{SaveItem{Item: *item}}
		if next.Collection.CompletedAt == nil && next.AllCompleted() {
			stamp := now
			next.Collection.CompletedAt = &stamp
			effects = append(effects, SaveCollection{Collection: next.Collection})
		}
		return Result{Aggregate: next, Effects: effects, Phase: next.Phase()}, nil
	}
}

// RecordFocus stores the minutes actually spent on one item.
func RecordFocus(itemID int64, minutes int) Transition {
	return func(a Aggregate, _ time.Time) (Result, error) {
		if minutes < 0 {
			return Result{}, apperr.InvalidArgument("focus time must not be negative")
		}
		i := a.indexOf(itemID)
		if i < 0 {
			return Result{}, fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
		}

		next := a.clone()
		m := minutes
		next.Items[i].ActualFocusMinutes = &m
		return Result{
			Aggregate: next,
			Effects:   []Effect{SaveItem{Item: next.Items[i]}},
			Phase:     next.Phase(),
		}, nil
	}
}

// RemoveItem deletes one item and keeps a running sequence pointing at the
// same item, or at the one that took its place. Removing the last item of
// a running sequence stops it.
func RemoveItem(itemID int64) Transition {
	return func(a Aggregate, _ time.Time) (Result, error) {
		i := a.indexOf(itemID)
		if i < 0 {
			return Result{}, fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
		}

		next := a.clone()
		next.Items = append(next.Items[:i], next.Items[i+1:]...)
		effects := []Effect{DeleteItem{ItemID: itemID}}

		c := &next.Collection
		if c.SequenceActive {
			moved := false
			if i < c.CurrentIndex {
				c.CurrentIndex--
				moved = true
			}
			if c.CurrentIndex >= len(next.Items) {
				if len(next.Items) == 0 {
					c.SequenceActive = false
					c.CurrentIndex = model.NoCurrentIndex
				} else {
					c.CurrentIndex = len(next.Items) - 1
				}
				moved = true
			}
			if moved {
				effects = append(effects, SaveCollection{Collection: *c})
			}
		}
		return Result{Aggregate: next, Effects: effects, Phase: next.Phase()}, nil
	}
}

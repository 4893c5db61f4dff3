package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/model"
)

func setupCollectionTest(t *testing.T) (*CollectionStore, *model.TodoCollection) {
	t.Helper()
	db := setupTestDB(t)
	cs := NewCollectionStore(db)
	userID := createTestUser(t, db, "alice")

	c, err := cs.Create(t.Context(), userID, "Morning", "routine", testNow)
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	return cs, c
}

func addItem(t *testing.T, cs *CollectionStore, collectionID int64, title string) *model.TodoCollectionItem {
	t.Helper()
	item, err := cs.CreateItem(t.Context(), model.TodoCollectionItem{
		CollectionID:    collectionID,
		Title:           title,
		DurationMinutes: model.DefaultItemMinutes,
	}, testNow)
	if err != nil {
		t.Fatalf("create item %q: %v", title, err)
	}
	return item
}

func TestCollectionCreate(t *testing.T) {
	_, c := setupCollectionTest(t)

	if c.SequenceActive {
		t.Error("new collection should not be sequencing")
	}
	if c.CurrentIndex != model.NoCurrentIndex {
		t.Errorf("current_index = %d, want %d", c.CurrentIndex, model.NoCurrentIndex)
	}
	if c.CompletedAt != nil {
		t.Error("new collection should not be completed")
	}
	if c.Version != 1 {
		t.Errorf("version = %d, want 1", c.Version)
	}
}

func TestCollectionItemOrder(t *testing.T) {
	cs, c := setupCollectionTest(t)

	a := addItem(t, cs, c.ID, "a")
	b := addItem(t, cs, c.ID, "b")
	if a.OrderIndex != 0 || b.OrderIndex != 1 {
		t.Fatalf("order = %d,%d, want 0,1", a.OrderIndex, b.OrderIndex)
	}

	// Deleting the head leaves a gap; new items still go last.
	if err := cs.DeleteItem(t.Context(), a.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	d := addItem(t, cs, c.ID, "d")
	if d.OrderIndex != 2 {
		t.Errorf("order = %d, want 2", d.OrderIndex)
	}

	items, err := cs.ListItems(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 || items[0].Title != "b" || items[1].Title != "d" {
		t.Errorf("items = %+v, want [b d]", items)
	}
}

func TestCollectionItemDefaults(t *testing.T) {
	cs, c := setupCollectionTest(t)

	item := addItem(t, cs, c.ID, "a")
	if item.DurationMinutes != model.DefaultItemMinutes {
		t.Errorf("duration = %d, want %d", item.DurationMinutes, model.DefaultItemMinutes)
	}
	if item.IsCompleted || item.CompletedAt != nil {
		t.Error("new item should not be completed")
	}
}

func TestCollectionSaveState(t *testing.T) {
	cs, c := setupCollectionTest(t)

	c.SequenceActive = true
	c.CurrentIndex = 0
	if err := cs.SaveState(t.Context(), *c, testNow); err != nil {
		t.Fatalf("save state: %v", err)
	}

	got, _ := cs.GetByID(t.Context(), c.ID)
	if !got.SequenceActive || got.CurrentIndex != 0 {
		t.Errorf("state = %v/%d, want true/0", got.SequenceActive, got.CurrentIndex)
	}
	if got.Version != c.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, c.Version+1)
	}
}

func TestCollectionSaveStateStaleVersion(t *testing.T) {
	cs, c := setupCollectionTest(t)

	stale := *c
	if err := cs.Touch(t.Context(), c.ID, c.Version, testNow); err != nil {
		t.Fatalf("touch: %v", err)
	}

	stale.SequenceActive = true
	err := cs.SaveState(t.Context(), stale, testNow)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	err = cs.UpdateDetails(t.Context(), c.ID, c.Version, "x", "", testNow)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("update details err = %v, want ErrConflict", err)
	}
}

func TestCollectionSaveItem(t *testing.T) {
	cs, c := setupCollectionTest(t)

	a := addItem(t, cs, c.ID, "a")
	addItem(t, cs, c.ID, "b")

	done := testNow.Add(time.Minute)
	minutes := 20
	a.IsCompleted = true
	a.CompletedAt = &done
	a.ActualFocusMinutes = &minutes
	if err := cs.SaveItem(t.Context(), *a); err != nil {
		t.Fatalf("save item: %v", err)
	}

	items, err := cs.ListItems(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 || !items[0].IsCompleted || items[1].IsCompleted {
		t.Errorf("items = %+v, want only the first completed", items)
	}

	got, _ := cs.GetItem(t.Context(), a.ID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, done)
	}
	if got.ActualFocusMinutes == nil || *got.ActualFocusMinutes != 20 {
		t.Errorf("actual_focus_minutes = %v, want 20", got.ActualFocusMinutes)
	}
}

func TestCollectionDeleteCascadesItems(t *testing.T) {
	cs, c := setupCollectionTest(t)

	item := addItem(t, cs, c.ID, "a")
	if err := cs.Delete(t.Context(), c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := cs.GetItem(t.Context(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != nil {
		t.Error("expected item to be removed with its collection")
	}
}

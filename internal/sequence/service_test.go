package sequence

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/store"
)

func setupService(t *testing.T) (*Service, *sqlx.DB, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create(t.Context(), "alice", "hash", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, calendar.Fixed(now), logger), db, u.ID
}

func TestServiceSequenceLifecycle(t *testing.T) {
	svc, _, owner := setupService(t)
	ctx := t.Context()

	c, err := svc.Create(ctx, owner, "Morning", "", []NewItem{{Title: "a"}, {Title: "b"}, {Title: "c", DurationMinutes: 10}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(c.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(c.Items))
	}
	if c.Items[0].DurationMinutes != 25 || c.Items[2].DurationMinutes != 10 {
		t.Errorf("durations = %d,%d, want 25,10", c.Items[0].DurationMinutes, c.Items[2].DurationMinutes)
	}

	got, err := svc.Start(ctx, owner, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !got.SequenceActive || got.CurrentIndex != 0 {
		t.Fatalf("after start = %v/%d, want true/0", got.SequenceActive, got.CurrentIndex)
	}

	for _, want := range []int{1, 2} {
		got, err = svc.Advance(ctx, owner, c.ID)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if got.CurrentIndex != want {
			t.Errorf("index = %d, want %d", got.CurrentIndex, want)
		}
	}

	cur, err := svc.CurrentItem(ctx, owner, c.ID)
	if err != nil {
		t.Fatalf("current item: %v", err)
	}
	if cur == nil || cur.Title != "c" {
		t.Fatalf("current = %+v, want c", cur)
	}

	got, err = svc.Advance(ctx, owner, c.ID)
	if err != nil {
		t.Fatalf("advance past end: %v", err)
	}
	if got.SequenceActive || got.CurrentIndex != -1 {
		t.Errorf("after finish = %v/%d, want false/-1", got.SequenceActive, got.CurrentIndex)
	}

	stored, err := svc.Get(ctx, owner, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, item := range stored.Items {
		if item.IsCompleted {
			t.Errorf("item %q completed by advancing", item.Title)
		}
	}
	if stored.Version != got.Version {
		t.Errorf("stored version = %d, returned %d", stored.Version, got.Version)
	}

	if _, err := svc.Advance(ctx, owner, c.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("advance idle err = %v, want ErrInvalidState", err)
	}
}

func TestServiceStartEmpty(t *testing.T) {
	svc, _, owner := setupService(t)

	c, _ := svc.Create(t.Context(), owner, "Empty", "", nil)
	_, err := svc.Start(t.Context(), owner, c.ID)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestServiceToggleCompletesCollection(t *testing.T) {
	svc, _, owner := setupService(t)
	ctx := t.Context()

	c, _ := svc.Create(ctx, owner, "Two", "", []NewItem{{Title: "a"}, {Title: "b"}})

	got, err := svc.ToggleItem(ctx, owner, c.ID, c.Items[0].ID)
	if err != nil {
		t.Fatalf("toggle a: %v", err)
	}
	if got.CompletedAt != nil {
		t.Error("collection completed with one item open")
	}

	got, err = svc.ToggleItem(ctx, owner, c.ID, c.Items[1].ID)
	if err != nil {
		t.Fatalf("toggle b: %v", err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Fatalf("completed_at = %v, want %v", got.CompletedAt, now)
	}

	// Un-completing an item leaves the collection stamp in place.
	got, err = svc.ToggleItem(ctx, owner, c.ID, c.Items[1].ID)
	if err != nil {
		t.Fatalf("toggle b back: %v", err)
	}
	stored, _ := svc.Get(ctx, owner, c.ID)
	if stored.Items[1].IsCompleted {
		t.Error("item b should be open again")
	}
	if stored.CompletedAt == nil {
		t.Error("collection completed_at was cleared")
	}
	if stored.Version != got.Version {
		t.Errorf("version = %d, want %d", stored.Version, got.Version)
	}
}

func TestServiceOwnership(t *testing.T) {
	svc, db, owner := setupService(t)
	ctx := t.Context()

	other, err := store.NewUserStore(db).Create(ctx, "bob", "hash", "")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	c, _ := svc.Create(ctx, owner, "Mine", "", []NewItem{{Title: "a"}})

	if _, err := svc.Start(ctx, other.ID, c.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("start as other err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, other.ID, c.ID); !apperr.Hidden(err) {
		t.Errorf("get as other err = %v, want hidden", err)
	}
	if _, err := svc.Start(ctx, owner, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("start missing err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, other.ID, c.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("delete as other err = %v, want ErrForbidden", err)
	}
}

func TestServiceItemsAndDelete(t *testing.T) {
	svc, _, owner := setupService(t)
	ctx := t.Context()

	c, _ := svc.Create(ctx, owner, "List", "", []NewItem{{Title: "a"}})
	item, err := svc.AddItem(ctx, owner, c.ID, NewItem{Title: "b"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.OrderIndex != 1 {
		t.Errorf("order = %d, want 1", item.OrderIndex)
	}

	if _, err := svc.AddItem(ctx, owner, c.ID, NewItem{Title: "  "}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("blank title err = %v, want ErrInvalidArgument", err)
	}

	if _, err := svc.Start(ctx, owner, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Advance(ctx, owner, c.ID); err != nil {
		t.Fatalf("advance: %v", err)
	}

	got, err := svc.DeleteItem(ctx, owner, c.ID, c.Items[0].ID)
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if got.CurrentIndex != 0 || got.Items[0].ID != item.ID {
		t.Errorf("after delete index = %d, want pointer on item b", got.CurrentIndex)
	}

	items, _ := svc.Items(ctx, owner, c.ID)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}

	if err := svc.Delete(ctx, owner, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, owner, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get deleted err = %v, want ErrNotFound", err)
	}
}

func TestServiceUpdateAndList(t *testing.T) {
	svc, _, owner := setupService(t)
	ctx := t.Context()

	c, _ := svc.Create(ctx, owner, "Old", "", nil)
	got, err := svc.Update(ctx, owner, c.ID, "New", "desc")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "New" || got.Version != c.Version+1 {
		t.Errorf("updated = %q v%d", got.Title, got.Version)
	}

	list, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Title != "New" {
		t.Errorf("list = %+v", list)
	}
}

func TestServiceRecordItemFocus(t *testing.T) {
	svc, _, owner := setupService(t)
	ctx := t.Context()

	c, _ := svc.Create(ctx, owner, "Focus", "", []NewItem{{Title: "a"}})
	if _, err := svc.RecordItemFocus(ctx, owner, c.ID, c.Items[0].ID, 35); err != nil {
		t.Fatalf("record focus: %v", err)
	}
	items, _ := svc.Items(ctx, owner, c.ID)
	if items[0].ActualFocusMinutes == nil || *items[0].ActualFocusMinutes != 35 {
		t.Errorf("focus = %v, want 35", items[0].ActualFocusMinutes)
	}
}

func TestServiceConcurrentWriterConflicts(t *testing.T) {
	svc, db, owner := setupService(t)
	ctx := t.Context()

	c, _ := svc.Create(ctx, owner, "Race", "", []NewItem{{Title: "a"}})

	// A writer that read version 1 loses to one that already bumped it.
	cs := store.NewCollectionStore(db)
	if err := cs.Touch(ctx, c.ID, c.Version, now.Add(time.Second)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	stale := c.TodoCollection
	stale.SequenceActive = true
	stale.CurrentIndex = 0
	if err := cs.SaveState(ctx, stale, now); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// The service re-reads and succeeds.
	if _, err := svc.Start(ctx, owner, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestServiceConcurrentAdvanceLosesNoStep(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "cadence.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create(t.Context(), "alice", "hash", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewService(db, calendar.Fixed(now), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := t.Context()

	const workers = 20
	items := make([]NewItem, workers+2)
	for i := range items {
		items[i] = NewItem{Title: fmt.Sprintf("step %d", i)}
	}
	c, err := svc.Create(ctx, u.ID, "Race", "", items)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Start(ctx, u.ID, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Each worker retries a lost race, the way the HTTP layer does.
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; ; attempt++ {
				_, err := svc.Advance(ctx, u.ID, c.ID)
				if err == nil {
					return
				}
				if !errors.Is(err, apperr.ErrConflict) || attempt == 500 {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("advance: %v", err)
	}

	got, err := svc.Get(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.SequenceActive || got.CurrentIndex != workers {
		t.Errorf("after %d advances = %v/%d, want true/%d", workers, got.SequenceActive, got.CurrentIndex, workers)
	}
	if got.Version != c.Version+workers+1 {
		t.Errorf("version = %d, want %d", got.Version, c.Version+workers+1)
	}
}

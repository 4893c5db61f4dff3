package store

import (
	"testing"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

func setupTodoTest(t *testing.T) (*TodoStore, int64) {
	t.Helper()
	db := setupTestDB(t)
	return NewTodoStore(db), createTestUser(t, db, "alice")
}

func TestTodoCreate(t *testing.T) {
	ts, userID := setupTodoTest(t)

	todo, err := ts.Create(t.Context(), model.TodoItem{
		UserID:          userID,
		Title:           "Write report",
		Type:            "work",
		DurationMinutes: 50,
		IsImportant:     true,
	}, testNow)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}
	if todo.Title != "Write report" {
		t.Errorf("title = %q, want %q", todo.Title, "Write report")
	}
	if todo.IsCompleted {
		t.Error("new todo should not be completed")
	}
	if !todo.IsImportant || todo.IsUrgent {
		t.Errorf("important/urgent = %v/%v, want true/false", todo.IsImportant, todo.IsUrgent)
	}
	if !todo.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v, want %v", todo.CreatedAt, testNow)
	}
	if todo.FocusMinutes != nil {
		t.Errorf("focus_minutes = %v, want nil", *todo.FocusMinutes)
	}
}

func TestTodoListFilters(t *testing.T) {
	ts, userID := setupTodoTest(t)
	ctx := t.Context()

	a, _ := ts.Create(ctx, model.TodoItem{UserID: userID, Title: "a", Type: "work", DurationMinutes: 25}, testNow)
	ts.Create(ctx, model.TodoItem{UserID: userID, Title: "b", Type: "study", DurationMinutes: 25}, testNow.Add(time.Hour))
	ts.Create(ctx, model.TodoItem{UserID: userID, Title: "c", Type: "work", DurationMinutes: 25}, testNow.Add(48*time.Hour))

	done := testNow.Add(time.Minute)
	if err := ts.SetCompletion(ctx, a.ID, true, &done, done); err != nil {
		t.Fatalf("set completion: %v", err)
	}

	all, err := ts.List(ctx, userID, model.TodoFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Title != "c" {
		t.Errorf("first = %q, want newest %q", all[0].Title, "c")
	}

	completed := true
	got, _ := ts.List(ctx, userID, model.TodoFilter{Completed: &completed})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("completed filter = %+v, want only %d", got, a.ID)
	}

	got, _ = ts.List(ctx, userID, model.TodoFilter{Type: "work"})
	if len(got) != 2 {
		t.Errorf("type filter len = %d, want 2", len(got))
	}

	before := testNow.Add(2 * time.Hour)
	got, _ = ts.List(ctx, userID, model.TodoFilter{CreatedAfter: &testNow, CreatedBefore: &before})
	if len(got) != 2 {
		t.Errorf("range filter len = %d, want 2", len(got))
	}
}

func TestTodoListOtherUser(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTodoStore(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ts.Create(t.Context(), model.TodoItem{UserID: alice, Title: "mine", Type: "work", DurationMinutes: 25}, testNow)

	got, err := ts.List(t.Context(), bob, model.TodoFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestTodoUpdateAndFocus(t *testing.T) {
	ts, userID := setupTodoTest(t)
	ctx := t.Context()

	todo, _ := ts.Create(ctx, model.TodoItem{UserID: userID, Title: "a", Type: "work", DurationMinutes: 25}, testNow)

	todo.Title = "renamed"
	todo.IsUrgent = true
	updated, err := ts.Update(ctx, *todo, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "renamed" || !updated.IsUrgent {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("expected updated_at to advance")
	}

	if err := ts.SetFocusMinutes(ctx, todo.ID, 40, testNow); err != nil {
		t.Fatalf("set focus minutes: %v", err)
	}
	got, _ := ts.GetByID(ctx, todo.ID)
	if got.FocusMinutes == nil || *got.FocusMinutes != 40 {
		t.Errorf("focus_minutes = %v, want 40", got.FocusMinutes)
	}
}

func TestTodoDelete(t *testing.T) {
	ts, userID := setupTodoTest(t)

	todo, _ := ts.Create(t.Context(), model.TodoItem{UserID: userID, Title: "a", Type: "work", DurationMinutes: 25}, testNow)
	if err := ts.Delete(t.Context(), todo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := ts.GetByID(t.Context(), todo.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/cadence/internal/model"
)

// CollectionStore persists collections and their items. Writes that change
// a collection's state are versioned: they only apply when the caller read
// the current version.
type CollectionStore struct {
	db Querier
}

func NewCollectionStore(db Querier) *CollectionStore {
	return &CollectionStore{db: db}
}

var collectionCols = []string{
	"id", "user_id", "title", "description", "sequence_active", "current_index",
	"completed_at", "version", "created_at", "updated_at",
}

var itemCols = []string{
	"id", "collection_id", "title", "description", "duration_minutes", "is_completed",
	"order_index", "completed_at", "actual_focus_minutes", "created_at",
}

// --- Collection methods ---

func (s *CollectionStore) Create(ctx context.Context, userID int64, title, description string, now time.Time) (*model.TodoCollection, error) {
	now = now.UTC()
	id, err := insert(ctx, s.db, builder.Insert("todo_collections").
		Columns("user_id", "title", "description", "sequence_active", "current_index", "created_at", "updated_at").
		Values(userID, title, description, false, model.NoCurrentIndex, now, now))
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CollectionStore) GetByID(ctx context.Context, id int64) (*model.TodoCollection, error) {
	c, err := getOne[model.TodoCollection](ctx, s.db, builder.Select(collectionCols...).From("todo_collections").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return c, nil
}

func (s *CollectionStore) ListByUser(ctx context.Context, userID int64) ([]model.TodoCollection, error) {
	cs, err := getMany[model.TodoCollection](ctx, s.db, builder.Select(collectionCols...).From("todo_collections").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cs, nil
}

// UpdateDetails renames a collection if it is still at version.
func (s *CollectionStore) UpdateDetails(ctx context.Context, id, version int64, title, description string, now time.Time) error {
	err := execVersioned(ctx, s.db, builder.Update("todo_collections").
		Set("title", title).
		Set("description", description).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "version": version}))
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return nil
}

// SaveState writes the sequence pointer and completion stamp of c if the
// stored row is still at c.Version.
func (s *CollectionStore) SaveState(ctx context.Context, c model.TodoCollection, now time.Time) error {
	err := execVersioned(ctx, s.db, builder.Update("todo_collections").
		Set("sequence_active", c.SequenceActive).
		Set("current_index", c.CurrentIndex).
		Set("completed_at", utcPtr(c.CompletedAt)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": c.ID, "version": c.Version}))
	if err != nil {
		return fmt.Errorf("save collection state: %w", err)
	}
	return nil
}

// Touch bumps the version of a collection whose items changed.
func (s *CollectionStore) Touch(ctx context.Context, id, version int64, now time.Time) error {
	err := execVersioned(ctx, s.db, builder.Update("todo_collections").
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "version": version}))
	if err != nil {
		return fmt.Errorf("touch collection: %w", err)
	}
	return nil
}

func (s *CollectionStore) Delete(ctx context.Context, id int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("todo_collections").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// --- Item methods ---

// CreateItem appends an item after the collection's last order index.
func (s *CollectionStore) CreateItem(ctx context.Context, item model.TodoCollectionItem, now time.Time) (*model.TodoCollectionItem, error) {
	next, err := s.NextOrderIndex(ctx, item.CollectionID)
	if err != nil {
		return nil, err
	}

	id, err := insert(ctx, s.db, builder.Insert("todo_collection_items").
		Columns("collection_id", "title", "description", "duration_minutes", "order_index", "created_at").
		Values(item.CollectionID, item.Title, item.Description, item.DurationMinutes, next, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("insert collection item: %w", err)
	}
	return s.GetItem(ctx, id)
}

// NextOrderIndex is one past the highest order index in the collection, or
// 0 for an empty one.
func (s *CollectionStore) NextOrderIndex(ctx context.Context, collectionID int64) (int, error) {
	n, err := getInt(ctx, s.db, builder.Select("COALESCE(MAX(order_index) + 1, 0)").
		From("todo_collection_items").
		Where(sq.Eq{"collection_id": collectionID}))
	if err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return n, nil
}

func (s *CollectionStore) GetItem(ctx context.Context, id int64) (*model.TodoCollectionItem, error) {
	item, err := getOne[model.TodoCollectionItem](ctx, s.db, builder.Select(itemCols...).From("todo_collection_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get collection item: %w", err)
	}
	return item, nil
}

// ListItems returns a collection's items in ascending order index.
func (s *CollectionStore) ListItems(ctx context.Context, collectionID int64) ([]model.TodoCollectionItem, error) {
	items, err := getMany[model.TodoCollectionItem](ctx, s.db, builder.Select(itemCols...).From("todo_collection_items").
		Where(sq.Eq{"collection_id": collectionID}).
		OrderBy("order_index ASC"))
	if err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}
	return items, nil
}

// SaveItem writes an item's progress: completion flag and stamp plus the
// focus time spent on it.
func (s *CollectionStore) SaveItem(ctx context.Context, item model.TodoCollectionItem) error {
	_, err := exec(ctx, s.db, builder.Update("todo_collection_items").
		Set("is_completed", item.IsCompleted).
		Set("completed_at", utcPtr(item.CompletedAt)).
		Set("actual_focus_minutes", item.ActualFocusMinutes).
		Where(sq.Eq{"id": item.ID, "collection_id": item.CollectionID}))
	if err != nil {
		return fmt.Errorf("save collection item: %w", err)
	}
	return nil
}

func (s *CollectionStore) DeleteItem(ctx context.Context, itemID int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("todo_collection_items").Where(sq.Eq{"id": itemID})); err != nil {
		return fmt.Errorf("delete collection item: %w", err)
	}
	return nil
}

func (s *CollectionStore) DeleteItemsByCollection(ctx context.Context, collectionID int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("todo_collection_items").Where(sq.Eq{"collection_id": collectionID})); err != nil {
		return fmt.Errorf("delete collection items: %w", err)
	}
	return nil
}

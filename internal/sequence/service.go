package sequence

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

// NewItem describes an item to append to a collection. A zero duration
// means model.DefaultItemMinutes.
type NewItem struct {
	Title           string
	Description     string
	DurationMinutes int
}

// Service owns collections and runs sequencer transitions against them.
// Every method runs in a single transaction and rejects collections owned
// by another user.
type Service struct {
	db     *sqlx.DB
	clock  calendar.Clock
	logger *slog.Logger
}

func NewService(db *sqlx.DB, clock calendar.Clock, logger *slog.Logger) *Service {
	return &Service{db: db, clock: clock, logger: logger.With("component", "sequence")}
}

// Create makes a collection and appends items in the given order.
func (s *Service) Create(ctx context.Context, ownerID int64, title, description string, items []NewItem) (*model.CollectionWithItems, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.InvalidArgument("title is required")
	}
	for i := range items {
		if err := normalizeItem(&items[i]); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	var out *model.CollectionWithItems
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCollectionStore(tx)
		c, err := cs.Create(ctx, ownerID, title, description, now)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := cs.CreateItem(ctx, itemModel(c.ID, it), now); err != nil {
				return err
			}
		}
		a, err := load(ctx, cs, ownerID, c.ID)
		if err != nil {
			return err
		}
		out = a.View()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("collection created", "collection_id", out.ID, "user_id", ownerID, "items", len(out.Items))
	return out, nil
}

// List returns the owner's collections without items, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]model.TodoCollection, error) {
	cs, err := store.NewCollectionStore(s.db).ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	if cs == nil {
		cs = []model.TodoCollection{}
	}
	return cs, nil
}

// Get returns a collection with its ordered items.
func (s *Service) Get(ctx context.Context, ownerID, collectionID int64) (*model.CollectionWithItems, error) {
	a, err := s.read(ctx, ownerID, collectionID)
	if err != nil {
		return nil, err
	}
	return a.View(), nil
}

// Items returns a collection's items in sequence order.
func (s *Service) Items(ctx context.Context, ownerID, collectionID int64) ([]model.TodoCollectionItem, error) {
	a, err := s.read(ctx, ownerID, collectionID)
	if err != nil {
		return nil, err
	}
	return a.View().Items, nil
}

// CurrentItem returns the item under the sequence pointer, or nil when the
// sequence is idle.
func (s *Service) CurrentItem(ctx context.Context, ownerID, collectionID int64) (*model.TodoCollectionItem, error) {
	a, err := s.read(ctx, ownerID, collectionID)
	if err != nil {
		return nil, err
	}
	return a.Current(), nil
}

// Update renames a collection.
func (s *Service) Update(ctx context.Context, ownerID, collectionID int64, title, description string) (*model.CollectionWithItems, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.InvalidArgument("title is required")
	}

	now := s.clock()
	var out *model.CollectionWithItems
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCollectionStore(tx)
		a, err := load(ctx, cs, ownerID, collectionID)
		if err != nil {
			return err
		}
		if err := cs.UpdateDetails(ctx, collectionID, a.Collection.Version, title, description, now); err != nil {
			return err
		}
		a.Collection.Title = title
		a.Collection.Description = description
		bump(&a.Collection, now)
		out = a.View()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update collection %d: %w", collectionID, err)
	}
	return out, nil
}

// Delete removes a collection and all of its items.
func (s *Service) Delete(ctx context.Context, ownerID, collectionID int64) error {
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCollectionStore(tx)
		if _, err := load(ctx, cs, ownerID, collectionID); err != nil {
			return err
		}
		if err := cs.DeleteItemsByCollection(ctx, collectionID); err != nil {
			return err
		}
		return cs.Delete(ctx, collectionID)
	})
	if err != nil {
		return fmt.Errorf("delete collection %d: %w", collectionID, err)
	}
	s.logger.Info("collection deleted", "collection_id", collectionID, "user_id", ownerID)
	return nil
}

// AddItem appends an item after the collection's last one.
func (s *Service) AddItem(ctx context.Context, ownerID, collectionID int64, it NewItem) (*model.TodoCollectionItem, error) {
	if err := normalizeItem(&it); err != nil {
		return nil, err
	}

	now := s.clock()
	var out *model.TodoCollectionItem
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCollectionStore(tx)
		a, err := load(ctx, cs, ownerID, collectionID)
		if err != nil {
			return err
		}
		item, err := cs.CreateItem(ctx, itemModel(collectionID, it), now)
		if err != nil {
			return err
		}
		if err := cs.Touch(ctx, collectionID, a.Collection.Version, now); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add item to collection %d: %w", collectionID, err)
	}
	return out, nil
}

// Start begins (or restarts) the sequence at the first item.
func (s *Service) Start(ctx context.Context, ownerID, collectionID int64) (*model.CollectionWithItems, error) {
	return s.run(ctx, "start", ownerID, collectionID, Start)
}

// Advance moves to the next item, finishing the sequence after the last.
func (s *Service) Advance(ctx context.Context, ownerID, collectionID int64) (*model.CollectionWithItems, error) {
	return s.run(ctx, "next", ownerID, collectionID, Advance)
}

// Stop ends the sequence.
func (s *Service) Stop(ctx context.Context, ownerID, collectionID int64) (*model.CollectionWithItems, error) {
	return s.run(ctx, "stop", ownerID, collectionID, Stop)
}

// ToggleItem flips one item's completion and stamps the collection the
// first time every item is complete.
func (s *Service) ToggleItem(ctx context.Context, ownerID, collectionID, itemID int64) (*model.CollectionWithItems, error) {
	return s.run(ctx, "toggle", ownerID, collectionID, ToggleItem(itemID))
}

// RecordItemFocus stores the focus minutes actually spent on an item.
func (s *Service) RecordItemFocus(ctx context.Context, ownerID, collectionID, itemID int64, minutes int) (*model.CollectionWithItems, error) {
	return s.run(ctx, "focus", ownerID, collectionID, RecordFocus(itemID, minutes))
}

// DeleteItem removes an item, keeping a running sequence consistent.
func (s *Service) DeleteItem(ctx context.Context, ownerID, collectionID, itemID int64) (*model.CollectionWithItems, error) {
	return s.run(ctx, "delete_item", ownerID, collectionID, RemoveItem(itemID))
}

func (s *Service) run(ctx context.Context, op string, ownerID, collectionID int64, t Transition) (*model.CollectionWithItems, error) {
	now := s.clock()
	var res Result
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cs := store.NewCollectionStore(tx)
		a, err := load(ctx, cs, ownerID, collectionID)
		if err != nil {
			return err
		}
		res, err = t(a, now)
		if err != nil {
			return err
		}
		if err := apply(ctx, cs, a.Collection, res.Effects, now); err != nil {
			return err
		}
		if len(res.Effects) > 0 {
			bump(&res.Aggregate.Collection, now)
		}
		return nil
	})
	metrics.SequenceTransitions.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%s collection %d: %w", op, collectionID, err)
	}

	if res.Finished() {
		metrics.SequencesFinished.Inc()
		s.logger.Info("sequence finished", "collection_id", collectionID, "user_id", ownerID)
	}
	return res.Aggregate.View(), nil
}

func (s *Service) read(ctx context.Context, ownerID, collectionID int64) (Aggregate, error) {
	var a Aggregate
	err := store.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		a, err = load(ctx, store.NewCollectionStore(tx), ownerID, collectionID)
		return err
	})
	if err != nil {
		return Aggregate{}, fmt.Errorf("get collection %d: %w", collectionID, err)
	}
	return a, nil
}

// load reads the collection and its ordered items and checks ownership.
func load(ctx context.Context, cs *store.CollectionStore, ownerID, collectionID int64) (Aggregate, error) {
	c, err := cs.GetByID(ctx, collectionID)
	if err != nil {
		return Aggregate{}, err
	}
	if c == nil {
		return Aggregate{}, apperr.ErrNotFound
	}
	if c.UserID != ownerID {
		return Aggregate{}, apperr.ErrForbidden
	}

	items, err := cs.ListItems(ctx, collectionID)
	if err != nil {
		return Aggregate{}, err
	}
	if items == nil {
		items = []model.TodoCollectionItem{}
	}
	return Aggregate{Collection: *c, Items: items}, nil
}

// apply persists effects against the version that was loaded. Every write
// bumps the collection version exactly once.
func apply(ctx context.Context, cs *store.CollectionStore, loaded model.TodoCollection, effects []Effect, now time.Time) error {
	if len(effects) == 0 {
		return nil
	}

	saved := false
	for _, e := range effects {
		switch e := e.(type) {
		case SaveItem:
			if err := cs.SaveItem(ctx, e.Item); err != nil {
				return err
			}
		case DeleteItem:
			if err := cs.DeleteItem(ctx, e.ItemID); err != nil {
				return err
			}
		case SaveCollection:
			c := e.Collection
			c.Version = loaded.Version
			if err := cs.SaveState(ctx, c, now); err != nil {
				return err
			}
			saved = true
		default:
			return fmt.Errorf("unknown effect %T", e)
		}
	}
	if !saved {
		return cs.Touch(ctx, loaded.ID, loaded.Version, now)
	}
	return nil
}

func bump(c *model.TodoCollection, now time.Time) {
	c.Version++
	c.UpdatedAt = now
}

func normalizeItem(it *NewItem) error {
	it.Title = strings.TrimSpace(it.Title)
	if it.Title == "" {
		return apperr.InvalidArgument("item title is required")
	}
	if it.DurationMinutes < 0 {
		return apperr.InvalidArgument("item duration must be positive")
	}
	if it.DurationMinutes == 0 {
		it.DurationMinutes = model.DefaultItemMinutes
	}
	return nil
}

func itemModel(collectionID int64, it NewItem) model.TodoCollectionItem {
	return model.TodoCollectionItem{
		CollectionID:    collectionID,
		Title:           it.Title,
		Description:     it.Description,
		DurationMinutes: it.DurationMinutes,
	}
}

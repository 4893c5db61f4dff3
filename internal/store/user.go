package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/cadence/internal/model"
)

type UserStore struct {
	db Querier
}

func NewUserStore(db Querier) *UserStore {
	return &UserStore{db: db}
}

var userCols = []string{"id", "username", "password_hash", "email", "created_at", "updated_at"}

// Create inserts a user. A taken username yields apperr.ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, username, passwordHash, email string) (*model.User, error) {
	id, err := insert(ctx, s.db, builder.Insert("users").
		Columns("username", "password_hash", "email").
		Values(username, passwordHash, email))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := getOne[model.User](ctx, s.db, builder.Select(userCols...).From("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := getOne[model.User](ctx, s.db, builder.Select(userCols...).From("users").Where(sq.Eq{"username": username}))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("users").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

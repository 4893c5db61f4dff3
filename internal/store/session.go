package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dukerupert/cadence/internal/model"
)

type SessionStore struct {
	db Querier
}

func NewSessionStore(db Querier) *SessionStore {
	return &SessionStore{db: db}
}

var sessionCols = []string{"id", "token_id", "user_id", "expires_at", "created_at"}

// Create starts a session for userID that expires after ttl.
func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*model.Session, error) {
	now := time.Now().UTC()
	id, err := insert(ctx, s.db, builder.Insert("sessions").
		Columns("token_id", "user_id", "expires_at", "created_at").
		Values(uuid.NewString(), userID, now.Add(ttl), now))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	sess, err := getOne[model.Session](ctx, s.db, builder.Select(sessionCols...).From("sessions").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByTokenID returns the live session for tokenID, or nil if expired or
// not found.
func (s *SessionStore) GetByTokenID(ctx context.Context, tokenID string) (*model.Session, error) {
	sess, err := getOne[model.Session](ctx, s.db, builder.Select(sessionCols...).From("sessions").
		Where(sq.Eq{"token_id": tokenID}).
		Where(sq.Gt{"expires_at": time.Now().UTC()}))
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("sessions").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := exec(ctx, s.db, builder.Delete("sessions").Where(sq.LtOrEq{"expires_at": time.Now().UTC()}))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *SessionStore) DeleteByUserID(ctx context.Context, userID int64) error {
	if _, err := exec(ctx, s.db, builder.Delete("sessions").Where(sq.Eq{"user_id": userID})); err != nil {
		return fmt.Errorf("delete sessions by user: %w", err)
	}
	return nil
}

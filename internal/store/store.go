// Package store persists tracker records in SQLite. Lookups by id return
// (nil, nil) when the row does not exist; ownership is checked by callers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/cadence/internal/apperr"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so every store can
// run inside or outside a transaction.
type Querier interface {
	sqlx.ExtContext
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// InTx runs fn in a transaction and commits if fn returns nil.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

func getOne[T any](ctx context.Context, q Querier, b sq.SelectBuilder) (*T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var v T
	err = sqlx.GetContext(ctx, q, &v, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func getMany[T any](ctx context.Context, q Querier, b sq.SelectBuilder) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []T
	if err := sqlx.SelectContext(ctx, q, &out, query, args...); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func getInt(ctx context.Context, q Querier, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func exec(ctx context.Context, q Querier, b sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func insert(ctx context.Context, q Querier, b sq.InsertBuilder) (int64, error) {
	res, err := exec(ctx, q, b)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// execVersioned runs an optimistic update and reports ErrConflict when the
// row's version moved on since it was read.
func execVersioned(ctx context.Context, q Querier, b sq.UpdateBuilder) error {
	res, err := exec(ctx, q, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("stale version: %w", apperr.ErrConflict)
	}
	return nil
}

// translate maps SQLite result codes onto apperr kinds.
func translate(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", apperr.ErrAlreadyExists, err)
	case code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
	}
	return err
}

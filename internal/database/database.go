package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"

// Open opens a SQLite database at the given path and runs migrations.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := Connect(dbPath)
	if err != nil {
		return nil, err
	}

	if err := Migrate(context.Background(), db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Connect opens the database without touching the schema.
func Connect(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if isMemory(dbPath) {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Status logs the applied state of every migration through goose's logger.
func Status(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

func setup() error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + pragmas
}

func isMemory(dbPath string) bool {
	return strings.HasPrefix(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory")
}

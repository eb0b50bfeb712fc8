// Package sqlite contains SQLite implementations of repository interfaces,
// used for single-device installs where no PostgreSQL server is available.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a single-writer sqlx handle.
type DB struct{ x *sqlx.DB }

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path not set")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	x, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite needs to have a single writer; it also keeps :memory: on one connection
	x.SetMaxOpenConns(1)
	x.SetConnMaxLifetime(0)

	if err := initSchema(ctx, x); err != nil {
		_ = x.Close()
		return nil, err
	}
	return &DB{x: x}, nil
}

// Close releases the handle.
func (db *DB) Close() error { return db.x.Close() }

// Ping checks storage availability.
func (db *DB) Ping(ctx context.Context) error { return db.x.PingContext(ctx) }

func initSchema(ctx context.Context, x *sqlx.DB) error {
	schema := []string{
		// without this the profile references below are not enforced
		`PRAGMA foreign_keys = ON;`,

		`CREATE TABLE IF NOT EXISTS profiles (
id TEXT NOT NULL PRIMARY KEY,
name TEXT NOT NULL,
pin TEXT,
is_admin INTEGER NOT NULL DEFAULT 0,
color TEXT NOT NULL,
created_at INTEGER NOT NULL);`,

		`CREATE TABLE IF NOT EXISTS watch_history (
id TEXT NOT NULL PRIMARY KEY,
profile_id TEXT NOT NULL REFERENCES profiles (id),
media_type TEXT NOT NULL,
media_id INTEGER NOT NULL,
title TEXT NOT NULL,
poster_path TEXT,
progress REAL NOT NULL,
duration REAL NOT NULL,
season INTEGER,
episode INTEGER,
updated_at INTEGER NOT NULL,
UNIQUE (profile_id, media_type, media_id));`,

		`CREATE INDEX IF NOT EXISTS watch_history_recent_idx ON watch_history (profile_id, updated_at);`,

		`CREATE TABLE IF NOT EXISTS watchlist (
id TEXT NOT NULL PRIMARY KEY,
profile_id TEXT NOT NULL REFERENCES profiles (id),
media_type TEXT NOT NULL,
media_id INTEGER NOT NULL,
title TEXT NOT NULL,
poster_path TEXT,
added_at INTEGER NOT NULL,
UNIQUE (profile_id, media_type, media_id));`,

		`CREATE INDEX IF NOT EXISTS watchlist_recent_idx ON watchlist (profile_id, added_at);`,
	}
	for _, stmt := range schema {
		if _, err := x.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func hasCode(err error, code int) bool {
	var se *sqlitedrv.Error
	return errors.As(err, &se) && se.Code() == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		hasCode(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		(err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed"))
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		(err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed"))
}

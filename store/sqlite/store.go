// Package sqlite provides the SQLite marketplace store on the grove
// sqlitedriver. The pool holds a single connection, so transactions are
// serialized by the database handle itself.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/marketplace/store/sqlstore"
)

// Dialect returns the SQLite dialect of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:            "marketplace/sqlite",
		Migrations:      Migrations,
		TimeAsMicros:    true,
		Isolation:       driver.LevelDefault,
		UniqueViolation: uniqueViolation,
	}
}

// New creates a store on an open grove database backed by sqlitedriver.
func New(db *grove.DB) *sqlstore.Store {
	return sqlstore.New(db, sqlitedriver.Unwrap(db), Dialect())
}

// Open opens the database file at path, creating it when missing. Use
// ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, path, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close() //nolint:errcheck // the open error is the one worth returning
		return nil, fmt.Errorf("marketplace/sqlite: open: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error is the one worth returning
		return nil, fmt.Errorf("marketplace/sqlite: ping: %w", err)
	}
	return New(db), nil
}

func uniqueViolation(err error) (string, bool) {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return sqlErr.Error(), true
		}
		return "", false
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return err.Error(), true
	}
	return "", false
}

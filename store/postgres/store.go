// Package postgres provides the PostgreSQL marketplace store. It runs the
// shared sqlstore queries through the grove pgdriver at serializable
// isolation and retries transactions that lose a serialization race.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"

	"github.com/xraph/marketplace/store/sqlstore"
)

const defaultPoolSize = 25

// SQLSTATE codes handled by the dialect.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Dialect returns the PostgreSQL dialect of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                 "marketplace/postgres",
		Migrations:           Migrations,
		NumberedPlaceholders: true,
		Isolation:            driver.LevelSerializable,
		UniqueViolation:      uniqueViolation,
		Retryable:            retryable,
	}
}

// New creates a store on an open grove database backed by pgdriver.
func New(db *grove.DB) *sqlstore.Store {
	return sqlstore.New(db, pgdriver.Unwrap(db), Dialect())
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn, driver.WithPoolSize(defaultPoolSize)); err != nil {
		return nil, fmt.Errorf("marketplace/postgres: open: %w", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		_ = pgdb.Close() //nolint:errcheck // the open error is the one worth returning
		return nil, fmt.Errorf("marketplace/postgres: open: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error is the one worth returning
		return nil, fmt.Errorf("marketplace/postgres: ping: %w", err)
	}
	return New(db), nil
}

func uniqueViolation(err error) (string, bool) {
	if code, detail := sqlState(err); code == codeUniqueViolation {
		return detail, true
	}
	return "", false
}

func retryable(err error) bool {
	code, _ := sqlState(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// sqlState extracts the SQLSTATE of err. Drivers that flatten the pgx error
// keep the code in the message only.
func sqlState(err error) (code, detail string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	if err == nil {
		return "", ""
	}
	msg := err.Error()
	for _, c := range []string{codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected} {
		if strings.Contains(msg, "SQLSTATE "+c) {
			return c, msg
		}
	}
	return "", ""
}

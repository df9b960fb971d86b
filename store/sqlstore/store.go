// Package sqlstore implements the marketplace store on a grove SQL driver.
// The postgres and sqlite packages supply a Dialect and a connection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// maxAttempts bounds how often Atomic runs a transaction that failed with
// a retryable error.
const maxAttempts = 3

// querier is satisfied by driver.Driver and driver.Tx.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (driver.Result, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// Store implements store.Store on a grove database. Inside Atomic the same
// type is bound to the open transaction.
type Store struct {
	db  *grove.DB
	drv driver.Driver
	d   *Dialect
	q   querier
	tx  bool
}

// New creates a store on db using dialect d. drv is the SQL driver
// unwrapped from db.
func New(db *grove.DB, drv driver.Driver, d Dialect) *Store {
	return &Store{db: db, drv: drv, d: &d, q: drv}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Driver returns the SQL driver queries run on.
func (s *Store) Driver() driver.Driver { return s.drv }

// Atomic runs fn in one database transaction.
func (s *Store) Atomic(ctx context.Context, fn store.TxFunc) error {
	if s.tx {
		return fn(ctx, s)
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.atomicOnce(ctx, fn)
		if err == nil || s.d.Retryable == nil || !s.d.Retryable(err) {
			return err
		}
	}
	return err
}

func (s *Store) atomicOnce(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.drv.BeginTx(ctx, &driver.TxOptions{IsolationLevel: s.d.Isolation})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.d.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if err := fn(ctx, &Store{db: s.db, drv: s.drv, d: s.d, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.conflict(fmt.Errorf("%s: commit: %w", s.d.Name, err), marketplace.ErrAlreadyExists)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.drv)
	if err != nil {
		return fmt.Errorf("%s: create migration executor: %w", s.d.Name, err)
	}
	orch := migrate.NewOrchestrator(executor, s.d.Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%s: migration failed: %w", s.d.Name, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Query helpers ====================

func (s *Store) exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	return s.q.Exec(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return s.q.Query(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) driver.Row {
	return s.q.QueryRow(ctx, s.d.rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row, returning
// notFound otherwise.
func (s *Store) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// conflict maps a unique violation to dup and leaves other errors alone.
func (s *Store) conflict(err, dup error) error {
	if _, ok := s.uniqueViolation(err); ok {
		return dup
	}
	return err
}

func (s *Store) uniqueViolation(err error) (string, bool) {
	if err == nil || s.d.UniqueViolation == nil {
		return "", false
	}
	return s.d.UniqueViolation(err)
}

// noRows maps an empty result to notFound. Drivers report it as either
// sql.ErrNoRows or grove.ErrNoRows.
func noRows(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, grove.ErrNoRows) {
		return notFound
	}
	return err
}

// collect scans every row with scan.
func collect[T any](rows driver.Rows, scan func(driver.Rows) (*T, error)) ([]*T, error) {
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// NextSequence allocates the next value of a named counter.
func (s *Store) NextSequence(ctx context.Context, name string) (uint64, error) {
	var v uint64
	err := s.queryRow(ctx, `
INSERT INTO mp_sequences (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = mp_sequences.value + 1
RETURNING value`, name).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("%s: next sequence %s: %w", s.d.Name, name, err)
	}
	return v, nil
}

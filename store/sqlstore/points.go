package sqlstore

import (
	"context"
	"time"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/points"
)

// ==================== Point Store ====================

func (s *Store) GetAccount(ctx context.Context, owner string) (*points.Account, error) {
	var (
		a                points.Account
		created, updated timestamp
	)
	err := s.queryRow(ctx, `SELECT owner, balance, created_at, updated_at FROM mp_point_accounts WHERE owner = ?`, owner).
		Scan(&a.Owner, &a.Balance, &created, &updated)
	if err != nil {
		return nil, noRows(err, marketplace.ErrAccountNotFound)
	}
	a.CreatedAt, a.UpdatedAt = created.Time, updated.Time
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a *points.Account) error {
	_, err := s.exec(ctx, `
INSERT INTO mp_point_accounts (owner, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (owner) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		a.Owner, a.Balance, s.d.ts(a.CreatedAt), s.d.ts(a.UpdatedAt),
	)
	return err
}

func (s *Store) TotalSupply(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.queryRow(ctx, `SELECT CAST(COALESCE(SUM(balance), 0) AS BIGINT) FROM mp_point_accounts`).Scan(&total)
	return total, err
}

func (s *Store) GetAllowance(ctx context.Context, owner, spender string) (uint64, error) {
	var amount uint64
	err := s.queryRow(ctx, `SELECT amount FROM mp_point_allowances WHERE owner = ? AND spender = ?`, owner, spender).
		Scan(&amount)
	if err != nil {
		return 0, noRows(err, nil)
	}
	return amount, nil
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender string, amount uint64, at time.Time) error {
	_, err := s.exec(ctx, `
INSERT INTO mp_point_allowances (owner, spender, amount, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (owner, spender) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		owner, spender, amount, s.d.ts(at),
	)
	return err
}

func (s *Store) GetCosts(ctx context.Context) (*points.Costs, error) {
	var c points.Costs
	err := s.queryRow(ctx, `SELECT listing_cost, quote_cost FROM mp_point_costs WHERE id = 1`).Scan(&c.Listing, &c.Quote)
	if err != nil {
		return nil, noRows(err, marketplace.ErrCostsNotSet)
	}
	return &c, nil
}

func (s *Store) SetCosts(ctx context.Context, c points.Costs, at time.Time) error {
	_, err := s.exec(ctx, `
INSERT INTO mp_point_costs (id, listing_cost, quote_cost, updated_at) VALUES (1, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET listing_cost = excluded.listing_cost, quote_cost = excluded.quote_cost,
    updated_at = excluded.updated_at`,
		c.Listing, c.Quote, s.d.ts(at),
	)
	return err
}

func (s *Store) AddDeductor(ctx context.Context, identity string, at time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO mp_point_deductors (identity, authorized_at) VALUES (?, ?)`, identity, s.d.ts(at))
	return s.conflict(err, marketplace.ErrDeductorExists)
}

func (s *Store) RemoveDeductor(ctx context.Context, identity string) error {
	return s.execOne(ctx, marketplace.ErrDeductorNotFound, `DELETE FROM mp_point_deductors WHERE identity = ?`, identity)
}

func (s *Store) IsDeductor(ctx context.Context, identity string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM mp_point_deductors WHERE identity = ?`, identity).Scan(&n)
	return n > 0, err
}

const entryColumns = `id, owner, counterparty, direction, amount, reason, note_hash, balance_after, actor, created_at`

func (s *Store) AppendPointEntry(ctx context.Context, e *points.Entry) error {
	_, err := s.exec(ctx, `INSERT INTO mp_point_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Owner, e.Counterparty, e.Direction, e.Amount, e.Reason, e.NoteHash, e.BalanceAfter, e.Actor,
		s.d.ts(e.CreatedAt),
	)
	return s.conflict(err, marketplace.ErrAlreadyExists)
}

func (s *Store) ListPointEntries(ctx context.Context, owner string, limit int) ([]*points.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM mp_point_entries WHERE owner = ? ORDER BY seq DESC`
	args := []any{owner}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEntry)
}

func scanEntry(r driver.Rows) (*points.Entry, error) {
	var (
		e       points.Entry
		entryID string
		created timestamp
	)
	err := r.Scan(&entryID, &e.Owner, &e.Counterparty, &e.Direction, &e.Amount, &e.Reason, &e.NoteHash,
		&e.BalanceAfter, &e.Actor, &created)
	if err != nil {
		return nil, err
	}
	if e.ID, err = id.ParsePointEntryID(entryID); err != nil {
		return nil, err
	}
	e.CreatedAt = created.Time
	return &e, nil
}

package points

import (
	"context"
	"time"
)

// Store persists balances, allowances, costs, deductors and entries.
type Store interface {
	GetAccount(ctx context.Context, owner string) (*Account, error)
	// SaveAccount inserts or replaces the account keyed by owner.
	SaveAccount(ctx context.Context, a *Account) error
	TotalSupply(ctx context.Context) (uint64, error)

	// GetAllowance returns zero when no allowance was ever approved.
	GetAllowance(ctx context.Context, owner, spender string) (uint64, error)
	SetAllowance(ctx context.Context, owner, spender string, amount uint64, at time.Time) error

	GetCosts(ctx context.Context) (*Costs, error)
	SetCosts(ctx context.Context, c Costs, at time.Time) error

	AddDeductor(ctx context.Context, identity string, at time.Time) error
	RemoveDeductor(ctx context.Context, identity string) error
	IsDeductor(ctx context.Context, identity string) (bool, error)

	AppendPointEntry(ctx context.Context, e *Entry) error
	// ListPointEntries returns the owner's entries, newest first.
	ListPointEntries(ctx context.Context, owner string, limit int) ([]*Entry, error)
}

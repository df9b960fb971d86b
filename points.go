package marketplace

import (
	"context"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/types"
)

// ──────────────────────────────────────────────────
// Point Ledger
// ──────────────────────────────────────────────────

// PointsMovement is the payload of mint, deduct, transfer and burn events.
type PointsMovement struct {
	From     string        `json:"from,omitempty"`
	To       string        `json:"to,omitempty"`
	Spender  string        `json:"spender,omitempty"`
	Amount   uint64        `json:"amount"`
	Reason   points.Reason `json:"reason"`
	NoteHash string        `json:"note_hash,omitempty"`
}

// Allowance is the payload of an AllowanceApproved event.
type Allowance struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

func accountID(owner string) string { return "account/" + owner }

// Mint credits newly created points to an identity. Admin only.
func (m *Marketplace) Mint(ctx context.Context, caller Caller, to string, amount uint64, noteHash string) (*points.Account, error) {
	if !caller.IsAdmin() {
		return nil, deny(caller, "mint")
	}
	if err := requireKey("to", to); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}
	if err := optionalHash("note_hash", noteHash); err != nil {
		return nil, err
	}

	var account *points.Account
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		supply, err := o.tx.TotalSupply(ctx)
		if err != nil {
			return err
		}
		if supply+amount > maxAmount {
			return ErrBalanceOverflow
		}

		account, err = o.credit(ctx, to, "", amount, points.ReasonMint, noteHash)
		if err != nil {
			return err
		}
		return o.emit(ctx, event.PointsMinted, accountID(to), PointsMovement{
			To:       to,
			Amount:   amount,
			Reason:   points.ReasonMint,
			NoteHash: noteHash,
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("points minted", "to", to, "amount", amount)
	return account, nil
}

// AuthorizeDeductor adds identity to the set allowed to debit any account.
// Admin only.
func (m *Marketplace) AuthorizeDeductor(ctx context.Context, caller Caller, identity string) error {
	if !caller.IsAdmin() {
		return deny(caller, "authorize deductor")
	}
	if err := requireKey("identity", identity); err != nil {
		return err
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		ok, err := o.tx.IsDeductor(ctx, identity)
		if err != nil {
			return err
		}
		if ok {
			return ErrDeductorExists
		}
		if err := o.tx.AddDeductor(ctx, identity, o.now); err != nil {
			return err
		}
		return o.emit(ctx, event.DeductorAuthorized, "deductor/"+identity, map[string]string{"identity": identity})
	})
}

// RevokeDeductor removes identity from the deductor set. Admin only.
func (m *Marketplace) RevokeDeductor(ctx context.Context, caller Caller, identity string) error {
	if !caller.IsAdmin() {
		return deny(caller, "revoke deductor")
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		ok, err := o.tx.IsDeductor(ctx, identity)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeductorNotFound
		}
		if err := o.tx.RemoveDeductor(ctx, identity); err != nil {
			return err
		}
		return o.emit(ctx, event.DeductorRevoked, "deductor/"+identity, map[string]string{"identity": identity})
	})
}

// Deduct debits amount from owner. The caller must be an authorized
// deductor or, per policy, the admin.
func (m *Marketplace) Deduct(ctx context.Context, caller Caller, owner string, amount uint64, noteHash string) (*points.Account, error) {
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}
	return m.deduct(ctx, caller, owner, noteHash, points.ReasonDeduct, func(points.Costs) uint64 { return amount })
}

// DeductForListing debits the configured listing cost from owner.
func (m *Marketplace) DeductForListing(ctx context.Context, caller Caller, owner, noteHash string) (*points.Account, error) {
	return m.deduct(ctx, caller, owner, noteHash, points.ReasonListing, func(c points.Costs) uint64 { return c.Listing })
}

// DeductForQuote debits the configured quote cost from owner.
func (m *Marketplace) DeductForQuote(ctx context.Context, caller Caller, owner, noteHash string) (*points.Account, error) {
	return m.deduct(ctx, caller, owner, noteHash, points.ReasonQuote, func(c points.Costs) uint64 { return c.Quote })
}

// deduct debits the amount chosen by cost. A zero cost leaves the balance
// untouched and records nothing.
func (m *Marketplace) deduct(ctx context.Context, caller Caller, owner, noteHash string, reason points.Reason, cost func(points.Costs) uint64) (*points.Account, error) {
	if err := requireKey("owner", owner); err != nil {
		return nil, err
	}
	if err := optionalHash("note_hash", noteHash); err != nil {
		return nil, err
	}

	var account *points.Account
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		deductor, err := o.tx.IsDeductor(ctx, caller.ID)
		if err != nil {
			return err
		}
		if !deductor && !(m.policy.Deduct && caller.IsAdmin()) {
			return deny(caller, "deduct")
		}

		costs, err := m.costs(ctx, o.tx)
		if err != nil {
			return err
		}
		amount := cost(costs)
		if amount == 0 {
			account, err = o.account(ctx, owner)
			return err
		}

		account, err = o.debit(ctx, owner, "", amount, reason, noteHash)
		if err != nil {
			return err
		}
		return o.emit(ctx, event.PointsDeducted, accountID(owner), PointsMovement{
			From:     owner,
			Spender:  caller.ID,
			Amount:   amount,
			Reason:   reason,
			NoteHash: noteHash,
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// SetCosts sets the point prices applied by DeductForListing and
// DeductForQuote. Admin only.
func (m *Marketplace) SetCosts(ctx context.Context, caller Caller, listingCost, quoteCost uint64) (points.Costs, error) {
	if !caller.IsAdmin() {
		return points.Costs{}, deny(caller, "set costs")
	}
	if err := boundedAmount("listing_cost", listingCost); err != nil {
		return points.Costs{}, err
	}
	if err := boundedAmount("quote_cost", quoteCost); err != nil {
		return points.Costs{}, err
	}

	c := points.Costs{Listing: listingCost, Quote: quoteCost}
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		if err := o.tx.SetCosts(ctx, c, o.now); err != nil {
			return err
		}
		return o.emit(ctx, event.CostsUpdated, "costs", c)
	})
	if err != nil {
		return points.Costs{}, err
	}
	return c, nil
}

// Transfer moves points from the caller's own account to another identity.
func (m *Marketplace) Transfer(ctx context.Context, caller Caller, from, to string, amount uint64, noteHash string) error {
	if err := requireKey("to", to); err != nil {
		return err
	}
	if err := requireAmount("amount", amount); err != nil {
		return err
	}
	if err := optionalHash("note_hash", noteHash); err != nil {
		return err
	}
	if caller.ID == "" || caller.ID != from {
		return deny(caller, "transfer")
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		if err := o.move(ctx, from, to, amount, points.ReasonTransfer, noteHash); err != nil {
			return err
		}
		return o.emit(ctx, event.PointsTransferred, accountID(from), PointsMovement{
			From:     from,
			To:       to,
			Amount:   amount,
			Reason:   points.ReasonTransfer,
			NoteHash: noteHash,
		})
	})
}

// Approve sets the amount spender may move out of the caller's account
// with TransferFrom, replacing any previous allowance.
func (m *Marketplace) Approve(ctx context.Context, caller Caller, spender string, amount uint64) error {
	if err := requireCaller(caller, "approve"); err != nil {
		return err
	}
	if err := requireKey("spender", spender); err != nil {
		return err
	}
	if err := boundedAmount("amount", amount); err != nil {
		return err
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		if err := o.tx.SetAllowance(ctx, caller.ID, spender, amount, o.now); err != nil {
			return err
		}
		return o.emit(ctx, event.AllowanceApproved, accountID(caller.ID), Allowance{
			Owner:   caller.ID,
			Spender: spender,
			Amount:  amount,
		})
	})
}

// TransferFrom moves points out of from's account on the caller's
// allowance, reducing the allowance by amount.
func (m *Marketplace) TransferFrom(ctx context.Context, caller Caller, from, to string, amount uint64, noteHash string) error {
	if err := requireCaller(caller, "transfer from"); err != nil {
		return err
	}
	if err := requireKey("from", from); err != nil {
		return err
	}
	if err := requireKey("to", to); err != nil {
		return err
	}
	if err := requireAmount("amount", amount); err != nil {
		return err
	}
	if err := optionalHash("note_hash", noteHash); err != nil {
		return err
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		allowed, err := o.tx.GetAllowance(ctx, from, caller.ID)
		if err != nil {
			return err
		}
		if allowed < amount {
			return ErrInsufficientAllowed
		}

		if err := o.move(ctx, from, to, amount, points.ReasonTransferFrom, noteHash); err != nil {
			return err
		}
		if err := o.tx.SetAllowance(ctx, from, caller.ID, allowed-amount, o.now); err != nil {
			return err
		}
		return o.emit(ctx, event.PointsTransferred, accountID(from), PointsMovement{
			From:     from,
			To:       to,
			Spender:  caller.ID,
			Amount:   amount,
			Reason:   points.ReasonTransferFrom,
			NoteHash: noteHash,
		})
	})
}

// Burn destroys points from the caller's own account.
func (m *Marketplace) Burn(ctx context.Context, caller Caller, amount uint64, noteHash string) (*points.Account, error) {
	if err := requireCaller(caller, "burn"); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}
	if err := optionalHash("note_hash", noteHash); err != nil {
		return nil, err
	}

	var account *points.Account
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		var err error
		account, err = o.debit(ctx, caller.ID, "", amount, points.ReasonBurn, noteHash)
		if err != nil {
			return err
		}
		return o.emit(ctx, event.PointsBurned, accountID(caller.ID), PointsMovement{
			From:     caller.ID,
			Amount:   amount,
			Reason:   points.ReasonBurn,
			NoteHash: noteHash,
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ──────────────────────────────────────────────────
// Balance movements
// ──────────────────────────────────────────────────

// account returns owner's account, or an empty one if it was never credited.
func (o *op) account(ctx context.Context, owner string) (*points.Account, error) {
	a, err := o.tx.GetAccount(ctx, owner)
	ok, err := found(err)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &points.Account{Entity: types.NewEntity(o.now), Owner: owner}, nil
	}
	return a, nil
}

func (o *op) credit(ctx context.Context, owner, counterparty string, amount uint64, reason points.Reason, noteHash string) (*points.Account, error) {
	a, err := o.account(ctx, owner)
	if err != nil {
		return nil, err
	}
	if a.Balance+amount > maxAmount {
		return nil, ErrBalanceOverflow
	}

	a.Balance += amount
	return a, o.record(ctx, a, counterparty, points.DirectionCredit, amount, reason, noteHash)
}

func (o *op) debit(ctx context.Context, owner, counterparty string, amount uint64, reason points.Reason, noteHash string) (*points.Account, error) {
	a, err := o.account(ctx, owner)
	if err != nil {
		return nil, err
	}
	if a.Balance < amount {
		return nil, InsufficientBalanceError{Owner: owner, Balance: a.Balance, Required: amount}
	}

	a.Balance -= amount
	return a, o.record(ctx, a, counterparty, points.DirectionDebit, amount, reason, noteHash)
}

// move debits from and credits to. The debit is applied first so a
// transfer to oneself nets to zero.
func (o *op) move(ctx context.Context, from, to string, amount uint64, reason points.Reason, noteHash string) error {
	if _, err := o.debit(ctx, from, to, amount, reason, noteHash); err != nil {
		return err
	}
	_, err := o.credit(ctx, to, from, amount, reason, noteHash)
	return err
}

// record saves the account and appends the matching ledger entry.
func (o *op) record(ctx context.Context, a *points.Account, counterparty string, dir points.Direction, amount uint64, reason points.Reason, noteHash string) error {
	a.Touch(o.now)
	if err := o.tx.SaveAccount(ctx, a); err != nil {
		return err
	}
	return o.tx.AppendPointEntry(ctx, &points.Entry{
		ID:           id.NewPointEntryID(),
		Owner:        a.Owner,
		Counterparty: counterparty,
		Direction:    dir,
		Amount:       amount,
		Reason:       reason,
		NoteHash:     noteHash,
		BalanceAfter: a.Balance,
		Actor:        o.caller.ID,
		CreatedAt:    o.now,
	})
}

// costs returns the configured action costs, or the engine defaults when
// SetCosts was never called.
func (m *Marketplace) costs(ctx context.Context, r points.Store) (points.Costs, error) {
	c, err := r.GetCosts(ctx)
	ok, err := found(err)
	if err != nil {
		return points.Costs{}, err
	}
	if !ok {
		return m.defaultCosts, nil
	}
	return *c, nil
}

// ──────────────────────────────────────────────────
// Point queries
// ──────────────────────────────────────────────────

// Balance returns owner's balance. Unknown identities have a zero balance.
func (m *Marketplace) Balance(ctx context.Context, owner string) (uint64, error) {
	a, err := m.store.GetAccount(ctx, owner)
	if ok, err := found(err); !ok {
		return 0, err
	}
	return a.Balance, nil
}

// Allowance returns how much spender may still move out of owner's account.
func (m *Marketplace) Allowance(ctx context.Context, owner, spender string) (uint64, error) {
	return m.store.GetAllowance(ctx, owner, spender)
}

// Costs returns the action costs in effect.
func (m *Marketplace) Costs(ctx context.Context) (points.Costs, error) {
	return m.costs(ctx, m.store)
}

// IsDeductor reports whether identity may debit any account.
func (m *Marketplace) IsDeductor(ctx context.Context, identity string) (bool, error) {
	return m.store.IsDeductor(ctx, identity)
}

// TotalSupply returns the sum of all balances.
func (m *Marketplace) TotalSupply(ctx context.Context) (uint64, error) {
	return m.store.TotalSupply(ctx)
}

// PointHistory returns owner's ledger entries, newest first. A limit of
// zero or less returns every entry.
func (m *Marketplace) PointHistory(ctx context.Context, owner string, limit int) ([]*points.Entry, error) {
	return m.store.ListPointEntries(ctx, owner, limit)
}

package marketplace_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/points"
)

func TestPointsRoundTrip(t *testing.T) {
	f := newFixture(t)

	_, err := f.mp.Mint(f.ctx, admin, "bob", 10, "")
	require.NoError(t, err)

	a, err := f.mp.DeductForListing(f.ctx, admin, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), a.Balance)

	costs, err := f.mp.SetCosts(f.ctx, admin, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, points.Costs{Listing: 5, Quote: 3}, costs)

	a, err = f.mp.DeductForQuote(f.ctx, admin, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), a.Balance)

	_, err = f.mp.Deduct(f.ctx, admin, "bob", 100, "")
	require.Error(t, err)
	assert.True(t, marketplace.IsInsufficientBalance(err))
	var ibe marketplace.InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.Equal(t, uint64(6), ibe.Balance)
	assert.Equal(t, uint64(100), ibe.Required)

	balance, err := f.mp.Balance(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), balance)

	supply, err := f.mp.TotalSupply(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), supply)
}

func TestPoints_AdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.mp.Mint(f.ctx, alice, "alice", 10, "")
	assert.True(t, marketplace.IsUnauthorized(err))
	_, err = f.mp.SetCosts(f.ctx, alice, 0, 0)
	assert.True(t, marketplace.IsUnauthorized(err))
	err = f.mp.AuthorizeDeductor(f.ctx, alice, "alice")
	assert.True(t, marketplace.IsUnauthorized(err))
	_, err = f.mp.Deduct(f.ctx, alice, "bob", 1, "")
	assert.True(t, marketplace.IsUnauthorized(err), "members need deductor rights")

	_, err = f.mp.Mint(f.ctx, admin, "bob", 0, "")
	assert.True(t, marketplace.IsValidation(err))

	costs, err := f.mp.Costs(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, points.DefaultCosts(), costs)
}

func TestDeductors(t *testing.T) {
	policy := marketplace.DefaultPolicy()
	policy.Deduct = false
	f := newFixture(t, marketplace.WithPolicy(policy))

	_, err := f.mp.Mint(f.ctx, admin, "bob", 5, "")
	require.NoError(t, err)

	_, err = f.mp.Deduct(f.ctx, admin, "bob", 1, "")
	assert.True(t, marketplace.IsUnauthorized(err), "policy turns off admin deductions")

	require.NoError(t, f.mp.AuthorizeDeductor(f.ctx, admin, "billing"))
	err = f.mp.AuthorizeDeductor(f.ctx, admin, "billing")
	assert.ErrorIs(t, err, marketplace.ErrDeductorExists)

	ok, err := f.mp.IsDeductor(f.ctx, "billing")
	require.NoError(t, err)
	assert.True(t, ok)

	billing := marketplace.Member("billing")
	a, err := f.mp.Deduct(f.ctx, billing, "bob", 2, "note")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a.Balance)

	require.NoError(t, f.mp.RevokeDeductor(f.ctx, admin, "billing"))
	err = f.mp.RevokeDeductor(f.ctx, admin, "billing")
	assert.ErrorIs(t, err, marketplace.ErrDeductorNotFound)

	_, err = f.mp.Deduct(f.ctx, billing, "bob", 1, "")
	assert.True(t, marketplace.IsUnauthorized(err))
}

func TestZeroCostDeduction(t *testing.T) {
	f := newFixture(t, marketplace.WithDefaultCosts(points.Costs{Listing: 0, Quote: 2}))

	a, err := f.mp.DeductForListing(f.ctx, admin, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), a.Balance)
	assert.Empty(t, f.rec.types(), "a zero cost records nothing")

	_, err = f.mp.DeductForQuote(f.ctx, admin, "bob", "")
	assert.True(t, marketplace.IsInsufficientBalance(err))
}

func TestTransfers(t *testing.T) {
	f := newFixture(t)
	_, err := f.mp.Mint(f.ctx, admin, "alice", 50, "")
	require.NoError(t, err)

	err = f.mp.Transfer(f.ctx, bob, "alice", "bob", 10, "")
	assert.True(t, marketplace.IsUnauthorized(err), "only the owner transfers")

	require.NoError(t, f.mp.Transfer(f.ctx, alice, "alice", "bob", 10, ""))
	err = f.mp.Transfer(f.ctx, alice, "alice", "bob", 41, "")
	assert.True(t, marketplace.IsInsufficientBalance(err))

	require.NoError(t, f.mp.Approve(f.ctx, alice, "carol", 15))
	allowance, err := f.mp.Allowance(f.ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(15), allowance)

	require.NoError(t, f.mp.TransferFrom(f.ctx, carol, "alice", "carol", 12, ""))
	err = f.mp.TransferFrom(f.ctx, carol, "alice", "carol", 4, "")
	assert.ErrorIs(t, err, marketplace.ErrInsufficientAllowed)
	assert.True(t, marketplace.IsInsufficientBalance(err))

	allowance, err = f.mp.Allowance(f.ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), allowance)

	for owner, want := range map[string]uint64{"alice": 28, "bob": 10, "carol": 12} {
		got, err := f.mp.Balance(f.ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, want, got, owner)
	}

	burned, err := f.mp.Burn(f.ctx, carol, 2, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), burned.Balance)

	supply, err := f.mp.TotalSupply(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(48), supply, "supply tracks mint minus burn")
}

func TestPointHistory(t *testing.T) {
	f := newFixture(t)
	_, err := f.mp.Mint(f.ctx, admin, "alice", 20, "grant")
	require.NoError(t, err)
	require.NoError(t, f.mp.Transfer(f.ctx, alice, "alice", "bob", 5, ""))
	_, err = f.mp.Burn(f.ctx, alice, 1, "")
	require.NoError(t, err)

	history, err := f.mp.PointHistory(f.ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, points.ReasonBurn, history[0].Reason)
	assert.Equal(t, points.DirectionDebit, history[0].Direction)
	assert.Equal(t, uint64(14), history[0].BalanceAfter)

	assert.Equal(t, points.ReasonTransfer, history[1].Reason)
	assert.Equal(t, "bob", history[1].Counterparty)

	assert.Equal(t, points.ReasonMint, history[2].Reason)
	assert.Equal(t, points.DirectionCredit, history[2].Direction)
	assert.Equal(t, "grant", history[2].NoteHash)
	assert.Equal(t, "ops", history[2].Actor)

	limited, err := f.mp.PointHistory(f.ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	unknown, err := f.mp.Balance(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, unknown)

	assert.Equal(t, []event.Type{
		event.PointsMinted,
		event.PointsTransferred,
		event.PointsBurned,
	}, f.rec.types())
}

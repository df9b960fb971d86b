// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/connection"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/quote"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/types"
)

// Factory returns an empty, migrated store. Run closes it when the subtest
// ends.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Sequences", testSequences},
		{"Entities", testEntities},
		{"Requests", testRequests},
		{"Connections", testConnections},
		{"Listings", testListings},
		{"ListingVendors", testListingVendors},
		{"Quotes", testQuotes},
		{"Accounts", testAccounts},
		{"Allowances", testAllowances},
		{"CostsAndDeductors", testCostsAndDeductors},
		{"PointEntries", testPointEntries},
		{"Events", testEvents},
		{"AtomicRollback", testAtomicRollback},
		{"AtomicCommit", testAtomicCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.Migrate(context.Background()))
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC)

func at(offset time.Duration) time.Time { return base.Add(offset) }

func sameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func newEntity(shareID string, kind entity.Kind, seq uint64) *entity.Entity {
	return &entity.Entity{
		Entity:       types.NewEntity(at(time.Duration(seq) * time.Second)),
		Seq:          seq,
		ShareID:      shareID,
		Name:         "name of " + shareID,
		Kind:         kind,
		Registrar:    "registrar-1",
		MetadataHash: "meta-" + shareID,
		IsActive:     true,
	}
}

func testSequences(t *testing.T, s store.Store) {
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := s.NextSequence(ctx, store.SeqListing)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := s.NextSequence(ctx, store.SeqQuote)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), other)
}

func testEntities(t *testing.T, s store.Store) {
	ctx := context.Background()

	acme := newEntity("acme", entity.KindCompany, 1)
	bolt := newEntity("bolt", entity.KindVendor, 2)
	crate := newEntity("crate", entity.KindVendor, 3)
	crate.Registrar = "registrar-2"
	for _, e := range []*entity.Entity{acme, bolt, crate} {
		require.NoError(t, s.CreateEntity(ctx, e))
	}

	err := s.CreateEntity(ctx, newEntity("acme", entity.KindVendor, 4))
	assert.ErrorIs(t, err, marketplace.ErrEntityExists)

	got, err := s.GetEntity(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "name of acme", got.Name)
	assert.Equal(t, entity.KindCompany, got.Kind)
	assert.Equal(t, uint64(1), got.Seq)
	assert.True(t, got.IsActive)
	sameTime(t, acme.CreatedAt, got.CreatedAt)

	_, err = s.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, marketplace.ErrEntityNotFound)

	got.IsActive = false
	got.MetadataHash = "meta-2"
	got.Touch(at(time.Hour))
	require.NoError(t, s.UpdateEntity(ctx, got))

	reloaded, err := s.GetEntity(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.Equal(t, "meta-2", reloaded.MetadataHash)
	sameTime(t, at(time.Hour), reloaded.UpdatedAt)

	err = s.UpdateEntity(ctx, newEntity("missing", entity.KindVendor, 9))
	assert.ErrorIs(t, err, marketplace.ErrEntityNotFound)

	mine, err := s.ListEntitiesByRegistrar(ctx, "registrar-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "acme", mine[0].ShareID)
	assert.Equal(t, "bolt", mine[1].ShareID)

	stats, err := s.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.Stats{Companies: 1, Vendors: 2, Total: 3}, stats)
}

func newRequest(reqID uint64, vendor, company string) *connection.Request {
	return &connection.Request{
		Entity:         types.NewEntity(at(time.Duration(reqID) * time.Minute)),
		ID:             reqID,
		VendorShareID:  vendor,
		CompanyShareID: company,
		MessageHash:    "hello",
		Status:         connection.RequestPending,
	}
}

func testRequests(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateRequest(ctx, newRequest(1, "bolt", "acme")))
	require.NoError(t, s.CreateRequest(ctx, newRequest(2, "crate", "acme")))

	err := s.CreateRequest(ctx, newRequest(3, "bolt", "acme"))
	assert.ErrorIs(t, err, marketplace.ErrPendingRequestExists)

	pending, err := s.FindPendingRequest(ctx, "bolt", "acme")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pending.ID)
	assert.Nil(t, pending.ReviewedAt)

	reviewed := at(time.Hour)
	pending.Status = connection.RequestDenied
	pending.ReviewNotesHash = "no thanks"
	pending.ReviewedBy = "reviewer"
	pending.ReviewedAt = &reviewed
	pending.Touch(reviewed)
	require.NoError(t, s.UpdateRequest(ctx, pending))

	_, err = s.FindPendingRequest(ctx, "bolt", "acme")
	assert.ErrorIs(t, err, marketplace.ErrRequestNotFound)

	got, err := s.GetRequest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, connection.RequestDenied, got.Status)
	assert.Equal(t, "reviewer", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	sameTime(t, reviewed, *got.ReviewedAt)

	// A denied request frees the pair for a new pending one.
	require.NoError(t, s.CreateRequest(ctx, newRequest(3, "bolt", "acme")))

	_, err = s.GetRequest(ctx, 99)
	assert.ErrorIs(t, err, marketplace.ErrRequestNotFound)
	assert.ErrorIs(t, s.UpdateRequest(ctx, newRequest(99, "x", "y")), marketplace.ErrRequestNotFound)

	byCompany, err := s.ListRequests(ctx, connection.Filter{CompanyShareID: "acme"})
	require.NoError(t, err)
	assert.Len(t, byCompany, 3)

	byPair, err := s.ListRequests(ctx, connection.Filter{VendorShareID: "bolt", CompanyShareID: "acme"})
	require.NoError(t, err)
	require.Len(t, byPair, 2)
	assert.Equal(t, uint64(1), byPair[0].ID)
	assert.Equal(t, uint64(3), byPair[1].ID)
}

func newConnection(connID uint64, vendor, company string) *connection.Connection {
	return &connection.Connection{
		Entity:            types.NewEntity(at(time.Duration(connID) * time.Minute)),
		ID:                connID,
		VendorShareID:     vendor,
		CompanyShareID:    company,
		ApprovedBy:        "reviewer",
		IsActive:          true,
		OriginalRequestID: connID,
	}
}

func testConnections(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateConnection(ctx, newConnection(1, "bolt", "acme")))
	require.NoError(t, s.CreateConnection(ctx, newConnection(2, "bolt", "dyna")))

	err := s.CreateConnection(ctx, newConnection(3, "bolt", "acme"))
	assert.ErrorIs(t, err, marketplace.ErrAlreadyConnected)

	active, err := s.FindActiveConnection(ctx, "bolt", "acme")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), active.ID)

	revoked := at(time.Hour)
	active.IsActive = false
	active.RevokedBy = "admin"
	active.RevocationReasonHash = "fraud"
	active.RevokedAt = &revoked
	active.Touch(revoked)
	require.NoError(t, s.UpdateConnection(ctx, active))

	_, err = s.FindActiveConnection(ctx, "bolt", "acme")
	assert.ErrorIs(t, err, marketplace.ErrConnectionNotFound)

	got, err := s.GetConnection(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "fraud", got.RevocationReasonHash)
	require.NotNil(t, got.RevokedAt)
	sameTime(t, revoked, *got.RevokedAt)

	// The pair may connect again once the old connection is inactive.
	require.NoError(t, s.CreateConnection(ctx, newConnection(3, "bolt", "acme")))

	_, err = s.GetConnection(ctx, 42)
	assert.ErrorIs(t, err, marketplace.ErrConnectionNotFound)
	assert.ErrorIs(t, s.UpdateConnection(ctx, newConnection(42, "x", "y")), marketplace.ErrConnectionNotFound)

	byVendor, err := s.ListConnections(ctx, connection.Filter{VendorShareID: "bolt"})
	require.NoError(t, err)
	require.Len(t, byVendor, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{byVendor[0].ID, byVendor[1].ID, byVendor[2].ID})

	all, err := s.ListConnections(ctx, connection.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func newListing(listingID uint64, number string, vis listing.Visibility, vendors ...string) *listing.Listing {
	return &listing.Listing{
		Entity:            types.NewEntity(at(time.Duration(listingID) * time.Minute)),
		ID:                listingID,
		ListingNumber:     number,
		CompanyShareID:    "acme",
		ContentHash:       "content-" + number,
		BasePrice:         5000,
		Visibility:        vis,
		Status:            listing.StatusActive,
		ClosesAt:          at(72 * time.Hour),
		CreatedBy:         "registrar-1",
		AuthorizedVendors: vendors,
	}
}

func testListings(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateListing(ctx, newListing(1, "RFQ-1", listing.VisibilityPublic)))
	require.NoError(t, s.CreateListing(ctx, newListing(2, "RFQ-2", listing.VisibilityPrivate, "bolt", "crate")))

	err := s.CreateListing(ctx, newListing(3, "RFQ-1", listing.VisibilityPublic))
	assert.ErrorIs(t, err, marketplace.ErrListingNumberTaken)

	got, err := s.GetListing(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "RFQ-2", got.ListingNumber)
	assert.Equal(t, uint64(5000), got.BasePrice)
	assert.Equal(t, listing.VisibilityPrivate, got.Visibility)
	assert.True(t, got.OpensAt.IsZero())
	sameTime(t, at(72*time.Hour), got.ClosesAt)
	assert.ElementsMatch(t, []string{"bolt", "crate"}, got.AuthorizedVendors)

	byNumber, err := s.GetListingByNumber(ctx, "RFQ-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), byNumber.ID)
	assert.Empty(t, byNumber.AuthorizedVendors)

	_, err = s.GetListing(ctx, 77)
	assert.ErrorIs(t, err, marketplace.ErrListingNotFound)
	_, err = s.GetListingByNumber(ctx, "RFQ-77")
	assert.ErrorIs(t, err, marketplace.ErrListingNotFound)

	got.Status = listing.StatusClosed
	got.ContentHash = "content-v2"
	got.Touch(at(time.Hour))
	require.NoError(t, s.UpdateListing(ctx, got))

	reloaded, err := s.GetListing(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusClosed, reloaded.Status)
	assert.Equal(t, "content-v2", reloaded.ContentHash)
	assert.ElementsMatch(t, []string{"bolt", "crate"}, reloaded.AuthorizedVendors)

	assert.ErrorIs(t, s.UpdateListing(ctx, newListing(77, "RFQ-77", listing.VisibilityPublic)), marketplace.ErrListingNotFound)

	byCompany, err := s.ListListingsByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, byCompany, 2)
	assert.Equal(t, uint64(1), byCompany[0].ID)
	assert.Len(t, byCompany[1].AuthorizedVendors, 2)

	none, err := s.ListListingsByCompany(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListingVendors(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateListing(ctx, newListing(1, "RFQ-1", listing.VisibilityPrivate, "bolt")))

	ok, err := s.HasListingVendor(ctx, 1, "bolt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.AddListingVendor(ctx, 1, "crate", at(time.Hour)))
	assert.ErrorIs(t, s.AddListingVendor(ctx, 1, "crate", at(2*time.Hour)), marketplace.ErrVendorAlreadyAuthorized)

	got, err := s.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bolt", "crate"}, got.AuthorizedVendors)

	require.NoError(t, s.RemoveListingVendor(ctx, 1, "bolt"))
	assert.ErrorIs(t, s.RemoveListingVendor(ctx, 1, "bolt"), marketplace.ErrVendorAccessNotFound)
	assert.ErrorIs(t, s.RemoveListingVendor(ctx, 99, "bolt"), marketplace.ErrVendorAccessNotFound)

	ok, err = s.HasListingVendor(ctx, 1, "bolt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HasListingVendor(ctx, 99, "crate")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"crate"}, got.AuthorizedVendors)
}

func newQuote(quoteID uint64, number string, listingID uint64, vendor string) *quote.Quote {
	return &quote.Quote{
		Entity:        types.NewEntity(at(time.Duration(quoteID) * time.Minute)),
		ID:            quoteID,
		QuoteNumber:   number,
		ListingID:     listingID,
		VendorShareID: vendor,
		QuotedPrice:   4200,
		ProposalHash:  "proposal-" + number,
		DeliveryDays:  14,
		ValidUntil:    at(30 * 24 * time.Hour),
		Status:        quote.StatusSubmitted,
		SubmittedBy:   "vendor-registrar",
	}
}

func testQuotes(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateQuote(ctx, newQuote(1, "Q-1", 1, "bolt")))
	require.NoError(t, s.CreateQuote(ctx, newQuote(2, "Q-2", 1, "crate")))
	require.NoError(t, s.CreateQuote(ctx, newQuote(3, "Q-3", 2, "bolt")))

	err := s.CreateQuote(ctx, newQuote(4, "Q-1", 2, "crate"))
	assert.ErrorIs(t, err, marketplace.ErrQuoteNumberTaken)

	err = s.CreateQuote(ctx, newQuote(4, "Q-4", 1, "bolt"))
	assert.ErrorIs(t, err, marketplace.ErrAlreadySubmitted)

	open, err := s.FindOpenQuote(ctx, 1, "bolt")
	require.NoError(t, err)
	assert.Equal(t, "Q-1", open.QuoteNumber)
	assert.Equal(t, uint32(14), open.DeliveryDays)
	sameTime(t, at(30*24*time.Hour), open.ValidUntil)

	open.Status = quote.StatusWithdrawn
	open.Touch(at(time.Hour))
	require.NoError(t, s.UpdateQuote(ctx, open))

	_, err = s.FindOpenQuote(ctx, 1, "bolt")
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotFound)

	// Withdrawing frees the slot for a fresh submission.
	require.NoError(t, s.CreateQuote(ctx, newQuote(4, "Q-4", 1, "bolt")))

	reviewed := at(2 * time.Hour)
	q2, err := s.GetQuoteByNumber(ctx, "Q-2")
	require.NoError(t, err)
	q2.Status = quote.StatusAccepted
	q2.ReviewedBy = "buyer"
	q2.ReviewNotesHash = "great"
	q2.ReviewedAt = &reviewed
	require.NoError(t, s.UpdateQuote(ctx, q2))

	got, err := s.GetQuote(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusAccepted, got.Status)
	assert.Equal(t, "great", got.ReviewNotesHash)
	require.NotNil(t, got.ReviewedAt)
	sameTime(t, reviewed, *got.ReviewedAt)

	_, err = s.GetQuote(ctx, 99)
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotFound)
	_, err = s.GetQuoteByNumber(ctx, "Q-99")
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotFound)
	assert.ErrorIs(t, s.UpdateQuote(ctx, newQuote(99, "Q-99", 1, "x")), marketplace.ErrQuoteNotFound)

	byListing, err := s.ListQuotes(ctx, quote.Filter{ListingID: 1})
	require.NoError(t, err)
	require.Len(t, byListing, 3)
	assert.Equal(t, []uint64{1, 2, 4}, []uint64{byListing[0].ID, byListing[1].ID, byListing[2].ID})

	byVendor, err := s.ListQuotes(ctx, quote.Filter{VendorShareID: "bolt"})
	require.NoError(t, err)
	assert.Len(t, byVendor, 3)

	both, err := s.ListQuotes(ctx, quote.Filter{ListingID: 2, VendorShareID: "bolt"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, uint64(3), both[0].ID)
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "alice")
	assert.ErrorIs(t, err, marketplace.ErrAccountNotFound)

	supply, err := s.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Zero(t, supply)

	alice := &points.Account{Entity: types.NewEntity(base), Owner: "alice", Balance: 100}
	require.NoError(t, s.SaveAccount(ctx, alice))
	require.NoError(t, s.SaveAccount(ctx, &points.Account{Entity: types.NewEntity(base), Owner: "bob", Balance: 50}))

	alice.Balance = 70
	alice.Touch(at(time.Hour))
	require.NoError(t, s.SaveAccount(ctx, alice))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(70), got.Balance)
	sameTime(t, base, got.CreatedAt)
	sameTime(t, at(time.Hour), got.UpdatedAt)

	supply, err = s.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), supply)
}

func testAllowances(t *testing.T, s store.Store) {
	ctx := context.Background()

	amount, err := s.GetAllowance(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Zero(t, amount)

	require.NoError(t, s.SetAllowance(ctx, "alice", "bob", 30, base))
	require.NoError(t, s.SetAllowance(ctx, "alice", "carol", 5, base))
	require.NoError(t, s.SetAllowance(ctx, "alice", "bob", 12, at(time.Hour)))

	amount, err = s.GetAllowance(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), amount)

	amount, err = s.GetAllowance(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func testCostsAndDeductors(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetCosts(ctx)
	assert.ErrorIs(t, err, marketplace.ErrCostsNotSet)

	require.NoError(t, s.SetCosts(ctx, points.Costs{Listing: 10, Quote: 3}, base))
	require.NoError(t, s.SetCosts(ctx, points.Costs{Listing: 0, Quote: 7}, at(time.Hour)))

	costs, err := s.GetCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, points.Costs{Listing: 0, Quote: 7}, *costs)

	require.NoError(t, s.AddDeductor(ctx, "billing", base))
	assert.ErrorIs(t, s.AddDeductor(ctx, "billing", base), marketplace.ErrDeductorExists)

	ok, err := s.IsDeductor(ctx, "billing")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveDeductor(ctx, "billing"))
	assert.ErrorIs(t, s.RemoveDeductor(ctx, "billing"), marketplace.ErrDeductorNotFound)

	ok, err = s.IsDeductor(ctx, "billing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPointEntries(t *testing.T, s store.Store) {
	ctx := context.Background()

	var ids []id.PointEntryID
	for i, amount := range []uint64{100, 30, 5} {
		e := &points.Entry{
			ID:           id.NewPointEntryID(),
			Owner:        "alice",
			Direction:    points.DirectionCredit,
			Amount:       amount,
			Reason:       points.ReasonMint,
			BalanceAfter: amount,
			Actor:        "admin",
			CreatedAt:    at(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AppendPointEntry(ctx, e))
		ids = append(ids, e.ID)
	}
	require.NoError(t, s.AppendPointEntry(ctx, &points.Entry{
		ID:           id.NewPointEntryID(),
		Owner:        "bob",
		Counterparty: "alice",
		Direction:    points.DirectionDebit,
		Amount:       1,
		Reason:       points.ReasonTransfer,
		NoteHash:     "note",
		Actor:        "bob",
		CreatedAt:    base,
	}))

	all, err := s.ListPointEntries(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2].String(), all[0].ID.String())
	assert.Equal(t, ids[0].String(), all[2].ID.String())
	assert.Equal(t, uint64(5), all[0].Amount)

	latest, err := s.ListPointEntries(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, ids[1].String(), latest[1].ID.String())

	bob, err := s.ListPointEntries(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "alice", bob[0].Counterparty)
	assert.Equal(t, points.DirectionDebit, bob[0].Direction)
	assert.Equal(t, "note", bob[0].NoteHash)
	sameTime(t, base, bob[0].CreatedAt)
}

func newEvent(seq uint64, typ event.Type, aggregate string, occurred time.Time) *event.Event {
	return &event.Event{
		Seq:           seq,
		ID:            id.NewEventID(),
		Type:          typ,
		Category:      typ.Category(),
		AggregateID:   aggregate,
		Actor:         "someone",
		Payload:       json.RawMessage(fmt.Sprintf(`{"seq":%d}`, seq)),
		OccurredAt:    occurred,
		NextAttemptAt: occurred,
	}
}

func testEvents(t *testing.T, s store.Store) {
	ctx := context.Background()

	e1 := newEvent(1, event.ListingCreated, "listing/1", at(0))
	e2 := newEvent(2, event.QuoteSubmitted, "quote/1", at(time.Second))
	e3 := newEvent(3, event.ListingClosed, "listing/1", at(time.Minute))
	for _, e := range []*event.Event{e1, e2, e3} {
		require.NoError(t, s.AppendEvent(ctx, e))
	}
	assert.ErrorIs(t, s.AppendEvent(ctx, e1), marketplace.ErrAlreadyExists)

	pending, err := s.ListPendingEvents(ctx, at(time.Second), 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, e1.ID.String(), pending[0].ID.String())
	assert.Equal(t, event.CategoryListing, pending[0].Category)
	assert.JSONEq(t, `{"seq":1}`, string(pending[0].Payload))
	assert.False(t, pending[0].IsDispatched())

	require.NoError(t, s.MarkEventFailed(ctx, e1.ID, "subscriber down", at(2*time.Hour)))
	require.NoError(t, s.MarkEventDispatched(ctx, e2.ID, at(time.Hour)))

	// e1 is backing off until its retry time.
	pending, err = s.ListPendingEvents(ctx, at(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e3.ID.String(), pending[0].ID.String())

	pending, err = s.ListPendingEvents(ctx, at(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, e3.ID.String(), pending[0].ID.String(), "ordered by next attempt")
	assert.Equal(t, e1.ID.String(), pending[1].ID.String())
	assert.Equal(t, 1, pending[1].Attempts)
	assert.Equal(t, "subscriber down", pending[1].LastError)
	sameTime(t, at(2*time.Hour), pending[1].NextAttemptAt)

	limited, err := s.ListPendingEvents(ctx, at(3*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, e3.ID.String(), limited[0].ID.String())

	require.NoError(t, s.MarkEventDead(ctx, e3.ID, "poison", at(3*time.Hour)))
	pending, err = s.ListPendingEvents(ctx, at(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "dead events are not retried")
	assert.Equal(t, e1.ID.String(), pending[0].ID.String())

	missing := id.NewEventID()
	assert.ErrorIs(t, s.MarkEventDispatched(ctx, missing, base), marketplace.ErrEventNotFound)
	assert.ErrorIs(t, s.MarkEventFailed(ctx, missing, "x", base), marketplace.ErrEventNotFound)
	assert.ErrorIs(t, s.MarkEventDead(ctx, missing, "x", base), marketplace.ErrEventNotFound)

	all, err := s.ListEvents(ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NotNil(t, all[1].DispatchedAt)
	sameTime(t, at(time.Hour), *all[1].DispatchedAt)
	assert.Equal(t, 1, all[1].Attempts)
	assert.Empty(t, all[1].LastError)
	require.NotNil(t, all[2].DeadAt)
	sameTime(t, at(3*time.Hour), *all[2].DeadAt)
	assert.Equal(t, 1, all[2].Attempts)
	assert.Equal(t, "poison", all[2].LastError)
	assert.False(t, all[2].IsDispatched())

	byAggregate, err := s.ListEvents(ctx, event.Filter{AggregateID: "listing/1"})
	require.NoError(t, err)
	require.Len(t, byAggregate, 2)
	assert.Equal(t, event.ListingClosed, byAggregate[1].Type)

	byCategory, err := s.ListEvents(ctx, event.Filter{Category: event.CategoryQuote})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, uint64(2), byCategory[0].Seq)

	after, err := s.ListEvents(ctx, event.Filter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, uint64(2), after[0].Seq)
}

var errAbort = errors.New("abort")

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.NextSequence(ctx, store.SeqEntity); err != nil {
			return err
		}
		if err := tx.CreateEntity(ctx, newEntity("acme", entity.KindCompany, 1)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, &points.Account{Entity: types.NewEntity(base), Owner: "alice", Balance: 10}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = s.GetEntity(ctx, "acme")
	assert.ErrorIs(t, err, marketplace.ErrEntityNotFound)
	_, err = s.GetAccount(ctx, "alice")
	assert.ErrorIs(t, err, marketplace.ErrAccountNotFound)

	seq, err := s.NextSequence(ctx, store.SeqEntity)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func testAtomicCommit(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateEntity(ctx, newEntity("acme", entity.KindCompany, 1)); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		e, err := tx.GetEntity(ctx, "acme")
		if err != nil {
			return err
		}
		e.IsActive = false
		if err := tx.UpdateEntity(ctx, e); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, newEvent(1, event.EntityDeactivated, "acme", base))
	})
	require.NoError(t, err)

	got, err := s.GetEntity(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	events, err := s.ListEvents(ctx, event.Filter{AggregateID: "acme"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

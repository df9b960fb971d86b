package marketplace_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/store/sqlite"
)

func TestOutboxRelay(t *testing.T) {
	f := newFixture(t)
	f.rec.setFail(true)

	_, err := f.mp.RegisterEntity(f.ctx, alice, company, "Acme", entity.KindCompany, "")
	require.NoError(t, err, "a failing subscriber never fails the mutation")

	events, err := f.mp.ListEvents(f.ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsDispatched())
	assert.Equal(t, 1, events[0].Attempts)
	assert.Equal(t, "sink unavailable", events[0].LastError)
	assert.True(t, events[0].NextAttemptAt.After(f.clock.Now()), "a failed event backs off")

	f.rec.setFail(false)
	n, err := f.mp.RelayPending(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	f.clock.Advance(time.Minute)
	n, err = f.mp.RelayPending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []event.Type{event.EntityRegistered}, f.rec.types())

	events, err = f.mp.ListEvents(f.ctx, event.Filter{})
	require.NoError(t, err)
	assert.True(t, events[0].IsDispatched())

	n, err = f.mp.RelayPending(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "dispatched events are not relayed twice")
}

// picky always rejects events about SH-POISON and rejects the first
// delivery of every other event.
type picky struct {
	mu        sync.Mutex
	seen      map[string]int
	delivered []string
}

func (p *picky) Name() string { return "picky" }

func (p *picky) OnEvent(_ context.Context, e *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[e.AggregateID]++
	if e.AggregateID == "SH-POISON" {
		return errors.New("rejected")
	}
	if p.seen[e.AggregateID] == 1 {
		return errors.New("try again")
	}
	p.delivered = append(p.delivered, e.AggregateID)
	return nil
}

func (p *picky) calls(aggregateID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[aggregateID]
}

func TestRelaySkipsPastFailingEvent(t *testing.T) {
	p := &picky{seen: map[string]int{}}
	f := newFixture(t,
		marketplace.WithPlugin(p),
		marketplace.WithRelayBatchSize(1),
		marketplace.WithRelayBackoff(time.Second, time.Minute),
		marketplace.WithMaxRelayAttempts(3),
	)

	_, err := f.mp.RegisterEntity(f.ctx, alice, "SH-POISON", "Poison", entity.KindCompany, "")
	require.NoError(t, err)
	_, err = f.mp.RegisterEntity(f.ctx, bob, "SH-GOOD", "Good", entity.KindVendor, "")
	require.NoError(t, err)

	for range 5 {
		f.clock.Advance(time.Minute)
		_, err := f.mp.RelayPending(f.ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"SH-GOOD"}, p.delivered, "the failing event does not hold up the batch")

	events, err := f.mp.ListEvents(f.ctx, event.Filter{AggregateID: "SH-POISON"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsDead())
	assert.Equal(t, 3, events[0].Attempts)
	assert.Equal(t, "rejected", events[0].LastError)

	f.clock.Advance(time.Hour)
	n, err := f.mp.RelayPending(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, p.calls("SH-POISON"), "dead events are not retried")
}

func TestListEventsFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)
	_, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)

	all, err := f.mp.ListEvents(f.ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, uint64(i+1), e.Seq, "sequence numbers are gap-free")
	}

	listings, err := f.mp.ListEvents(f.ctx, event.Filter{Category: event.CategoryListing})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "listing/1", listings[0].AggregateID)

	var created listing.Listing
	require.NoError(t, listings[0].Decode(&created))
	assert.Equal(t, "L-1", created.ListingNumber)

	quotes, err := f.mp.ListEvents(f.ctx, event.Filter{AggregateID: "quote/1"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, event.QuoteSubmitted, quotes[0].Type)

	tail, err := f.mp.ListEvents(f.ctx, event.Filter{AfterSeq: 3, Limit: 1})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(4), tail[0].Seq)
}

func TestFailedMutationLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	before, err := f.mp.ListEvents(f.ctx, event.Filter{})
	require.NoError(t, err)

	_, err = f.mp.CreateListing(f.ctx, alice, marketplace.ListingParams{
		ListingNumber:  "L-1",
		CompanyShareID: company,
		ContentHash:    "content",
		Visibility:     listing.VisibilityPrivate,
		Vendors:        []string{vendor, "SH-MISSING"},
	})
	require.True(t, marketplace.IsNotFound(err))

	err = f.mp.Transfer(f.ctx, alice, "alice", "bob", 1, "")
	require.True(t, marketplace.IsInsufficientBalance(err))

	after, err := f.mp.ListEvents(f.ctx, event.Filter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	_, err = f.mp.GetListingByNumber(f.ctx, "L-1")
	assert.True(t, marketplace.IsNotFound(err))

	// The listing id was not consumed by the failed attempt.
	l := f.listing(t, "L-1", listing.VisibilityPublic)
	assert.Equal(t, uint64(1), l.ID)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.mp.Ping(f.ctx))
}

func TestSQLiteEngine(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "marketplace.db"))
	require.NoError(t, err)

	mp := marketplace.New(st,
		marketplace.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		marketplace.WithRelayInterval(0),
	)
	require.NoError(t, mp.Start(ctx))
	t.Cleanup(func() { _ = mp.Stop() })

	_, err = mp.RegisterEntity(ctx, alice, company, "Acme", entity.KindCompany, "")
	require.NoError(t, err)
	_, err = mp.RegisterEntity(ctx, bob, vendor, "Bolt", entity.KindVendor, "")
	require.NoError(t, err)

	l, err := mp.CreateListing(ctx, alice, marketplace.ListingParams{
		ListingNumber:  "L-1",
		CompanyShareID: company,
		ContentHash:    "content",
		Visibility:     listing.VisibilityPrivate,
		Status:         listing.StatusActive,
		Vendors:        []string{vendor},
	})
	require.NoError(t, err)

	_, err = mp.SubmitQuote(ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)
	_, err = mp.SubmitQuote(ctx, bob, quoteParams("Q-2", l.ID, vendor))
	assert.ErrorIs(t, err, marketplace.ErrAlreadySubmitted)

	_, err = mp.Mint(ctx, admin, "bob", 10, "")
	require.NoError(t, err)
	_, err = mp.Deduct(ctx, admin, "bob", 11, "")
	assert.True(t, marketplace.IsInsufficientBalance(err))

	balance, err := mp.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), balance)
}

func TestWithAutoMigrateDisabled(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)

	mp := marketplace.New(st,
		marketplace.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		marketplace.WithRelayInterval(0),
		marketplace.WithAutoMigrate(false),
	)
	require.NoError(t, mp.Start(ctx))
	t.Cleanup(func() { _ = mp.Stop() })

	_, err = mp.RegisterEntity(ctx, alice, company, "Acme", entity.KindCompany, "")
	assert.Error(t, err, "schema was never created")

	require.NoError(t, st.Migrate(ctx))
	_, err = mp.RegisterEntity(ctx, alice, company, "Acme", entity.KindCompany, "")
	assert.NoError(t, err)
}

package marketplace_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/store/memory"
)

var (
	alice = marketplace.Member("alice") // controls the company
	bob   = marketplace.Member("bob")   // controls the vendor
	carol = marketplace.Member("carol") // controls a second vendor
	admin = marketplace.Admin("ops")
)

const (
	company = "SH-COMP001"
	vendor  = "SH-VEND001"
	vendor2 = "SH-VEND002"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder collects every event it receives and can be told to fail.
type recorder struct {
	mu     sync.Mutex
	events []*event.Event
	fail   bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnEvent(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("sink unavailable")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	mp    *marketplace.Marketplace
	clock *clock
	rec   *recorder
	ctx   context.Context
}

func newFixture(t *testing.T, opts ...marketplace.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New(), opts...)
}

// newFixtureOn runs the engine on st.
func newFixtureOn(t *testing.T, st store.Store, opts ...marketplace.Option) *fixture {
	t.Helper()

	f := &fixture{
		clock: &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		rec:   &recorder{},
		ctx:   context.Background(),
	}
	base := []marketplace.Option{
		marketplace.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		marketplace.WithClock(f.clock.Now),
		marketplace.WithPlugin(f.rec),
		marketplace.WithRelayInterval(0),
	}
	f.mp = marketplace.New(st, append(base, opts...)...)
	require.NoError(t, f.mp.Start(f.ctx))
	t.Cleanup(func() { _ = f.mp.Stop() })
	return f
}

// seed registers the company for alice and both vendors.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	_, err := f.mp.RegisterEntity(f.ctx, alice, company, "Acme", entity.KindCompany, "meta-c")
	require.NoError(t, err)
	_, err = f.mp.RegisterEntity(f.ctx, bob, vendor, "Bolt", entity.KindVendor, "meta-v")
	require.NoError(t, err)
	_, err = f.mp.RegisterEntity(f.ctx, carol, vendor2, "Cogs", entity.KindVendor, "")
	require.NoError(t, err)
}

// listing creates an active listing owned by the company.
func (f *fixture) listing(t *testing.T, number string, visibility listing.Visibility, vendors ...string) *listing.Listing {
	t.Helper()
	l, err := f.mp.CreateListing(f.ctx, alice, marketplace.ListingParams{
		ListingNumber:  number,
		CompanyShareID: company,
		ContentHash:    "content-" + number,
		BasePrice:      1000,
		Visibility:     visibility,
		Status:         listing.StatusActive,
		Vendors:        vendors,
	})
	require.NoError(t, err)
	return l
}

func quoteParams(number string, listingID uint64, vendorShareID string) marketplace.QuoteParams {
	return marketplace.QuoteParams{
		QuoteNumber:   number,
		ListingID:     listingID,
		VendorShareID: vendorShareID,
		Price:         900,
		ProposalHash:  "proposal-" + number,
		DeliveryDays:  10,
	}
}

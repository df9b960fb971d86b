package marketplace_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/quote"
)

func TestSubmitQuote(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)

	p := quoteParams("Q-1", l.ID, vendor)
	p.ValidUntil = f.clock.Now().Add(72 * time.Hour)
	q, err := f.mp.SubmitQuote(f.ctx, bob, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), q.ID)
	assert.Equal(t, quote.StatusSubmitted, q.Status)
	assert.Equal(t, uint64(900), q.QuotedPrice)
	assert.Equal(t, "bob", q.SubmittedBy)

	quoted, err := f.mp.HasVendorQuoted(f.ctx, l.ID, vendor)
	require.NoError(t, err)
	assert.True(t, quoted)
	quoted, err = f.mp.HasVendorQuoted(f.ctx, l.ID, vendor2)
	require.NoError(t, err)
	assert.False(t, quoted)

	byNumber, err := f.mp.GetQuoteByNumber(f.ctx, "Q-1")
	require.NoError(t, err)
	assert.Equal(t, q.ID, byNumber.ID)

	assert.Equal(t, event.QuoteSubmitted, f.rec.types()[len(f.rec.types())-1])
}

func TestSubmitQuote_Rules(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	public := f.listing(t, "L-PUB", listing.VisibilityPublic)
	private := f.listing(t, "L-PRIV", listing.VisibilityPrivate, vendor)
	closed := f.listing(t, "L-CLOSED", listing.VisibilityPublic)
	_, err := f.mp.CloseListing(f.ctx, alice, closed.ID)
	require.NoError(t, err)

	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-0", public.ID, vendor))
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller marketplace.Caller
		params marketplace.QuoteParams
		check  func(error) bool
	}{
		{"closed listing", bob, quoteParams("Q-1", closed.ID, vendor), marketplace.IsInvalidState},
		{"private without access", carol, quoteParams("Q-2", private.ID, vendor2), marketplace.IsUnauthorized},
		{"not the vendor", alice, quoteParams("Q-3", private.ID, vendor), marketplace.IsUnauthorized},
		{"company as vendor", alice, quoteParams("Q-4", public.ID, company), marketplace.IsValidation},
		{"unknown listing", bob, quoteParams("Q-5", 99, vendor), marketplace.IsNotFound},
		{"second open quote", bob, quoteParams("Q-6", public.ID, vendor), marketplace.IsConflict},
		{"number reused", carol, quoteParams("Q-0", public.ID, vendor2), marketplace.IsConflict},
		{"zero price", bob, func() marketplace.QuoteParams {
			p := quoteParams("Q-7", private.ID, vendor)
			p.Price = 0
			return p
		}(), marketplace.IsValidation},
		{"zero delivery", bob, func() marketplace.QuoteParams {
			p := quoteParams("Q-8", private.ID, vendor)
			p.DeliveryDays = 0
			return p
		}(), marketplace.IsValidation},
		{"expired validity", bob, func() marketplace.QuoteParams {
			p := quoteParams("Q-9", private.ID, vendor)
			p.ValidUntil = f.clock.Now().Add(-time.Minute)
			return p
		}(), marketplace.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mp.SubmitQuote(f.ctx, tt.caller, tt.params)
			assert.True(t, tt.check(err), "%v", err)
		})
	}

	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", closed.ID, vendor))
	assert.ErrorIs(t, err, marketplace.ErrListingNotActive)
	_, err = f.mp.SubmitQuote(f.ctx, carol, quoteParams("Q-2", private.ID, vendor2))
	assert.ErrorIs(t, err, marketplace.ErrVendorNotAuthorized)

	// Granting access lets the vendor quote.
	require.NoError(t, f.mp.GrantVendorAccess(f.ctx, alice, private.ID, vendor2))
	_, err = f.mp.SubmitQuote(f.ctx, carol, quoteParams("Q-2", private.ID, vendor2))
	require.NoError(t, err)
}

func TestWithdrawAndResubmit(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)

	q, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)

	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-2", l.ID, vendor))
	assert.ErrorIs(t, err, marketplace.ErrAlreadySubmitted)

	_, err = f.mp.WithdrawQuote(f.ctx, alice, q.ID)
	assert.True(t, marketplace.IsUnauthorized(err), "only the vendor withdraws")

	withdrawn, err := f.mp.WithdrawQuote(f.ctx, bob, q.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusWithdrawn, withdrawn.Status)

	_, err = f.mp.WithdrawQuote(f.ctx, bob, q.ID)
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotWithdrawable)

	quoted, err := f.mp.HasVendorQuoted(f.ctx, l.ID, vendor)
	require.NoError(t, err)
	assert.False(t, quoted)

	q2, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-2", l.ID, vendor))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), q2.ID)

	// The withdrawn quote keeps its number.
	_, err = f.mp.SubmitQuote(f.ctx, carol, quoteParams("Q-1", l.ID, vendor2))
	assert.ErrorIs(t, err, marketplace.ErrQuoteNumberTaken)

	byListing, err := f.mp.QuotesByListing(f.ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, byListing, 2)
	assert.Equal(t, quote.StatusWithdrawn, byListing[0].Status)
	assert.Equal(t, quote.StatusSubmitted, byListing[1].Status)
}

func TestReviewQuote(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)
	q, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)

	for _, status := range []quote.Status{quote.StatusSubmitted, quote.StatusWithdrawn, "lost"} {
		_, err := f.mp.ReviewQuote(f.ctx, alice, q.ID, status, "")
		assert.ErrorIs(t, err, marketplace.ErrInvalidReviewStatus, "status %s", status)
		assert.True(t, marketplace.IsValidation(err))
	}

	_, err = f.mp.ReviewQuote(f.ctx, bob, q.ID, quote.StatusAccepted, "")
	assert.True(t, marketplace.IsUnauthorized(err), "vendors cannot review their own quotes")

	f.clock.Advance(time.Hour)
	reviewed, err := f.mp.ReviewQuote(f.ctx, alice, q.ID, quote.StatusUnderReview, "notes-1")
	require.NoError(t, err)
	assert.Equal(t, quote.StatusUnderReview, reviewed.Status)
	assert.Equal(t, "alice", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.True(t, reviewed.ReviewedAt.Equal(f.clock.Now()))

	// Still modifiable while under review.
	updated, err := f.mp.UpdateQuote(f.ctx, bob, q.ID, 850, "proposal-2", 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(850), updated.QuotedPrice)
	assert.Equal(t, uint32(7), updated.DeliveryDays)

	accepted, err := f.mp.ReviewQuote(f.ctx, admin, q.ID, quote.StatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, quote.StatusAccepted, accepted.Status)

	_, err = f.mp.ReviewQuote(f.ctx, alice, q.ID, quote.StatusRejected, "")
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotReviewable)
	_, err = f.mp.UpdateQuote(f.ctx, bob, q.ID, 800, "proposal-3", 7)
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotModifiable)
	_, err = f.mp.WithdrawQuote(f.ctx, bob, q.ID)
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotWithdrawable, "accepted quotes are binding")
}

func TestRejectedQuoteCanBeWithdrawn(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)
	q, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)

	_, err = f.mp.ReviewQuote(f.ctx, alice, q.ID, quote.StatusRejected, "")
	require.NoError(t, err)

	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-2", l.ID, vendor))
	assert.ErrorIs(t, err, marketplace.ErrAlreadySubmitted, "a rejected quote still blocks until withdrawn")

	_, err = f.mp.WithdrawQuote(f.ctx, bob, q.ID)
	require.NoError(t, err)
	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-2", l.ID, vendor))
	require.NoError(t, err)
}

func TestReviewQuote_PolicyOverride(t *testing.T) {
	policy := marketplace.DefaultPolicy()
	policy.ReviewQuote = false
	f := newFixture(t, marketplace.WithPolicy(policy))
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPublic)
	q, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l.ID, vendor))
	require.NoError(t, err)

	_, err = f.mp.ReviewQuote(f.ctx, admin, q.ID, quote.StatusAccepted, "")
	assert.True(t, marketplace.IsUnauthorized(err))
}

func TestQuotesByVendor(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	l1 := f.listing(t, "L-1", listing.VisibilityPublic)
	l2 := f.listing(t, "L-2", listing.VisibilityPublic)

	_, err := f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-1", l1.ID, vendor))
	require.NoError(t, err)
	_, err = f.mp.SubmitQuote(f.ctx, carol, quoteParams("Q-2", l1.ID, vendor2))
	require.NoError(t, err)
	_, err = f.mp.SubmitQuote(f.ctx, bob, quoteParams("Q-3", l2.ID, vendor))
	require.NoError(t, err)

	mine, err := f.mp.QuotesByVendor(f.ctx, vendor)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Q-1", mine[0].QuoteNumber)
	assert.Equal(t, "Q-3", mine[1].QuoteNumber)

	onFirst, err := f.mp.QuotesByListing(f.ctx, l1.ID)
	require.NoError(t, err)
	assert.Len(t, onFirst, 2)

	_, err = f.mp.GetQuote(f.ctx, 42)
	assert.ErrorIs(t, err, marketplace.ErrQuoteNotFound)
}

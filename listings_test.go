package marketplace_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/listing"
)

func TestCreateListing(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	opens := f.clock.Now().Add(time.Hour)
	l, err := f.mp.CreateListing(f.ctx, alice, marketplace.ListingParams{
		ListingNumber:  "L-001",
		CompanyShareID: company,
		ContentHash:    "content",
		BasePrice:      5000,
		Visibility:     listing.VisibilityPublic,
		OpensAt:        opens,
		ClosesAt:       opens.Add(24 * time.Hour),
		Vendors:        []string{vendor},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), l.ID)
	assert.Equal(t, listing.StatusDraft, l.Status, "initial status defaults to draft")
	assert.Empty(t, l.AuthorizedVendors, "public listings ignore the seed set")
	assert.Equal(t, "alice", l.CreatedBy)

	byNumber, err := f.mp.GetListingByNumber(f.ctx, "L-001")
	require.NoError(t, err)
	assert.Equal(t, l.ID, byNumber.ID)
	assert.True(t, byNumber.OpensAt.Equal(opens))

	active, err := f.mp.IsListingActive(f.ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = f.mp.GetListingByNumber(f.ctx, "L-404")
	assert.ErrorIs(t, err, marketplace.ErrListingNotFound)
}

func TestCreateListing_Rules(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.listing(t, "L-001", listing.VisibilityPublic)

	base := marketplace.ListingParams{
		ListingNumber:  "L-002",
		CompanyShareID: company,
		ContentHash:    "content",
		Visibility:     listing.VisibilityPrivate,
	}

	tests := []struct {
		name   string
		caller marketplace.Caller
		mutate func(p *marketplace.ListingParams)
		check  func(error) bool
	}{
		{"number reused", alice, func(p *marketplace.ListingParams) { p.ListingNumber = "L-001" }, marketplace.IsConflict},
		{"not the company", bob, func(*marketplace.ListingParams) {}, marketplace.IsUnauthorized},
		{"admin has no create override", admin, func(*marketplace.ListingParams) {}, marketplace.IsUnauthorized},
		{"unknown company", alice, func(p *marketplace.ListingParams) { p.CompanyShareID = "SH-NOPE" }, marketplace.IsNotFound},
		{"vendor as company", bob, func(p *marketplace.ListingParams) { p.CompanyShareID = vendor }, marketplace.IsValidation},
		{"empty content", alice, func(p *marketplace.ListingParams) { p.ContentHash = "" }, marketplace.IsValidation},
		{"bad visibility", alice, func(p *marketplace.ListingParams) { p.Visibility = "secret" }, marketplace.IsValidation},
		{"terminal initial status", alice, func(p *marketplace.ListingParams) { p.Status = listing.StatusClosed }, marketplace.IsValidation},
		{"seeded company", alice, func(p *marketplace.ListingParams) { p.Vendors = []string{company} }, marketplace.IsValidation},
		{"seeded unknown vendor", alice, func(p *marketplace.ListingParams) { p.Vendors = []string{"SH-NOPE"} }, marketplace.IsNotFound},
		{"closes before opens", alice, func(p *marketplace.ListingParams) {
			p.OpensAt = f.clock.Now().Add(time.Hour)
			p.ClosesAt = f.clock.Now()
		}, marketplace.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := f.mp.CreateListing(f.ctx, tt.caller, p)
			assert.True(t, tt.check(err), "%v", err)
		})
	}

	// Nothing was written by the failed attempts.
	list, err := f.mp.ListingsByCompany(f.ctx, company)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVendorAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	public := f.listing(t, "L-PUB", listing.VisibilityPublic)
	private := f.listing(t, "L-PRIV", listing.VisibilityPrivate, vendor, vendor)

	for _, v := range []string{vendor, vendor2, "anyone"} {
		ok, err := f.mp.IsVendorAuthorized(f.ctx, public.ID, v)
		require.NoError(t, err)
		assert.True(t, ok, "public listing authorizes %s", v)
	}

	vendors, err := f.mp.AuthorizedVendors(f.ctx, private.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{vendor}, vendors, "seed set is de-duplicated")

	ok, err := f.mp.IsVendorAuthorized(f.ctx, private.ID, vendor2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.mp.GrantVendorAccess(f.ctx, alice, private.ID, vendor2))
	ok, err = f.mp.IsVendorAuthorized(f.ctx, private.ID, vendor2)
	require.NoError(t, err)
	assert.True(t, ok)

	err = f.mp.GrantVendorAccess(f.ctx, alice, private.ID, vendor2)
	assert.ErrorIs(t, err, marketplace.ErrVendorAlreadyAuthorized)

	err = f.mp.GrantVendorAccess(f.ctx, alice, public.ID, vendor2)
	assert.ErrorIs(t, err, marketplace.ErrListingPublic)

	err = f.mp.RevokeVendorAccess(f.ctx, bob, private.ID, vendor2)
	assert.True(t, marketplace.IsUnauthorized(err))

	require.NoError(t, f.mp.RevokeVendorAccess(f.ctx, admin, private.ID, vendor2))
	err = f.mp.RevokeVendorAccess(f.ctx, alice, private.ID, vendor2)
	assert.ErrorIs(t, err, marketplace.ErrVendorAccessNotFound)

	vendors, err = f.mp.AuthorizedVendors(f.ctx, private.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{vendor}, vendors)
}

func TestListingTransitions(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	draft, err := f.mp.CreateListing(f.ctx, alice, marketplace.ListingParams{
		ListingNumber:  "L-D",
		CompanyShareID: company,
		ContentHash:    "v1",
		Visibility:     listing.VisibilityPublic,
	})
	require.NoError(t, err)

	_, err = f.mp.CloseListing(f.ctx, alice, draft.ID)
	assert.ErrorIs(t, err, marketplace.ErrListingNotActive, "drafts cannot be closed")

	l, err := f.mp.UpdateListing(f.ctx, alice, draft.ID, "v2", listing.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, l.Status)
	assert.Equal(t, "v2", l.ContentHash)

	_, err = f.mp.UpdateListing(f.ctx, alice, draft.ID, "v3", listing.StatusDraft)
	assert.ErrorIs(t, err, marketplace.ErrInvalidTransition, "status never moves backwards")

	_, err = f.mp.UpdateListing(f.ctx, bob, draft.ID, "v3", listing.StatusActive)
	assert.True(t, marketplace.IsUnauthorized(err))

	l, err = f.mp.CloseListing(f.ctx, admin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusClosed, l.Status)

	_, err = f.mp.CloseListing(f.ctx, alice, draft.ID)
	assert.ErrorIs(t, err, marketplace.ErrInvalidTransition)
	_, err = f.mp.CancelListing(f.ctx, alice, draft.ID)
	assert.True(t, marketplace.IsInvalidState(err))
	_, err = f.mp.UpdateListing(f.ctx, alice, draft.ID, "v4", listing.StatusClosed)
	assert.True(t, marketplace.IsInvalidState(err), "terminal listings are frozen")

	other := f.listing(t, "L-C", listing.VisibilityPublic)
	l, err = f.mp.CancelListing(f.ctx, alice, other.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusCancelled, l.Status)

	assert.Contains(t, f.rec.types(), event.ListingClosed)
	assert.Contains(t, f.rec.types(), event.ListingCancelled)
}

func TestListingPolicyOverride(t *testing.T) {
	policy := marketplace.DefaultPolicy()
	policy.UpdateListing = false
	policy.CloseListing = false
	policy.ManageVendorAccess = false
	f := newFixture(t, marketplace.WithPolicy(policy))
	f.seed(t)
	l := f.listing(t, "L-1", listing.VisibilityPrivate)

	_, err := f.mp.UpdateListing(f.ctx, admin, l.ID, "x", listing.StatusActive)
	assert.True(t, marketplace.IsUnauthorized(err))
	_, err = f.mp.CloseListing(f.ctx, admin, l.ID)
	assert.True(t, marketplace.IsUnauthorized(err))
	err = f.mp.GrantVendorAccess(f.ctx, admin, l.ID, vendor)
	assert.True(t, marketplace.IsUnauthorized(err))
}

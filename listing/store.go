package listing

import (
	"context"
	"time"
)

// Store persists listings and the vendor access set of private listings.
type Store interface {
	// CreateListing stores l together with l.AuthorizedVendors.
	CreateListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, listingID uint64) (*Listing, error)
	GetListingByNumber(ctx context.Context, listingNumber string) (*Listing, error)
	// UpdateListing writes the scalar fields of l; the vendor set is
	// managed through AddListingVendor and RemoveListingVendor.
	UpdateListing(ctx context.Context, l *Listing) error
	ListListingsByCompany(ctx context.Context, companyShareID string) ([]*Listing, error)

	AddListingVendor(ctx context.Context, listingID uint64, vendorShareID string, at time.Time) error
	RemoveListingVendor(ctx context.Context, listingID uint64, vendorShareID string) error
	HasListingVendor(ctx context.Context, listingID uint64, vendorShareID string) (bool, error)
}

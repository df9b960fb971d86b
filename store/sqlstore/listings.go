package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/listing"
)

// ==================== Listing Store ====================

const listingColumns = `id, listing_number, company_share_id, content_hash, base_price, visibility, status,
    opens_at, closes_at, created_by, created_at, updated_at`

func scanListing(r row) (*listing.Listing, error) {
	var (
		l                               listing.Listing
		opens, closes, created, updated timestamp
	)
	err := r.Scan(&l.ID, &l.ListingNumber, &l.CompanyShareID, &l.ContentHash, &l.BasePrice, &l.Visibility, &l.Status,
		&opens, &closes, &l.CreatedBy, &created, &updated)
	if err != nil {
		return nil, err
	}
	l.OpensAt, l.ClosesAt = opens.Time, closes.Time
	l.CreatedAt, l.UpdatedAt = created.Time, updated.Time
	return &l, nil
}

func (s *Store) CreateListing(ctx context.Context, l *listing.Listing) error {
	_, err := s.exec(ctx, `INSERT INTO mp_listings (`+listingColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ListingNumber, l.CompanyShareID, l.ContentHash, l.BasePrice, l.Visibility, l.Status,
		s.d.zeroTS(l.OpensAt), s.d.zeroTS(l.ClosesAt), l.CreatedBy, s.d.ts(l.CreatedAt), s.d.ts(l.UpdatedAt),
	)
	if err != nil {
		return s.conflict(err, marketplace.ErrListingNumberTaken)
	}

	for _, v := range l.AuthorizedVendors {
		if err := s.AddListingVendor(ctx, l.ID, v, l.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, listingID uint64) (*listing.Listing, error) {
	return s.getListing(ctx, `id = ?`, listingID)
}

func (s *Store) GetListingByNumber(ctx context.Context, listingNumber string) (*listing.Listing, error) {
	return s.getListing(ctx, `listing_number = ?`, listingNumber)
}

func (s *Store) getListing(ctx context.Context, cond string, arg any) (*listing.Listing, error) {
	l, err := scanListing(s.queryRow(ctx, `SELECT `+listingColumns+` FROM mp_listings WHERE `+cond, arg))
	if err != nil {
		return nil, noRows(err, marketplace.ErrListingNotFound)
	}
	if err := s.loadVendors(ctx, []*listing.Listing{l}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) UpdateListing(ctx context.Context, l *listing.Listing) error {
	return s.execOne(ctx, marketplace.ErrListingNotFound, `
UPDATE mp_listings
SET content_hash = ?, base_price = ?, visibility = ?, status = ?, opens_at = ?, closes_at = ?, updated_at = ?
WHERE id = ?`,
		l.ContentHash, l.BasePrice, l.Visibility, l.Status,
		s.d.zeroTS(l.OpensAt), s.d.zeroTS(l.ClosesAt), s.d.ts(l.UpdatedAt), l.ID,
	)
}

func (s *Store) ListListingsByCompany(ctx context.Context, companyShareID string) ([]*listing.Listing, error) {
	rows, err := s.query(ctx, `SELECT `+listingColumns+` FROM mp_listings WHERE company_share_id = ? ORDER BY id`, companyShareID)
	if err != nil {
		return nil, err
	}
	listings, err := collect(rows, func(r driver.Rows) (*listing.Listing, error) { return scanListing(r) })
	if err != nil {
		return nil, err
	}
	if err := s.loadVendors(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// loadVendors fills the access set of every listing, in grant order.
func (s *Store) loadVendors(ctx context.Context, listings []*listing.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	byID := make(map[uint64]*listing.Listing, len(listings))
	placeholders := make([]string, 0, len(listings))
	args := make([]any, 0, len(listings))
	for _, l := range listings {
		l.AuthorizedVendors = []string{}
		byID[l.ID] = l
		placeholders = append(placeholders, "?")
		args = append(args, l.ID)
	}

	rows, err := s.query(ctx, `SELECT listing_id, vendor_share_id FROM mp_listing_vendors
WHERE listing_id IN (`+strings.Join(placeholders, ", ")+`)
ORDER BY granted_at, vendor_share_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			listingID uint64
			vendor    string
		)
		if err := rows.Scan(&listingID, &vendor); err != nil {
			return err
		}
		if l, ok := byID[listingID]; ok {
			l.AuthorizedVendors = append(l.AuthorizedVendors, vendor)
		}
	}
	return rows.Err()
}

func (s *Store) AddListingVendor(ctx context.Context, listingID uint64, vendorShareID string, at time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO mp_listing_vendors (listing_id, vendor_share_id, granted_at) VALUES (?, ?, ?)`,
		listingID, vendorShareID, s.d.ts(at),
	)
	return s.conflict(err, marketplace.ErrVendorAlreadyAuthorized)
}

func (s *Store) RemoveListingVendor(ctx context.Context, listingID uint64, vendorShareID string) error {
	return s.execOne(ctx, marketplace.ErrVendorAccessNotFound,
		`DELETE FROM mp_listing_vendors WHERE listing_id = ? AND vendor_share_id = ?`,
		listingID, vendorShareID,
	)
}

func (s *Store) HasListingVendor(ctx context.Context, listingID uint64, vendorShareID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM mp_listing_vendors WHERE listing_id = ? AND vendor_share_id = ?`,
		listingID, vendorShareID,
	).Scan(&n)
	return n > 0, err
}

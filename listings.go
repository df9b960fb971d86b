package marketplace

import (
	"context"
	"slices"
	"time"

	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/types"
)

// ──────────────────────────────────────────────────
// Listing Ledger
// ──────────────────────────────────────────────────

// ListingParams describes a listing to create. Status is the initial
// status, draft or active, and defaults to draft. Vendors seeds the access
// set of a private listing and is ignored for public ones.
type ListingParams struct {
	ListingNumber  string             `json:"listing_number"`
	CompanyShareID string             `json:"company_share_id"`
	ContentHash    string             `json:"content_hash"`
	BasePrice      uint64             `json:"base_price"`
	Visibility     listing.Visibility `json:"visibility"`
	Status         listing.Status     `json:"status,omitempty"`
	OpensAt        time.Time          `json:"opens_at,omitzero"`
	ClosesAt       time.Time          `json:"closes_at,omitzero"`
	Vendors        []string           `json:"vendors,omitempty"`
}

func (p *ListingParams) validate() error {
	if err := requireKey("listing_number", p.ListingNumber); err != nil {
		return err
	}
	if err := requireKey("company_share_id", p.CompanyShareID); err != nil {
		return err
	}
	if err := requireHash("content_hash", p.ContentHash); err != nil {
		return err
	}
	if err := boundedAmount("base_price", p.BasePrice); err != nil {
		return err
	}
	if !p.Visibility.IsValid() {
		return invalid("visibility", "must be public or private")
	}
	if p.Status == "" {
		p.Status = listing.StatusDraft
	}
	if p.Status != listing.StatusDraft && p.Status != listing.StatusActive {
		return invalid("status", "initial status must be draft or active")
	}
	if !p.OpensAt.IsZero() && !p.ClosesAt.IsZero() && p.ClosesAt.Before(p.OpensAt) {
		return invalid("closes_at", "must not precede opens_at")
	}
	for _, v := range p.Vendors {
		if err := requireKey("vendors", v); err != nil {
			return err
		}
	}
	return nil
}

// CreateListing publishes a listing for a registered, active company the
// caller controls. The listing number must never have been used.
func (m *Marketplace) CreateListing(ctx context.Context, caller Caller, p ListingParams) (*listing.Listing, error) {
	if err := requireCaller(caller, "create listing"); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var created *listing.Listing
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		company, err := activeEntity(ctx, o.tx, "company_share_id", p.CompanyShareID, entity.KindCompany)
		if err != nil {
			return err
		}
		if !allows(caller, company.Registrar, false) {
			return deny(caller, "create listing")
		}

		_, err = o.tx.GetListingByNumber(ctx, p.ListingNumber)
		if taken, err := found(err); err != nil {
			return err
		} else if taken {
			return ErrListingNumberTaken
		}

		var vendors []string
		if p.Visibility == listing.VisibilityPrivate {
			for _, v := range p.Vendors {
				if slices.Contains(vendors, v) {
					continue
				}
				if _, err := entityOfKind(ctx, o.tx, "vendors", v, entity.KindVendor); err != nil {
					return err
				}
				vendors = append(vendors, v)
			}
		}

		seq, err := o.tx.NextSequence(ctx, store.SeqListing)
		if err != nil {
			return err
		}

		l := &listing.Listing{
			Entity:            types.NewEntity(o.now),
			ID:                seq,
			ListingNumber:     p.ListingNumber,
			CompanyShareID:    p.CompanyShareID,
			ContentHash:       p.ContentHash,
			BasePrice:         p.BasePrice,
			Visibility:        p.Visibility,
			Status:            p.Status,
			OpensAt:           utcOrZero(p.OpensAt),
			ClosesAt:          utcOrZero(p.ClosesAt),
			CreatedBy:         caller.ID,
			AuthorizedVendors: vendors,
		}
		if err := o.tx.CreateListing(ctx, l); err != nil {
			return err
		}

		created = l
		return o.emit(ctx, event.ListingCreated, aggregateID("listing", l.ID), l)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("listing created",
		"listing_id", created.ID,
		"listing_number", created.ListingNumber,
		"visibility", created.Visibility,
	)
	return created, nil
}

// UpdateListing replaces the content hash and moves the listing to status.
// Status only moves forward.
func (m *Marketplace) UpdateListing(ctx context.Context, caller Caller, listingID uint64, contentHash string, status listing.Status) (*listing.Listing, error) {
	if err := requireHash("content_hash", contentHash); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, invalid("status", "unknown listing status")
	}

	var updated *listing.Listing
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		l, err := m.ownedListing(ctx, o, listingID, m.policy.UpdateListing, "update listing")
		if err != nil {
			return err
		}
		if !l.Status.CanTransitionTo(status) {
			return ErrInvalidTransition
		}

		l.ContentHash = contentHash
		l.Status = status
		l.Touch(o.now)
		if err := o.tx.UpdateListing(ctx, l); err != nil {
			return err
		}

		updated = l
		return o.emit(ctx, event.ListingUpdated, aggregateID("listing", l.ID), l)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CloseListing moves an active listing to closed.
func (m *Marketplace) CloseListing(ctx context.Context, caller Caller, listingID uint64) (*listing.Listing, error) {
	return m.endListing(ctx, caller, listingID, listing.StatusClosed)
}

// CancelListing moves a draft or active listing to cancelled.
func (m *Marketplace) CancelListing(ctx context.Context, caller Caller, listingID uint64) (*listing.Listing, error) {
	return m.endListing(ctx, caller, listingID, listing.StatusCancelled)
}

func (m *Marketplace) endListing(ctx context.Context, caller Caller, listingID uint64, status listing.Status) (*listing.Listing, error) {
	opName, typ := "close listing", event.ListingClosed
	if status == listing.StatusCancelled {
		opName, typ = "cancel listing", event.ListingCancelled
	}

	var ended *listing.Listing
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		l, err := m.ownedListing(ctx, o, listingID, m.policy.CloseListing, opName)
		if err != nil {
			return err
		}
		switch {
		case l.Status.IsTerminal():
			return ErrInvalidTransition
		case status == listing.StatusClosed && !l.IsActive():
			return ErrListingNotActive
		}

		l.Status = status
		l.Touch(o.now)
		if err := o.tx.UpdateListing(ctx, l); err != nil {
			return err
		}

		ended = l
		return o.emit(ctx, typ, aggregateID("listing", l.ID), l)
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// VendorAccess is the payload of vendor access events.
type VendorAccess struct {
	ListingID     uint64 `json:"listing_id"`
	VendorShareID string `json:"vendor_share_id"`
}

// GrantVendorAccess authorizes a vendor to quote on a private listing.
func (m *Marketplace) GrantVendorAccess(ctx context.Context, caller Caller, listingID uint64, vendorShareID string) error {
	if err := requireKey("vendor_share_id", vendorShareID); err != nil {
		return err
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		l, err := m.privateListing(ctx, o, listingID, "grant vendor access")
		if err != nil {
			return err
		}
		if _, err := entityOfKind(ctx, o.tx, "vendor_share_id", vendorShareID, entity.KindVendor); err != nil {
			return err
		}

		member, err := o.tx.HasListingVendor(ctx, l.ID, vendorShareID)
		if err != nil {
			return err
		}
		if member {
			return ErrVendorAlreadyAuthorized
		}

		if err := o.tx.AddListingVendor(ctx, l.ID, vendorShareID, o.now); err != nil {
			return err
		}
		if err := m.touchListing(ctx, o, l); err != nil {
			return err
		}

		return o.emit(ctx, event.VendorAccessGranted, aggregateID("listing", l.ID), VendorAccess{
			ListingID:     l.ID,
			VendorShareID: vendorShareID,
		})
	})
}

// RevokeVendorAccess removes a vendor from a private listing's access set.
func (m *Marketplace) RevokeVendorAccess(ctx context.Context, caller Caller, listingID uint64, vendorShareID string) error {
	if err := requireKey("vendor_share_id", vendorShareID); err != nil {
		return err
	}

	return m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		l, err := m.privateListing(ctx, o, listingID, "revoke vendor access")
		if err != nil {
			return err
		}

		member, err := o.tx.HasListingVendor(ctx, l.ID, vendorShareID)
		if err != nil {
			return err
		}
		if !member {
			return ErrVendorAccessNotFound
		}

		if err := o.tx.RemoveListingVendor(ctx, l.ID, vendorShareID); err != nil {
			return err
		}
		if err := m.touchListing(ctx, o, l); err != nil {
			return err
		}

		return o.emit(ctx, event.VendorAccessRevoked, aggregateID("listing", l.ID), VendorAccess{
			ListingID:     l.ID,
			VendorShareID: vendorShareID,
		})
	})
}

// ownedListing loads a listing the caller may manage.
func (m *Marketplace) ownedListing(ctx context.Context, o *op, listingID uint64, override bool, opName string) (*listing.Listing, error) {
	l, err := o.tx.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	company, err := o.tx.GetEntity(ctx, l.CompanyShareID)
	if err != nil {
		return nil, err
	}
	if !allows(o.caller, company.Registrar, override) {
		return nil, deny(o.caller, opName)
	}
	return l, nil
}

func (m *Marketplace) privateListing(ctx context.Context, o *op, listingID uint64, opName string) (*listing.Listing, error) {
	l, err := m.ownedListing(ctx, o, listingID, m.policy.ManageVendorAccess, opName)
	if err != nil {
		return nil, err
	}
	if l.Visibility != listing.VisibilityPrivate {
		return nil, ErrListingPublic
	}
	return l, nil
}

func (m *Marketplace) touchListing(ctx context.Context, o *op, l *listing.Listing) error {
	l.Touch(o.now)
	return o.tx.UpdateListing(ctx, l)
}

// IsVendorAuthorized reports whether the vendor may quote on the listing.
// Public listings authorize every vendor.
func (m *Marketplace) IsVendorAuthorized(ctx context.Context, listingID uint64, vendorShareID string) (bool, error) {
	l, err := m.store.GetListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	if l.Visibility == listing.VisibilityPublic {
		return true, nil
	}
	return m.store.HasListingVendor(ctx, listingID, vendorShareID)
}

// IsListingActive reports whether the listing's status is active.
func (m *Marketplace) IsListingActive(ctx context.Context, listingID uint64) (bool, error) {
	l, err := m.store.GetListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	return l.IsActive(), nil
}

// GetListing returns a listing by id.
func (m *Marketplace) GetListing(ctx context.Context, listingID uint64) (*listing.Listing, error) {
	return m.store.GetListing(ctx, listingID)
}

// GetListingByNumber returns the listing created under listingNumber.
func (m *Marketplace) GetListingByNumber(ctx context.Context, listingNumber string) (*listing.Listing, error) {
	return m.store.GetListingByNumber(ctx, listingNumber)
}

// ListingsByCompany returns a company's listings in creation order.
func (m *Marketplace) ListingsByCompany(ctx context.Context, companyShareID string) ([]*listing.Listing, error) {
	return m.store.ListListingsByCompany(ctx, companyShareID)
}

// AuthorizedVendors returns the access set of a private listing. It is
// always empty for public listings.
func (m *Marketplace) AuthorizedVendors(ctx context.Context, listingID uint64) ([]string, error) {
	l, err := m.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Visibility == listing.VisibilityPublic {
		return []string{}, nil
	}
	return l.AuthorizedVendors, nil
}

func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Microsecond)
}

// Package listing defines company-authored listings and their per-vendor
// authorization.
package listing

import (
	"slices"
	"time"

	"github.com/xraph/marketplace/types"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// IsValid reports whether v is a known visibility.
func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransitionTo reports whether a listing in status s may move to next.
// Status only moves forward; staying put is allowed while non-terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusDraft || next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusActive || next == StatusClosed || next == StatusCancelled
	default:
		return false
	}
}

// Listing is a request for quotes published by a company.
type Listing struct {
	types.Entity
	ID             uint64     `json:"id" bson:"id"`
	ListingNumber  string     `json:"listing_number" bson:"listing_number"`
	CompanyShareID string     `json:"company_share_id" bson:"company_share_id"`
	ContentHash    string     `json:"content_hash" bson:"content_hash"`
	BasePrice      uint64     `json:"base_price" bson:"base_price"`
	Visibility     Visibility `json:"visibility" bson:"visibility"`
	Status         Status     `json:"status" bson:"status"`
	OpensAt        time.Time  `json:"opens_at,omitzero" bson:"opens_at,omitempty"`
	ClosesAt       time.Time  `json:"closes_at,omitzero" bson:"closes_at,omitempty"`
	CreatedBy      string     `json:"created_by" bson:"created_by"`

	// AuthorizedVendors is only meaningful for private listings; public
	// listings authorize every vendor without storing them.
	AuthorizedVendors []string `json:"authorized_vendors,omitempty" bson:"authorized_vendors,omitempty"`
}

// IsActive reports whether the listing accepts quotes.
func (l *Listing) IsActive() bool { return l.Status == StatusActive }

// Authorizes reports whether the vendor may quote on the listing.
func (l *Listing) Authorizes(vendorShareID string) bool {
	if l.Visibility == VisibilityPublic {
		return true
	}
	return slices.Contains(l.AuthorizedVendors, vendorShareID)
}

// Package quote defines vendor quotes submitted against listings.
package quote

import (
	"time"

	"github.com/xraph/marketplace/types"
)

type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusWithdrawn   Status = "withdrawn"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s may be set by a listing reviewer.
func (s Status) IsReviewOutcome() bool {
	return s == StatusUnderReview || s == StatusAccepted || s == StatusRejected
}

// Modifiable reports whether the vendor may still edit a quote in status s.
func (s Status) Modifiable() bool {
	return s == StatusSubmitted || s == StatusUnderReview
}

// Quote is a vendor's priced proposal on a listing. A vendor holds at most
// one non-withdrawn quote per listing.
type Quote struct {
	types.Entity
	ID              uint64     `json:"id" bson:"id"`
	QuoteNumber     string     `json:"quote_number" bson:"quote_number"`
	ListingID       uint64     `json:"listing_id" bson:"listing_id"`
	VendorShareID   string     `json:"vendor_share_id" bson:"vendor_share_id"`
	QuotedPrice     uint64     `json:"quoted_price" bson:"quoted_price"`
	ProposalHash    string     `json:"proposal_hash" bson:"proposal_hash"`
	DeliveryDays    uint32     `json:"delivery_days" bson:"delivery_days"`
	ValidUntil      time.Time  `json:"valid_until,omitzero" bson:"valid_until,omitempty"`
	Status          Status     `json:"status" bson:"status"`
	SubmittedBy     string     `json:"submitted_by" bson:"submitted_by"`
	ReviewNotesHash string     `json:"review_notes_hash,omitempty" bson:"review_notes_hash,omitempty"`
	ReviewedBy      string     `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

// IsOpen reports whether the quote still occupies the vendor's slot on its
// listing.
func (q *Quote) IsOpen() bool { return q.Status != StatusWithdrawn }

// Filter narrows quote listings. Zero fields match all.
type Filter struct {
	ListingID     uint64
	VendorShareID string
}

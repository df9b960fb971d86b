package marketplace

import (
	"context"
	"time"

	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/quote"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/types"
)

// ──────────────────────────────────────────────────
// Quote Ledger
// ──────────────────────────────────────────────────

// QuoteParams describes a quote to submit. ValidUntil is optional.
type QuoteParams struct {
	QuoteNumber   string    `json:"quote_number"`
	ListingID     uint64    `json:"listing_id"`
	VendorShareID string    `json:"vendor_share_id"`
	Price         uint64    `json:"price"`
	ProposalHash  string    `json:"proposal_hash"`
	DeliveryDays  uint32    `json:"delivery_days"`
	ValidUntil    time.Time `json:"valid_until,omitzero"`
}

func (p QuoteParams) validate() error {
	if err := requireKey("quote_number", p.QuoteNumber); err != nil {
		return err
	}
	if p.ListingID == 0 {
		return invalid("listing_id", "must not be empty")
	}
	if err := requireKey("vendor_share_id", p.VendorShareID); err != nil {
		return err
	}
	return validateTerms(p.Price, p.ProposalHash, p.DeliveryDays)
}

func validateTerms(price uint64, proposalHash string, deliveryDays uint32) error {
	if err := requireAmount("price", price); err != nil {
		return err
	}
	if err := requireHash("proposal_hash", proposalHash); err != nil {
		return err
	}
	if deliveryDays == 0 {
		return invalid("delivery_days", "must be greater than zero")
	}
	return nil
}

// SubmitQuote records a vendor's quote on an active listing. The vendor
// must be authorized for the listing and hold no other open quote on it.
func (m *Marketplace) SubmitQuote(ctx context.Context, caller Caller, p QuoteParams) (*quote.Quote, error) {
	if err := requireCaller(caller, "submit quote"); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var submitted *quote.Quote
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		vendor, err := activeEntity(ctx, o.tx, "vendor_share_id", p.VendorShareID, entity.KindVendor)
		if err != nil {
			return err
		}
		if !allows(caller, vendor.Registrar, false) {
			return deny(caller, "submit quote")
		}

		l, err := o.tx.GetListing(ctx, p.ListingID)
		if err != nil {
			return err
		}
		if !l.IsActive() {
			return ErrListingNotActive
		}
		if !l.Authorizes(p.VendorShareID) {
			return ErrVendorNotAuthorized
		}

		_, err = o.tx.FindOpenQuote(ctx, l.ID, p.VendorShareID)
		if open, err := found(err); err != nil {
			return err
		} else if open {
			return ErrAlreadySubmitted
		}

		_, err = o.tx.GetQuoteByNumber(ctx, p.QuoteNumber)
		if taken, err := found(err); err != nil {
			return err
		} else if taken {
			return ErrQuoteNumberTaken
		}

		if !p.ValidUntil.IsZero() && p.ValidUntil.Before(o.now) {
			return invalid("valid_until", "must not be in the past")
		}

		seq, err := o.tx.NextSequence(ctx, store.SeqQuote)
		if err != nil {
			return err
		}

		q := &quote.Quote{
			Entity:        types.NewEntity(o.now),
			ID:            seq,
			QuoteNumber:   p.QuoteNumber,
			ListingID:     l.ID,
			VendorShareID: p.VendorShareID,
			QuotedPrice:   p.Price,
			ProposalHash:  p.ProposalHash,
			DeliveryDays:  p.DeliveryDays,
			ValidUntil:    utcOrZero(p.ValidUntil),
			Status:        quote.StatusSubmitted,
			SubmittedBy:   caller.ID,
		}
		if err := o.tx.CreateQuote(ctx, q); err != nil {
			return err
		}

		submitted = q
		return o.emit(ctx, event.QuoteSubmitted, aggregateID("quote", q.ID), q)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("quote submitted",
		"quote_id", submitted.ID,
		"listing_id", submitted.ListingID,
		"vendor", submitted.VendorShareID,
	)
	return submitted, nil
}

// UpdateQuote replaces the price, proposal and delivery time of a quote
// that is still submitted or under review.
func (m *Marketplace) UpdateQuote(ctx context.Context, caller Caller, quoteID uint64, price uint64, proposalHash string, deliveryDays uint32) (*quote.Quote, error) {
	if err := validateTerms(price, proposalHash, deliveryDays); err != nil {
		return nil, err
	}

	var updated *quote.Quote
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		q, err := vendorQuote(ctx, o, quoteID, "update quote")
		if err != nil {
			return err
		}
		if !q.Status.Modifiable() {
			return ErrQuoteNotModifiable
		}

		q.QuotedPrice = price
		q.ProposalHash = proposalHash
		q.DeliveryDays = deliveryDays
		q.Touch(o.now)
		if err := o.tx.UpdateQuote(ctx, q); err != nil {
			return err
		}

		updated = q
		return o.emit(ctx, event.QuoteUpdated, aggregateID("quote", q.ID), q)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// WithdrawQuote withdraws a quote, freeing the vendor to submit another on
// the same listing. Accepted quotes cannot be withdrawn.
func (m *Marketplace) WithdrawQuote(ctx context.Context, caller Caller, quoteID uint64) (*quote.Quote, error) {
	var withdrawn *quote.Quote
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		q, err := vendorQuote(ctx, o, quoteID, "withdraw quote")
		if err != nil {
			return err
		}
		if q.Status == quote.StatusAccepted || q.Status == quote.StatusWithdrawn {
			return ErrQuoteNotWithdrawable
		}

		q.Status = quote.StatusWithdrawn
		q.Touch(o.now)
		if err := o.tx.UpdateQuote(ctx, q); err != nil {
			return err
		}

		withdrawn = q
		return o.emit(ctx, event.QuoteWithdrawn, aggregateID("quote", q.ID), q)
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// ReviewQuote moves a quote to under review, accepted or rejected. Allowed
// for the listing company's registrar and, per policy, the admin.
func (m *Marketplace) ReviewQuote(ctx context.Context, caller Caller, quoteID uint64, status quote.Status, notesHash string) (*quote.Quote, error) {
	if !status.IsReviewOutcome() {
		return nil, ErrInvalidReviewStatus
	}
	if err := optionalHash("notes_hash", notesHash); err != nil {
		return nil, err
	}

	var reviewed *quote.Quote
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		q, err := o.tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}

		l, err := o.tx.GetListing(ctx, q.ListingID)
		if err != nil {
			return err
		}
		company, err := o.tx.GetEntity(ctx, l.CompanyShareID)
		if err != nil {
			return err
		}
		if !allows(caller, company.Registrar, m.policy.ReviewQuote) {
			return deny(caller, "review quote")
		}
		if !q.Status.Modifiable() {
			return ErrQuoteNotReviewable
		}

		q.Status = status
		q.ReviewNotesHash = notesHash
		q.ReviewedBy = caller.ID
		q.ReviewedAt = &o.now
		q.Touch(o.now)
		if err := o.tx.UpdateQuote(ctx, q); err != nil {
			return err
		}

		reviewed = q
		return o.emit(ctx, event.QuoteReviewed, aggregateID("quote", q.ID), q)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("quote reviewed", "quote_id", quoteID, "status", status)
	return reviewed, nil
}

// vendorQuote loads a quote whose vendor the caller controls.
func vendorQuote(ctx context.Context, o *op, quoteID uint64, opName string) (*quote.Quote, error) {
	q, err := o.tx.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	vendor, err := o.tx.GetEntity(ctx, q.VendorShareID)
	if err != nil {
		return nil, err
	}
	if !allows(o.caller, vendor.Registrar, false) {
		return nil, deny(o.caller, opName)
	}
	return q, nil
}

// GetQuote returns a quote by id.
func (m *Marketplace) GetQuote(ctx context.Context, quoteID uint64) (*quote.Quote, error) {
	return m.store.GetQuote(ctx, quoteID)
}

// GetQuoteByNumber returns the quote submitted under quoteNumber.
func (m *Marketplace) GetQuoteByNumber(ctx context.Context, quoteNumber string) (*quote.Quote, error) {
	return m.store.GetQuoteByNumber(ctx, quoteNumber)
}

// QuotesByListing returns every quote on a listing in submission order.
func (m *Marketplace) QuotesByListing(ctx context.Context, listingID uint64) ([]*quote.Quote, error) {
	return m.store.ListQuotes(ctx, quote.Filter{ListingID: listingID})
}

// QuotesByVendor returns every quote a vendor submitted in submission order.
func (m *Marketplace) QuotesByVendor(ctx context.Context, vendorShareID string) ([]*quote.Quote, error) {
	return m.store.ListQuotes(ctx, quote.Filter{VendorShareID: vendorShareID})
}

// HasVendorQuoted reports whether the vendor holds an open quote on the listing.
func (m *Marketplace) HasVendorQuoted(ctx context.Context, listingID uint64, vendorShareID string) (bool, error) {
	_, err := m.store.FindOpenQuote(ctx, listingID, vendorShareID)
	return found(err)
}

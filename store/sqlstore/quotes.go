package sqlstore

import (
	"context"
	"strings"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/quote"
)

// ==================== Quote Store ====================

const quoteColumns = `id, quote_number, listing_id, vendor_share_id, quoted_price, proposal_hash, delivery_days,
    valid_until, status, submitted_by, review_notes_hash, reviewed_by, reviewed_at, created_at, updated_at`

func scanQuote(r row) (*quote.Quote, error) {
	var (
		q                                 quote.Quote
		valid, reviewed, created, updated timestamp
	)
	err := r.Scan(&q.ID, &q.QuoteNumber, &q.ListingID, &q.VendorShareID, &q.QuotedPrice, &q.ProposalHash, &q.DeliveryDays,
		&valid, &q.Status, &q.SubmittedBy, &q.ReviewNotesHash, &q.ReviewedBy, &reviewed, &created, &updated)
	if err != nil {
		return nil, err
	}
	q.ValidUntil = valid.Time
	q.ReviewedAt = reviewed.ptr()
	q.CreatedAt, q.UpdatedAt = created.Time, updated.Time
	return &q, nil
}

func (s *Store) CreateQuote(ctx context.Context, q *quote.Quote) error {
	_, err := s.exec(ctx, `INSERT INTO mp_quotes (`+quoteColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuoteNumber, q.ListingID, q.VendorShareID, q.QuotedPrice, q.ProposalHash, q.DeliveryDays,
		s.d.zeroTS(q.ValidUntil), q.Status, q.SubmittedBy, q.ReviewNotesHash, q.ReviewedBy, s.d.nullTS(q.ReviewedAt),
		s.d.ts(q.CreatedAt), s.d.ts(q.UpdatedAt),
	)
	if detail, ok := s.uniqueViolation(err); ok {
		if strings.Contains(detail, "quote_number") {
			return marketplace.ErrQuoteNumberTaken
		}
		return marketplace.ErrAlreadySubmitted
	}
	return err
}

func (s *Store) GetQuote(ctx context.Context, quoteID uint64) (*quote.Quote, error) {
	q, err := scanQuote(s.queryRow(ctx, `SELECT `+quoteColumns+` FROM mp_quotes WHERE id = ?`, quoteID))
	if err != nil {
		return nil, noRows(err, marketplace.ErrQuoteNotFound)
	}
	return q, nil
}

func (s *Store) GetQuoteByNumber(ctx context.Context, quoteNumber string) (*quote.Quote, error) {
	q, err := scanQuote(s.queryRow(ctx, `SELECT `+quoteColumns+` FROM mp_quotes WHERE quote_number = ?`, quoteNumber))
	if err != nil {
		return nil, noRows(err, marketplace.ErrQuoteNotFound)
	}
	return q, nil
}

func (s *Store) UpdateQuote(ctx context.Context, q *quote.Quote) error {
	err := s.execOne(ctx, marketplace.ErrQuoteNotFound, `
UPDATE mp_quotes
SET quoted_price = ?, proposal_hash = ?, delivery_days = ?, valid_until = ?, status = ?,
    review_notes_hash = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
WHERE id = ?`,
		q.QuotedPrice, q.ProposalHash, q.DeliveryDays, s.d.zeroTS(q.ValidUntil), q.Status,
		q.ReviewNotesHash, q.ReviewedBy, s.d.nullTS(q.ReviewedAt), s.d.ts(q.UpdatedAt), q.ID,
	)
	return s.conflict(err, marketplace.ErrAlreadySubmitted)
}

func (s *Store) ListQuotes(ctx context.Context, f quote.Filter) ([]*quote.Quote, error) {
	var (
		conds []string
		args  []any
	)
	if f.ListingID != 0 {
		conds = append(conds, "listing_id = ?")
		args = append(args, f.ListingID)
	}
	if f.VendorShareID != "" {
		conds = append(conds, "vendor_share_id = ?")
		args = append(args, f.VendorShareID)
	}

	query := `SELECT ` + quoteColumns + ` FROM mp_quotes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(r driver.Rows) (*quote.Quote, error) { return scanQuote(r) })
}

func (s *Store) FindOpenQuote(ctx context.Context, listingID uint64, vendorShareID string) (*quote.Quote, error) {
	q, err := scanQuote(s.queryRow(ctx, `SELECT `+quoteColumns+` FROM mp_quotes
WHERE listing_id = ? AND vendor_share_id = ? AND status <> ?`,
		listingID, vendorShareID, quote.StatusWithdrawn,
	))
	if err != nil {
		return nil, noRows(err, marketplace.ErrQuoteNotFound)
	}
	return q, nil
}

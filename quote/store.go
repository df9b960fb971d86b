package quote

import "context"

// Store persists quotes.
type Store interface {
	CreateQuote(ctx context.Context, q *Quote) error
	GetQuote(ctx context.Context, quoteID uint64) (*Quote, error)
	GetQuoteByNumber(ctx context.Context, quoteNumber string) (*Quote, error)
	UpdateQuote(ctx context.Context, q *Quote) error
	ListQuotes(ctx context.Context, f Filter) ([]*Quote, error)
	// FindOpenQuote returns the vendor's non-withdrawn quote on a listing, if any.
	FindOpenQuote(ctx context.Context, listingID uint64, vendorShareID string) (*Quote, error)
}

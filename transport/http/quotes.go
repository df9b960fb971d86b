package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/quote"
)

func (s *Server) quoteRoutes(r chi.Router) {
	r.Post("/quotes", create(s.submitQuote))
	r.Get("/quotes/by-number/{number}", handle(s.getQuoteByNumber))
	r.Get("/quotes/{quoteID}", handle(s.getQuote))
	r.Patch("/quotes/{quoteID}", handle(s.updateQuote))
	r.Post("/quotes/{quoteID}/withdraw", handle(s.withdrawQuote))
	r.Post("/quotes/{quoteID}/review", handle(s.reviewQuote))

	r.Get("/listings/{listingID}/quotes", handle(s.quotesByListing))
	r.Get("/listings/{listingID}/quotes/{vendor}", handle(s.hasVendorQuoted))
	r.Get("/vendors/{shareID}/quotes", handle(s.quotesByVendor))
}

type updateQuoteRequest struct {
	Price        uint64 `json:"price"`
	ProposalHash string `json:"proposal_hash"`
	DeliveryDays uint32 `json:"delivery_days"`
}

type reviewQuoteRequest struct {
	Status    quote.Status `json:"status"`
	NotesHash string       `json:"notes_hash"`
}

func (s *Server) submitQuote(r *http.Request) (any, error) {
	var p marketplace.QuoteParams
	if err := decode(r, &p); err != nil {
		return nil, err
	}
	return s.mp.SubmitQuote(r.Context(), callerFrom(r), p)
}

func (s *Server) getQuote(r *http.Request) (any, error) {
	quoteID, err := pathUint(r, "quoteID")
	if err != nil {
		return nil, err
	}
	return s.mp.GetQuote(r.Context(), quoteID)
}

func (s *Server) getQuoteByNumber(r *http.Request) (any, error) {
	return s.mp.GetQuoteByNumber(r.Context(), chi.URLParam(r, "number"))
}

func (s *Server) updateQuote(r *http.Request) (any, error) {
	quoteID, err := pathUint(r, "quoteID")
	if err != nil {
		return nil, err
	}
	var req updateQuoteRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.UpdateQuote(r.Context(), callerFrom(r), quoteID, req.Price, req.ProposalHash, req.DeliveryDays)
}

func (s *Server) withdrawQuote(r *http.Request) (any, error) {
	quoteID, err := pathUint(r, "quoteID")
	if err != nil {
		return nil, err
	}
	return s.mp.WithdrawQuote(r.Context(), callerFrom(r), quoteID)
}

func (s *Server) reviewQuote(r *http.Request) (any, error) {
	quoteID, err := pathUint(r, "quoteID")
	if err != nil {
		return nil, err
	}
	var req reviewQuoteRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.ReviewQuote(r.Context(), callerFrom(r), quoteID, req.Status, req.NotesHash)
}

func (s *Server) quotesByListing(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return s.mp.QuotesByListing(r.Context(), listingID)
}

func (s *Server) hasVendorQuoted(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	ok, err := s.mp.HasVendorQuoted(r.Context(), listingID, chi.URLParam(r, "vendor"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"quoted": ok}, nil
}

func (s *Server) quotesByVendor(r *http.Request) (any, error) {
	return s.mp.QuotesByVendor(r.Context(), chi.URLParam(r, "shareID"))
}

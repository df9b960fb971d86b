package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/listing"
)

func (s *Server) listingRoutes(r chi.Router) {
	r.Post("/listings", create(s.createListing))
	r.Get("/listings/by-number/{number}", handle(s.getListingByNumber))
	r.Get("/listings/{listingID}", handle(s.getListing))
	r.Patch("/listings/{listingID}", handle(s.updateListing))
	r.Post("/listings/{listingID}/close", handle(s.closeListing))
	r.Post("/listings/{listingID}/cancel", handle(s.cancelListing))
	r.Get("/listings/{listingID}/active", handle(s.isListingActive))

	r.Get("/listings/{listingID}/vendors", handle(s.authorizedVendors))
	r.Get("/listings/{listingID}/vendors/{vendor}", handle(s.isVendorAuthorized))
	r.Put("/listings/{listingID}/vendors/{vendor}", handle(s.grantVendorAccess))
	r.Delete("/listings/{listingID}/vendors/{vendor}", handle(s.revokeVendorAccess))

	r.Get("/companies/{shareID}/listings", handle(s.listingsByCompany))
}

type updateListingRequest struct {
	ContentHash string         `json:"content_hash"`
	Status      listing.Status `json:"status"`
}

func (s *Server) createListing(r *http.Request) (any, error) {
	var p marketplace.ListingParams
	if err := decode(r, &p); err != nil {
		return nil, err
	}
	return s.mp.CreateListing(r.Context(), callerFrom(r), p)
}

func (s *Server) getListing(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return s.mp.GetListing(r.Context(), listingID)
}

func (s *Server) getListingByNumber(r *http.Request) (any, error) {
	return s.mp.GetListingByNumber(r.Context(), chi.URLParam(r, "number"))
}

func (s *Server) updateListing(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	var req updateListingRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.UpdateListing(r.Context(), callerFrom(r), listingID, req.ContentHash, req.Status)
}

func (s *Server) closeListing(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return s.mp.CloseListing(r.Context(), callerFrom(r), listingID)
}

func (s *Server) cancelListing(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return s.mp.CancelListing(r.Context(), callerFrom(r), listingID)
}

func (s *Server) isListingActive(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	ok, err := s.mp.IsListingActive(r.Context(), listingID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"active": ok}, nil
}

func (s *Server) authorizedVendors(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	vendors, err := s.mp.AuthorizedVendors(r.Context(), listingID)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"vendors": vendors}, nil
}

func (s *Server) isVendorAuthorized(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	ok, err := s.mp.IsVendorAuthorized(r.Context(), listingID, chi.URLParam(r, "vendor"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"authorized": ok}, nil
}

func (s *Server) grantVendorAccess(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return nil, s.mp.GrantVendorAccess(r.Context(), callerFrom(r), listingID, chi.URLParam(r, "vendor"))
}

func (s *Server) revokeVendorAccess(r *http.Request) (any, error) {
	listingID, err := pathUint(r, "listingID")
	if err != nil {
		return nil, err
	}
	return nil, s.mp.RevokeVendorAccess(r.Context(), callerFrom(r), listingID, chi.URLParam(r, "vendor"))
}

func (s *Server) listingsByCompany(r *http.Request) (any, error) {
	return s.mp.ListingsByCompany(r.Context(), chi.URLParam(r, "shareID"))
}

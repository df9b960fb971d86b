package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace/connection"
)

func (s *Server) connectionRoutes(r chi.Router) {
	r.Post("/requests", create(s.sendRequest))
	r.Get("/requests/{requestID}", handle(s.getRequest))
	r.Post("/requests/{requestID}/approve", handle(s.approveRequest))
	r.Post("/requests/{requestID}/deny", handle(s.denyRequest))
	r.Post("/requests/{requestID}/cancel", handle(s.cancelRequest))

	r.Get("/connections/{connectionID}", handle(s.getConnection))
	r.Post("/connections/{connectionID}/revoke", handle(s.revokeConnection))
	r.Get("/connected", handle(s.isConnected))

	r.Get("/vendors/{shareID}/requests", handle(s.requestsByVendor))
	r.Get("/companies/{shareID}/requests", handle(s.requestsByCompany))
	r.Get("/vendors/{shareID}/connections", handle(s.connectionsByVendor))
	r.Get("/companies/{shareID}/connections", handle(s.connectionsByCompany))
}

type sendRequestRequest struct {
	VendorShareID  string `json:"vendor_share_id"`
	CompanyShareID string `json:"company_share_id"`
	MessageHash    string `json:"message_hash"`
}

// approval is the response of an approved request.
type approval struct {
	Request    *connection.Request    `json:"request"`
	Connection *connection.Connection `json:"connection"`
}

func (s *Server) sendRequest(r *http.Request) (any, error) {
	var req sendRequestRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.SendConnectionRequest(r.Context(), callerFrom(r), req.VendorShareID, req.CompanyShareID, req.MessageHash)
}

func (s *Server) getRequest(r *http.Request) (any, error) {
	requestID, err := pathUint(r, "requestID")
	if err != nil {
		return nil, err
	}
	return s.mp.GetRequest(r.Context(), requestID)
}

func (s *Server) approveRequest(r *http.Request) (any, error) {
	requestID, err := pathUint(r, "requestID")
	if err != nil {
		return nil, err
	}
	var req struct {
		NotesHash string `json:"notes_hash"`
	}
	if err := decodeOptional(r, &req); err != nil {
		return nil, err
	}
	cr, conn, err := s.mp.ApproveRequest(r.Context(), callerFrom(r), requestID, req.NotesHash)
	if err != nil {
		return nil, err
	}
	return approval{Request: cr, Connection: conn}, nil
}

func (s *Server) denyRequest(r *http.Request) (any, error) {
	requestID, err := pathUint(r, "requestID")
	if err != nil {
		return nil, err
	}
	var req struct {
		ReasonHash string `json:"reason_hash"`
	}
	if err := decodeOptional(r, &req); err != nil {
		return nil, err
	}
	return s.mp.DenyRequest(r.Context(), callerFrom(r), requestID, req.ReasonHash)
}

func (s *Server) cancelRequest(r *http.Request) (any, error) {
	requestID, err := pathUint(r, "requestID")
	if err != nil {
		return nil, err
	}
	return s.mp.CancelRequest(r.Context(), callerFrom(r), requestID)
}

func (s *Server) getConnection(r *http.Request) (any, error) {
	connectionID, err := pathUint(r, "connectionID")
	if err != nil {
		return nil, err
	}
	return s.mp.GetConnection(r.Context(), connectionID)
}

func (s *Server) revokeConnection(r *http.Request) (any, error) {
	connectionID, err := pathUint(r, "connectionID")
	if err != nil {
		return nil, err
	}
	var req struct {
		ReasonHash string `json:"reason_hash"`
	}
	if err := decodeOptional(r, &req); err != nil {
		return nil, err
	}
	return s.mp.RevokeConnection(r.Context(), callerFrom(r), connectionID, req.ReasonHash)
}

func (s *Server) isConnected(r *http.Request) (any, error) {
	q := r.URL.Query()
	ok, err := s.mp.IsConnected(r.Context(), q.Get("vendor"), q.Get("company"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"connected": ok}, nil
}

func (s *Server) requestsByVendor(r *http.Request) (any, error) {
	return s.mp.RequestsByVendor(r.Context(), chi.URLParam(r, "shareID"))
}

func (s *Server) requestsByCompany(r *http.Request) (any, error) {
	return s.mp.RequestsByCompany(r.Context(), chi.URLParam(r, "shareID"))
}

func (s *Server) connectionsByVendor(r *http.Request) (any, error) {
	return s.mp.ConnectionsByVendor(r.Context(), chi.URLParam(r, "shareID"))
}

func (s *Server) connectionsByCompany(r *http.Request) (any, error) {
	return s.mp.ConnectionsByCompany(r.Context(), chi.URLParam(r, "shareID"))
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) pointRoutes(r chi.Router) {
	r.Route("/points", func(r chi.Router) {
		r.Post("/mint", handle(s.mint))
		r.Post("/deduct", handle(s.deduct))
		r.Post("/deduct/listing", handle(s.deductForListing))
		r.Post("/deduct/quote", handle(s.deductForQuote))
		r.Post("/transfer", handle(s.transfer))
		r.Post("/transfer-from", handle(s.transferFrom))
		r.Post("/approve", handle(s.approve))
		r.Post("/burn", handle(s.burn))

		r.Get("/costs", handle(s.costs))
		r.Put("/costs", handle(s.setCosts))
		r.Get("/supply", handle(s.totalSupply))

		r.Post("/deductors", handle(s.authorizeDeductor))
		r.Get("/deductors/{identity}", handle(s.isDeductor))
		r.Delete("/deductors/{identity}", handle(s.revokeDeductor))

		r.Get("/accounts/{owner}", handle(s.balance))
		r.Get("/accounts/{owner}/history", handle(s.history))
		r.Get("/accounts/{owner}/allowances/{spender}", handle(s.allowance))
	})
}

type amountRequest struct {
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Spender  string `json:"spender,omitempty"`
	Amount   uint64 `json:"amount"`
	NoteHash string `json:"note_hash,omitempty"`
}

type costsRequest struct {
	Listing uint64 `json:"listing"`
	Quote   uint64 `json:"quote"`
}

func (s *Server) mint(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.Mint(r.Context(), callerFrom(r), req.To, req.Amount, req.NoteHash)
}

func (s *Server) deduct(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.Deduct(r.Context(), callerFrom(r), req.Owner, req.Amount, req.NoteHash)
}

func (s *Server) deductForListing(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.DeductForListing(r.Context(), callerFrom(r), req.Owner, req.NoteHash)
}

func (s *Server) deductForQuote(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.DeductForQuote(r.Context(), callerFrom(r), req.Owner, req.NoteHash)
}

func (s *Server) transfer(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mp.Transfer(r.Context(), callerFrom(r), req.From, req.To, req.Amount, req.NoteHash)
}

func (s *Server) transferFrom(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mp.TransferFrom(r.Context(), callerFrom(r), req.From, req.To, req.Amount, req.NoteHash)
}

func (s *Server) approve(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mp.Approve(r.Context(), callerFrom(r), req.Spender, req.Amount)
}

func (s *Server) burn(r *http.Request) (any, error) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.Burn(r.Context(), callerFrom(r), req.Amount, req.NoteHash)
}

func (s *Server) costs(r *http.Request) (any, error) {
	return s.mp.Costs(r.Context())
}

func (s *Server) setCosts(r *http.Request) (any, error) {
	var req costsRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.SetCosts(r.Context(), callerFrom(r), req.Listing, req.Quote)
}

func (s *Server) totalSupply(r *http.Request) (any, error) {
	total, err := s.mp.TotalSupply(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"total_supply": total}, nil
}

func (s *Server) authorizeDeductor(r *http.Request) (any, error) {
	var req struct {
		Identity string `json:"identity"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mp.AuthorizeDeductor(r.Context(), callerFrom(r), req.Identity)
}

func (s *Server) isDeductor(r *http.Request) (any, error) {
	ok, err := s.mp.IsDeductor(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deductor": ok}, nil
}

func (s *Server) revokeDeductor(r *http.Request) (any, error) {
	return nil, s.mp.RevokeDeductor(r.Context(), callerFrom(r), chi.URLParam(r, "identity"))
}

func (s *Server) balance(r *http.Request) (any, error) {
	owner := chi.URLParam(r, "owner")
	balance, err := s.mp.Balance(r.Context(), owner)
	if err != nil {
		return nil, err
	}
	return map[string]any{"owner": owner, "balance": balance}, nil
}

func (s *Server) history(r *http.Request) (any, error) {
	limit, err := queryUint(r, "limit")
	if err != nil {
		return nil, err
	}
	return s.mp.PointHistory(r.Context(), chi.URLParam(r, "owner"), int(limit))
}

func (s *Server) allowance(r *http.Request) (any, error) {
	amount, err := s.mp.Allowance(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "spender"))
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"allowance": amount}, nil
}

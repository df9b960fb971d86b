package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace/event"
)

const defaultEventLimit = 100

func (s *Server) eventRoutes(r chi.Router) {
	r.Get("/events", handle(s.listEvents))
}

func (s *Server) listEvents(r *http.Request) (any, error) {
	after, err := queryUint(r, "after")
	if err != nil {
		return nil, err
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = defaultEventLimit
	}

	q := r.URL.Query()
	return s.mp.ListEvents(r.Context(), event.Filter{
		AggregateID: q.Get("aggregate_id"),
		Category:    event.Category(q.Get("category")),
		AfterSeq:    after,
		Limit:       int(limit),
	})
}

// Package httpapi exposes every marketplace operation as a JSON RPC route
// under /v1.
//
// The caller is taken from the X-Caller-ID and X-Caller-Role headers. The
// server trusts them; authentication belongs to whatever sits in front.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/marketplace"
)

// Header names carrying the caller identity.
const (
	HeaderCallerID   = "X-Caller-ID"
	HeaderCallerRole = "X-Caller-Role"
)

// Server serves the marketplace RPC surface.
type Server struct {
	mp       *marketplace.Marketplace
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the registry served on /metrics. The default gatherer
// is used otherwise.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a Server over mp.
func New(mp *marketplace.Marketplace, opts ...Option) *Server {
	s := &Server{
		mp:       mp,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every route mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		s.entityRoutes(r)
		s.connectionRoutes(r)
		s.listingRoutes(r)
		s.quoteRoutes(r)
		s.pointRoutes(r)
		s.eventRoutes(r)
	})
	return r
}

// Handler is Routes as a plain http.Handler.
func (s *Server) Handler() http.Handler { return s.Routes() }

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.mp.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// callerFrom reads the caller headers. A missing role means member.
func callerFrom(r *http.Request) marketplace.Caller {
	c := marketplace.Caller{
		ID:   r.Header.Get(HeaderCallerID),
		Role: marketplace.Role(r.Header.Get(HeaderCallerRole)),
	}
	if c.Role == "" {
		c.Role = marketplace.RoleMember
	}
	return c
}

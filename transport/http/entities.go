package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace/entity"
)

func (s *Server) entityRoutes(r chi.Router) {
	r.Post("/entities", create(s.registerEntity))
	r.Get("/entities/{shareID}", handle(s.getEntity))
	r.Get("/entities/{shareID}/registered", handle(s.isRegistered))
	r.Get("/entities/{shareID}/exists", handle(s.exists))
	r.Post("/entities/{shareID}/deactivate", handle(s.deactivateEntity))
	r.Post("/entities/{shareID}/reactivate", handle(s.reactivateEntity))
	r.Put("/entities/{shareID}/metadata", handle(s.updateMetadata))
	r.Get("/registrars/{registrar}/entities", handle(s.entitiesByRegistrar))
	r.Get("/stats", handle(s.platformStats))
}

type registerEntityRequest struct {
	ShareID      string      `json:"share_id"`
	Name         string      `json:"name"`
	Kind         entity.Kind `json:"kind"`
	MetadataHash string      `json:"metadata_hash"`
}

func (s *Server) registerEntity(r *http.Request) (any, error) {
	var req registerEntityRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.RegisterEntity(r.Context(), callerFrom(r), req.ShareID, req.Name, req.Kind, req.MetadataHash)
}

func (s *Server) getEntity(r *http.Request) (any, error) {
	return s.mp.GetEntity(r.Context(), chi.URLParam(r, "shareID"))
}

func (s *Server) isRegistered(r *http.Request) (any, error) {
	ok, err := s.mp.IsRegistered(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"registered": ok}, nil
}

func (s *Server) exists(r *http.Request) (any, error) {
	ok, err := s.mp.Exists(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"exists": ok}, nil
}

func (s *Server) deactivateEntity(r *http.Request) (any, error) {
	return s.mp.DeactivateEntity(r.Context(), callerFrom(r), chi.URLParam(r, "shareID"))
}

func (s *Server) reactivateEntity(r *http.Request) (any, error) {
	return s.mp.ReactivateEntity(r.Context(), callerFrom(r), chi.URLParam(r, "shareID"))
}

func (s *Server) updateMetadata(r *http.Request) (any, error) {
	var req struct {
		MetadataHash string `json:"metadata_hash"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.mp.UpdateMetadata(r.Context(), callerFrom(r), chi.URLParam(r, "shareID"), req.MetadataHash)
}

func (s *Server) entitiesByRegistrar(r *http.Request) (any, error) {
	return s.mp.EntitiesByRegistrar(r.Context(), chi.URLParam(r, "registrar"))
}

func (s *Server) platformStats(r *http.Request) (any, error) {
	return s.mp.PlatformStats(r.Context())
}

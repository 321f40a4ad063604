package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
)

type pactRequest struct {
	ContentHash              string `json:"content_hash"`
	RightsRoot               string `json:"rights_root"`
	URI                      string `json:"uri"`
	Version                  string `json:"version"`
	Mutable                  bool   `json:"mutable"`
	RevocationMode           string `json:"revocation_mode"`
	DefaultRevocableUnvested bool   `json:"default_revocable_unvested"`
}

func (req pactRequest) params() domain.PactParams {
	return domain.PactParams{
		ContentHash:              req.ContentHash,
		RightsRoot:               req.RightsRoot,
		URI:                      req.URI,
		Version:                  req.Version,
		Mutable:                  req.Mutable,
		RevocationMode:           domain.RevocationMode(req.RevocationMode),
		DefaultRevocableUnvested: req.DefaultRevocableUnvested,
	}
}

func registerPactRoutes(api chi.Router, s *server) {
	api.Post("/pacts", func(w http.ResponseWriter, r *http.Request) {
		var req pactRequest
		if !s.readBody(w, r, &req) {
			return
		}
		pact, err := s.coord.CreatePact(r.Context(), principalFrom(r).PrincipalID, req.params())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"pact":       pact,
		})
	})

	api.Post("/pacts/{pact_id}/amendments", func(w http.ResponseWriter, r *http.Request) {
		var req pactRequest
		if !s.readBody(w, r, &req) {
			return
		}
		pactID := chi.URLParam(r, "pact_id")
		pact, err := s.coord.AmendPact(r.Context(), principalFrom(r).PrincipalID, pactID, req.params())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"pact":       pact,
		})
	})
}

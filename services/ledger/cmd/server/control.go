package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/httpx"
)

type transferAuthorityRequest struct {
	NewAuthority string `json:"new_authority"`
}

type transitionRequest struct {
	Vault string `json:"vault"`
}

type baseURIsRequest struct {
	ClaimBaseURI string `json:"claim_base_uri"`
	StakeBaseURI string `json:"stake_base_uri"`
}

// registerControlRoutes exposes the administrative gate. Every route here
// stops working forever once the transition fires.
func registerControlRoutes(api chi.Router, s *server) {
	writeControl := func(w http.ResponseWriter, r *http.Request) {
		ctl, err := s.coord.Control(r.Context())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"control":    ctl,
		})
	}

	api.Post("/control/pause", func(w http.ResponseWriter, r *http.Request) {
		if err := s.coord.Pause(r.Context(), principalFrom(r).PrincipalID); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeControl(w, r)
	})

	api.Post("/control/unpause", func(w http.ResponseWriter, r *http.Request) {
		if err := s.coord.Unpause(r.Context(), principalFrom(r).PrincipalID); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeControl(w, r)
	})

	api.Post("/control/authority", func(w http.ResponseWriter, r *http.Request) {
		var req transferAuthorityRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if err := s.coord.TransferAuthority(r.Context(), principalFrom(r).PrincipalID, req.NewAuthority); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeControl(w, r)
	})

	api.Post("/control/transition", func(w http.ResponseWriter, r *http.Request) {
		var req transitionRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if err := s.coord.InitiateTransition(r.Context(), principalFrom(r).PrincipalID, req.Vault); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeControl(w, r)
	})

	api.Put("/control/uris", func(w http.ResponseWriter, r *http.Request) {
		var req baseURIsRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if err := s.coord.SetBaseURIs(r.Context(), principalFrom(r).PrincipalID, req.ClaimBaseURI, req.StakeBaseURI); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeControl(w, r)
	})
}

package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/httpx"
)

type deriveIdentityRequest struct {
	ContentHash string `json:"content_hash"`
	Version     string `json:"version"`
}

// registerReadRoutes mounts the unauthenticated read surface. Everything here
// is a pure view over committed state; none of it is touched by pause or by
// the transition.
func registerReadRoutes(api chi.Router, s *server) {
	api.Get("/pacts/{pact_id}", func(w http.ResponseWriter, r *http.Request) {
		pactID := chi.URLParam(r, "pact_id")
		if isTrue(r.URL.Query().Get("try")) {
			pact, found, err := s.coord.TryGetPact(r.Context(), pactID)
			if err != nil {
				s.writeDomainError(w, r, err)
				return
			}
			resp := map[string]any{
				"request_id": httpx.RequestID(r),
				"found":      found,
			}
			if found {
				resp["pact"] = pact
			}
			httpx.WriteJSON(w, http.StatusOK, resp)
			return
		}
		pact, err := s.coord.GetPact(r.Context(), pactID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"pact":       pact,
		})
	})

	api.Get("/claims/{claim_id}", func(w http.ResponseWriter, r *http.Request) {
		claim, err := s.coord.GetClaim(r.Context(), chi.URLParam(r, "claim_id"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"claim":      viewClaim(claim),
		})
	})

	api.Get("/claims/by-key/{issuance_key}", func(w http.ResponseWriter, r *http.Request) {
		claim, err := s.coord.GetClaimByIssuanceKey(r.Context(), chi.URLParam(r, "issuance_key"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"claim":      viewClaim(claim),
		})
	})

	api.Get("/claims/{claim_id}/events", func(w http.ResponseWriter, r *http.Request) {
		s.writeRecordEvents(w, r, chi.URLParam(r, "claim_id"))
	})

	api.Get("/stakes/{stake_id}", func(w http.ResponseWriter, r *http.Request) {
		stake, err := s.coord.GetStake(r.Context(), chi.URLParam(r, "stake_id"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"stake":      stake,
		})
	})

	api.Get("/stakes/by-key/{redemption_key}", func(w http.ResponseWriter, r *http.Request) {
		stake, err := s.coord.GetStakeByRedemptionKey(r.Context(), chi.URLParam(r, "redemption_key"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"stake":      stake,
		})
	})

	api.Get("/stakes/{stake_id}/vesting", func(w http.ResponseWriter, r *http.Request) {
		var at *time.Time
		if raw := r.URL.Query().Get("at"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
					"BAD_REQUEST", "at must be RFC 3339", nil)
				return
			}
			at = &t
		}
		status, err := s.coord.VestingAt(r.Context(), chi.URLParam(r, "stake_id"), at)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id":     httpx.RequestID(r),
			"stake":          status.Stake,
			"at":             status.At,
			"vested_units":   status.Vested,
			"unvested_units": status.Unvested,
		})
	})

	api.Get("/stakes/{stake_id}/events", func(w http.ResponseWriter, r *http.Request) {
		s.writeRecordEvents(w, r, chi.URLParam(r, "stake_id"))
	})

	api.Get("/records/{record_id}/lock", func(w http.ResponseWriter, r *http.Request) {
		lock, err := s.coord.RecordLock(r.Context(), chi.URLParam(r, "record_id"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		resp := map[string]any{
			"request_id": httpx.RequestID(r),
			"record_id":  lock.RecordID,
			"kind":       lock.Kind,
			"owner":      lock.Owner,
			"locked":     lock.Locked,
		}
		if lock.URI != "" {
			resp["uri"] = lock.URI
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	})

	api.Get("/control", func(w http.ResponseWriter, r *http.Request) {
		ctl, err := s.coord.Control(r.Context())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"control":    ctl,
		})
	})

	api.Get("/identity", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id":    httpx.RequestID(r),
			"realm":         s.coord.Realm(),
			"issuer_entity": s.coord.IssuerEntity(),
			"issuer_id":     s.coord.IssuerID(),
		})
	})

	api.Post("/identity/derive", func(w http.ResponseWriter, r *http.Request) {
		var req deriveIdentityRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ContentHash) == "" || strings.TrimSpace(req.Version) == "" {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
				"BAD_REQUEST", "content_hash and version are required", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"issuer_id":  s.coord.IssuerID(),
			"pact_id":    s.coord.DerivePactID(req.ContentHash, req.Version),
		})
	})

	api.Get("/events/head", func(w http.ResponseWriter, r *http.Request) {
		head, found, err := s.coord.ChainHead(r.Context())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		resp := map[string]any{
			"request_id": httpx.RequestID(r),
			"found":      found,
		}
		if found {
			resp["event"] = head
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	})

	api.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		fromSeq := int64(1)
		if raw := r.URL.Query().Get("from"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
					"BAD_REQUEST", "from must be an integer", nil)
				return
			}
			fromSeq = v
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
					"BAD_REQUEST", "limit must be an integer", nil)
				return
			}
			limit = v
		}
		events, err := s.coord.Events(r.Context(), fromSeq, limit)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"events":     events,
		})
	})
}

func (s *server) writeRecordEvents(w http.ResponseWriter, r *http.Request, recordID string) {
	events, err := s.coord.EventsForRecord(r.Context(), recordID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"request_id": httpx.RequestID(r),
		"record_id":  recordID,
		"events":     events,
	})
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

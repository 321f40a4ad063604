package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/services/ledger/internal/ledger"
)

// claimView adds the derived remaining-unit count to the stored claim.
type claimView struct {
	domain.Claim
	RemainingUnits int64 `json:"remaining_units"`
}

func viewClaim(c domain.Claim) claimView {
	return claimView{Claim: c, RemainingUnits: c.RemainingUnits()}
}

type issueRequest struct {
	IssuanceKey  string    `json:"issuance_key"`
	Recipient    string    `json:"recipient"`
	PactID       string    `json:"pact_id"`
	MaxUnits     int64     `json:"max_units"`
	UnitType     string    `json:"unit_type"`
	RedeemableAt time.Time `json:"redeemable_at"`
}

type batchIssueRequest struct {
	IssuanceKeys  []string    `json:"issuance_keys"`
	Recipients    []string    `json:"recipients"`
	PactIDs       []string    `json:"pact_ids"`
	MaxUnits      []int64     `json:"max_units"`
	UnitTypes     []string    `json:"unit_types"`
	RedeemableAts []time.Time `json:"redeemable_ats"`
}

type voidClaimRequest struct {
	IssuanceKey string `json:"issuance_key"`
	ReasonHash  string `json:"reason_hash"`
}

func registerClaimRoutes(api chi.Router, s *server) {
	api.Post("/claims", func(w http.ResponseWriter, r *http.Request) {
		var req issueRequest
		if !s.readBody(w, r, &req) {
			return
		}
		claim, err := s.coord.Issue(r.Context(), principalFrom(r).PrincipalID, ledger.IssueParams{
			IssuanceKey:  req.IssuanceKey,
			Recipient:    req.Recipient,
			PactID:       req.PactID,
			MaxUnits:     req.MaxUnits,
			UnitType:     domain.UnitType(req.UnitType),
			RedeemableAt: req.RedeemableAt,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"claim":      viewClaim(claim),
		})
	})

	api.Post("/claims/batch", func(w http.ResponseWriter, r *http.Request) {
		var req batchIssueRequest
		if !s.readBody(w, r, &req) {
			return
		}
		unitTypes := make([]domain.UnitType, len(req.UnitTypes))
		for i, u := range req.UnitTypes {
			unitTypes[i] = domain.UnitType(u)
		}
		claims, err := s.coord.IssueBatch(r.Context(), principalFrom(r).PrincipalID, ledger.BatchIssueParams{
			IssuanceKeys:  req.IssuanceKeys,
			Recipients:    req.Recipients,
			PactIDs:       req.PactIDs,
			MaxUnits:      req.MaxUnits,
			UnitTypes:     unitTypes,
			RedeemableAts: req.RedeemableAts,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		views := make([]claimView, len(claims))
		for i, c := range claims {
			views[i] = viewClaim(c)
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"claims":     views,
		})
	})

	api.Post("/claims/void", func(w http.ResponseWriter, r *http.Request) {
		var req voidClaimRequest
		if !s.readBody(w, r, &req) {
			return
		}
		claim, err := s.coord.VoidClaim(r.Context(), principalFrom(r).PrincipalID, req.IssuanceKey, req.ReasonHash)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"claim":      viewClaim(claim),
		})
	})
}

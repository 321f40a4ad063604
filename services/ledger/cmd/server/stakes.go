package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/services/ledger/internal/ledger"
)

type redeemRequest struct {
	RedemptionKey string    `json:"redemption_key"`
	ClaimID       string    `json:"claim_id"`
	Units         int64     `json:"units"`
	UnitType      string    `json:"unit_type"`
	VestStart     time.Time `json:"vest_start"`
	VestCliff     time.Time `json:"vest_cliff"`
	VestEnd       time.Time `json:"vest_end"`
	Note          string    `json:"note"`
}

type revokeStakeRequest struct {
	ReasonHash string `json:"reason_hash"`
}

func registerStakeRoutes(api chi.Router, s *server) {
	api.Post("/stakes", func(w http.ResponseWriter, r *http.Request) {
		var req redeemRequest
		if !s.readBody(w, r, &req) {
			return
		}
		stake, err := s.coord.Redeem(r.Context(), principalFrom(r).PrincipalID, ledger.RedeemParams{
			RedemptionKey: req.RedemptionKey,
			ClaimID:       req.ClaimID,
			Units:         req.Units,
			UnitType:      domain.UnitType(req.UnitType),
			VestStart:     req.VestStart,
			VestCliff:     req.VestCliff,
			VestEnd:       req.VestEnd,
			Note:          req.Note,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"stake":      stake,
		})
	})

	api.Post("/stakes/{stake_id}/revoke", func(w http.ResponseWriter, r *http.Request) {
		var req revokeStakeRequest
		if !s.readBody(w, r, &req) {
			return
		}
		stakeID := chi.URLParam(r, "stake_id")
		stake, err := s.coord.RevokeStake(r.Context(), principalFrom(r).PrincipalID, stakeID, req.ReasonHash)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"stake":      stake,
		})
	})
}

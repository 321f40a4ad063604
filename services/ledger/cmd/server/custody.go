package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/httpx"
)

type custodyTransferRequest struct {
	RecordID string `json:"record_id"`
	NewOwner string `json:"new_owner"`
}

// registerCustodyRoutes is the one surface that outlives the transition. Only
// the custodial vault may call it, and only after the transition has fired;
// the coordinator enforces both.
func registerCustodyRoutes(api chi.Router, s *server) {
	api.Post("/transfers", func(w http.ResponseWriter, r *http.Request) {
		var req custodyTransferRequest
		if !s.readBody(w, r, &req) {
			return
		}
		actor := principalFrom(r).PrincipalID
		if err := s.coord.CustodianTransfer(r.Context(), actor, req.RecordID, req.NewOwner); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		lock, err := s.coord.RecordLock(r.Context(), req.RecordID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"record_id":  lock.RecordID,
			"kind":       lock.Kind,
			"owner":      lock.Owner,
		})
	})
}

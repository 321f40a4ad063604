package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/authn"
	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/pkg/logger"
	"grantlane/services/units/internal/unitledger"
)

type principalKey struct{}

func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := authn.ParseBearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusUnauthorized,
				"UNAUTHORIZED", "missing or malformed bearer token", nil)
			return
		}
		principal, err := s.engine.AuthenticateToken(r.Context(), token)
		if err != nil {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusUnauthorized,
				"UNAUTHORIZED", "unknown or disabled principal", nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		ctx = context.WithValue(ctx, logger.ActorKey, principal.PrincipalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) domain.Principal {
	p, _ := r.Context().Value(principalKey{}).(domain.Principal)
	return p
}

func statusForFamily(family domain.ErrorFamily) int {
	switch family {
	case domain.FamilyNotFound:
		return http.StatusNotFound
	case domain.FamilyConflict:
		return http.StatusConflict
	case domain.FamilyPrecondition:
		return http.StatusUnprocessableEntity
	case domain.FamilyState:
		return http.StatusConflict
	case domain.FamilyPrivilege:
		return http.StatusForbidden
	case domain.FamilyInputShape:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	family, code := unitledger.Classify(err)
	requestID := httpx.RequestID(r)
	if family == domain.FamilyInternal {
		logger.Error(r.Context(), "request failed", "error", err,
			"method", r.Method, "path", r.URL.Path)
		httpx.WriteError(w, requestID, http.StatusInternalServerError,
			"INTERNAL", "internal error", nil)
		return
	}
	httpx.WriteError(w, requestID, statusForFamily(family), code, err.Error(), nil)
}

func (s *server) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.ReadJSONLimit(w, r, dst, s.cfg.Server.MaxBodyBytes); err != nil {
		httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return false
	}
	return true
}

type mintRequest struct {
	MintKey string `json:"mint_key"`
	To      string `json:"to"`
	Amount  int64  `json:"amount"`
}

type setCapRequest struct {
	NewCap int64 `json:"new_cap"`
}

type allowRequest struct {
	Holder string `json:"holder"`
}

type registerHolderRequest struct {
	HolderID    string `json:"holder_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

func registerAdminRoutes(api chi.Router, s *server) {
	api.Post("/admin/mint", func(w http.ResponseWriter, r *http.Request) {
		var req mintRequest
		if !s.readBody(w, r, &req) {
			return
		}
		receipt, err := s.engine.Mint(r.Context(), principalFrom(r).PrincipalID, req.MintKey, req.To, req.Amount)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"mint":       receipt,
		})
	})

	api.Post("/admin/cap", func(w http.ResponseWriter, r *http.Request) {
		var req setCapRequest
		if !s.readBody(w, r, &req) {
			return
		}
		state, err := s.engine.SetCap(r.Context(), principalFrom(r).PrincipalID, req.NewCap)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"state":      state,
		})
	})

	api.Post("/admin/allowlist", func(w http.ResponseWriter, r *http.Request) {
		var req allowRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if err := s.engine.Allow(r.Context(), principalFrom(r).PrincipalID, req.Holder); err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"holder":     req.Holder,
			"allowed":    true,
		})
	})

	api.Delete("/admin/allowlist/{holder}", func(w http.ResponseWriter, r *http.Request) {
		holder := chi.URLParam(r, "holder")
		if err := s.engine.Disallow(r.Context(), principalFrom(r).PrincipalID, holder); err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"holder":     holder,
			"allowed":    false,
		})
	})

	api.Post("/admin/holders", func(w http.ResponseWriter, r *http.Request) {
		var req registerHolderRequest
		if !s.readBody(w, r, &req) {
			return
		}
		if req.HolderID == "" || req.Token == "" {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
				"BAD_REQUEST", "holder_id and token are required", nil)
			return
		}
		holder := domain.Principal{
			PrincipalID: req.HolderID,
			DisplayName: req.DisplayName,
			TokenHash:   authn.HashToken(req.Token),
			Status:      domain.PrincipalActive,
		}
		if err := s.engine.RegisterHolder(r.Context(), principalFrom(r).PrincipalID, holder); err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id": httpx.RequestID(r),
			"holder":     req.HolderID,
		})
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func registerTransferRoutes(api chi.Router, s *server) {
	api.Post("/transfers", func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if !s.readBody(w, r, &req) {
			return
		}
		actor := principalFrom(r).PrincipalID
		if err := s.engine.Transfer(r.Context(), actor, req.From, req.To, req.Amount); err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		balance, err := s.engine.BalanceOf(r.Context(), req.From)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"from":       req.From,
			"to":         req.To,
			"amount":     req.Amount,
			"balance":    balance,
		})
	})
}

func registerReadRoutes(api chi.Router, s *server) {
	api.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		state, err := s.engine.State(r.Context())
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"state":      state,
		})
	})

	api.Get("/balances", func(w http.ResponseWriter, r *http.Request) {
		balances, err := s.engine.Balances(r.Context())
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"balances":   balances,
		})
	})

	api.Get("/balances/{holder}", func(w http.ResponseWriter, r *http.Request) {
		holder := chi.URLParam(r, "holder")
		balance, err := s.engine.BalanceOf(r.Context(), holder)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"holder":     holder,
			"balance":    balance,
		})
	})

	api.Get("/allowlist", func(w http.ResponseWriter, r *http.Request) {
		allowed, err := s.engine.Allowed(r.Context())
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"allowed":    allowed,
		})
	})

	api.Get("/allowlist/{holder}", func(w http.ResponseWriter, r *http.Request) {
		holder := chi.URLParam(r, "holder")
		allowed, err := s.engine.IsAllowed(r.Context(), holder)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": httpx.RequestID(r),
			"holder":     holder,
			"allowed":    allowed,
		})
	})
}

package main

import (
	"errors"
	"net/http"

	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/pkg/logger"
)

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

// writeDomainError translates a coordinator error into the wire envelope.
// Unclassified errors are logged in full but reported generically; their
// text may contain driver details callers have no business seeing.
func (s *server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	family := domain.Classify(err)
	requestID := httpx.RequestID(r)

	var details any
	var bie *domain.BatchItemError
	if errors.As(err, &bie) {
		details = map[string]any{"batch_index": bie.Index}
	}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		details = map[string]any{"field": fe.Field}
	}

	if family == domain.FamilyInternal {
		logger.Error(r.Context(), "request failed", "error", err,
			"method", r.Method, "path", r.URL.Path)
		httpx.WriteError(w, requestID, http.StatusInternalServerError,
			"INTERNAL", "internal error", nil)
		return
	}
	httpx.WriteError(w, requestID, statusForFamily(family), domain.Code(err), err.Error(), details)
}

func (s *server) badJSON(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
}

func (s *server) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.ReadJSONLimit(w, r, dst, s.cfg.Server.MaxBodyBytes); err != nil {
		s.badJSON(w, r, err)
		return false
	}
	return true
}

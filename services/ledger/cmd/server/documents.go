package main

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/httpx"
)

// Document uploads carry whole pact sources, which run larger than the JSON
// bodies the rest of the API accepts.
const maxDocumentBytes = 10 << 20

// registerDocumentRoutes exposes the pact document archive. Uploads return
// the content hash a pact should carry; the archive itself never influences
// ledger state.
func registerDocumentRoutes(api chi.Router, s *server) {
	api.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
		if s.docs == nil {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusServiceUnavailable,
				"DOCS_DISABLED", "document archive is not configured", nil)
			return
		}
		body := http.MaxBytesReader(w, r.Body, maxDocumentBytes)
		data, err := io.ReadAll(body)
		if err != nil {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusRequestEntityTooLarge,
				"DOCUMENT_TOO_LARGE", "document exceeds the upload limit", nil)
			return
		}
		if len(data) == 0 {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusBadRequest,
				"BAD_REQUEST", "document body is empty", nil)
			return
		}
		hash, err := s.docs.Put(r.Context(), data, r.Header.Get("Content-Type"))
		if err != nil {
			s.log.Error("archive document", "error", err, "request_id", httpx.RequestID(r))
			httpx.WriteError(w, httpx.RequestID(r), http.StatusBadGateway,
				"ARCHIVE_UNAVAILABLE", "document archive rejected the upload", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"request_id":   httpx.RequestID(r),
			"content_hash": hash,
			"size_bytes":   len(data),
		})
	})

	api.Get("/documents/{content_hash}/url", func(w http.ResponseWriter, r *http.Request) {
		if s.docs == nil {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusServiceUnavailable,
				"DOCS_DISABLED", "document archive is not configured", nil)
			return
		}
		hash := chi.URLParam(r, "content_hash")
		url, err := s.docs.PresignedURL(r.Context(), hash)
		if err != nil {
			s.log.Error("presign document", "error", err, "request_id", httpx.RequestID(r))
			httpx.WriteError(w, httpx.RequestID(r), http.StatusBadGateway,
				"ARCHIVE_UNAVAILABLE", "could not presign the document", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id":   httpx.RequestID(r),
			"content_hash": hash,
			"url":          url,
		})
	})
}

package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"grantlane/pkg/logger"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

// RequestID returns the id the middleware stored on the request, minting one
// for requests that bypassed it.
func RequestID(r *http.Request) string {
	if id, ok := r.Context().Value(logger.RequestIDKey).(string); ok && id != "" {
		return id
	}
	return NewRequestID()
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ReadJSONLimit enforces a body cap before strict decoding and rejects
// trailing content after the first JSON value.
func ReadJSONLimit(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing content")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected trailing content")
	}
	return nil
}

func WriteError(w http.ResponseWriter, requestID string, status int, code, message string, details any) {
	if requestID == "" {
		requestID = NewRequestID()
	}
	resp := map[string]any{
		"request_id": requestID,
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

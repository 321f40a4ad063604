package unitsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientStateBalanceTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/state":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id": "req_1",
				"state":      map[string]any{"cap": 1000, "supply": 600, "admin": "prn_units_admin"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/balances/hld_alice":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id": "req_2", "holder": "hld_alice", "balance": 600,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/allowlist/hld_escrow":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id": "req_3", "holder": "hld_escrow", "allowed": true,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transfers":
			if r.Header.Get("Authorization") != "Bearer tok" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id": "req_4", "from": "hld_alice", "to": "hld_escrow",
				"amount": 100, "balance": 500,
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	ctx := context.Background()

	st, err := c.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if st.State.Cap != 1000 || st.State.Supply != 600 {
		t.Fatalf("State() = %+v", st.State)
	}

	bal, err := c.Balance(ctx, "hld_alice")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if bal.Balance != 600 {
		t.Fatalf("Balance() = %d", bal.Balance)
	}

	al, err := c.Allowed(ctx, "hld_escrow")
	if err != nil {
		t.Fatalf("Allowed() error: %v", err)
	}
	if !al.Allowed {
		t.Fatal("Allowed() = false, want true")
	}

	tr, err := c.Transfer(ctx, TransferRequest{From: "hld_alice", To: "hld_escrow", Amount: 100})
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if tr.Balance != 500 {
		t.Fatalf("Transfer() remaining balance = %d", tr.Balance)
	}
}

func TestClientSurfacesErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_9",
			"error":      map[string]any{"code": "TRANSFER_RESTRICTED", "message": "destination not on the allow-list"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	if _, err := c.Transfer(context.Background(), TransferRequest{From: "a", To: "b", Amount: 1}); err == nil {
		t.Fatal("expected error for 409 response")
	}
}

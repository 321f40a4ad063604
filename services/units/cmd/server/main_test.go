package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grantlane/pkg/authn"
	"grantlane/pkg/config"
	"grantlane/pkg/domain"
	"grantlane/services/units/internal/unitledger"
	"grantlane/services/units/internal/unitstore"
)

const (
	adminToken = "admin-token"
	aliceToken = "alice-token"
)

var unitTestBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// newUnitsServer boots an engine with cap 1000 and a lockup 30 days out,
// returning the clock pointer so tests can cross the lockup boundary.
func newUnitsServer(t *testing.T) (*server, *time.Time) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := unitTestBase
	engine := unitledger.New(unitstore.NewMem(), unitledger.Config{
		Log: log,
		Now: func() time.Time { return now },
	})
	admin := domain.Principal{
		PrincipalID: "prn_units_admin",
		TokenHash:   authn.HashToken(adminToken),
		Status:      domain.PrincipalActive,
		CreatedAt:   unitTestBase,
	}
	if err := engine.Bootstrap(context.Background(), admin, 1000, unitTestBase.AddDate(0, 0, 30)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	s := &server{
		engine: engine,
		log:    log,
		cfg: &config.UnitsConfig{
			Server: config.ServerConfig{MaxBodyBytes: 262144},
		},
	}
	return s, &now
}

func unitsDo(t *testing.T, s *server, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, decoded
}

func unitsErrorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error object in %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func registerAlice(t *testing.T, s *server) {
	t.Helper()
	rr, body := unitsDo(t, s, "POST", "/v1/admin/holders", adminToken, map[string]any{
		"holder_id":    "hld_alice",
		"display_name": "Alice",
		"token":        aliceToken,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register holder status = %d, body %v", rr.Code, body)
	}
}

func TestMintAndReadOverHTTP(t *testing.T) {
	s, _ := newUnitsServer(t)

	rr, body := unitsDo(t, s, "POST", "/v1/admin/mint", adminToken, map[string]any{
		"mint_key": "mnt_1",
		"to":       "hld_alice",
		"amount":   float64(600),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("mint status = %d, body %v", rr.Code, body)
	}
	mint := body["mint"].(map[string]any)
	if mint["supply"] != float64(600) {
		t.Fatalf("supply = %v, want 600", mint["supply"])
	}

	rr, body = unitsDo(t, s, "GET", "/v1/state", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("state status = %d", rr.Code)
	}
	state := body["state"].(map[string]any)
	if state["cap"] != float64(1000) || state["supply"] != float64(600) {
		t.Fatalf("state = %v", state)
	}

	rr, body = unitsDo(t, s, "GET", "/v1/balances/hld_alice", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rr.Code)
	}
	if body["balance"] != float64(600) {
		t.Fatalf("balance = %v, want 600", body["balance"])
	}

	rr, body = unitsDo(t, s, "POST", "/v1/admin/mint", adminToken, map[string]any{
		"mint_key": "mnt_2",
		"to":       "hld_bob",
		"amount":   float64(500),
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-cap mint status = %d", rr.Code)
	}
	if code := unitsErrorCode(t, body); code != "CAP_EXCEEDED" {
		t.Fatalf("code = %q, want CAP_EXCEEDED", code)
	}
}

func TestTransferOverHTTP(t *testing.T) {
	s, now := newUnitsServer(t)
	registerAlice(t, s)

	rr, body := unitsDo(t, s, "POST", "/v1/admin/mint", adminToken, map[string]any{
		"mint_key": "mnt_1",
		"to":       "hld_alice",
		"amount":   float64(500),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("mint status = %d, body %v", rr.Code, body)
	}

	rr, body = unitsDo(t, s, "POST", "/v1/transfers", aliceToken, map[string]any{
		"from":   "hld_alice",
		"to":     "hld_bob",
		"amount": float64(100),
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("locked transfer status = %d", rr.Code)
	}
	if code := unitsErrorCode(t, body); code != "TRANSFER_RESTRICTED" {
		t.Fatalf("code = %q, want TRANSFER_RESTRICTED", code)
	}

	rr, _ = unitsDo(t, s, "POST", "/v1/admin/allowlist", adminToken, map[string]any{
		"holder": "hld_bob",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("allow status = %d", rr.Code)
	}

	rr, body = unitsDo(t, s, "POST", "/v1/transfers", aliceToken, map[string]any{
		"from":   "hld_alice",
		"to":     "hld_bob",
		"amount": float64(100),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("allow-listed transfer status = %d, body %v", rr.Code, body)
	}
	if body["balance"] != float64(400) {
		t.Fatalf("remaining balance = %v, want 400", body["balance"])
	}

	// Alice cannot move someone else's balance.
	rr, body = unitsDo(t, s, "POST", "/v1/transfers", aliceToken, map[string]any{
		"from":   "hld_bob",
		"to":     "hld_alice",
		"amount": float64(10),
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign source status = %d", rr.Code)
	}
	if code := unitsErrorCode(t, body); code != "NOT_OWNER" {
		t.Fatalf("code = %q, want NOT_OWNER", code)
	}

	*now = unitTestBase.AddDate(0, 0, 30)
	rr, _ = unitsDo(t, s, "POST", "/v1/transfers", aliceToken, map[string]any{
		"from":   "hld_alice",
		"to":     "hld_carol",
		"amount": float64(50),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("post-lockup transfer status = %d", rr.Code)
	}
}

func TestAdminGatesOverHTTP(t *testing.T) {
	s, _ := newUnitsServer(t)
	registerAlice(t, s)

	rr, body := unitsDo(t, s, "POST", "/v1/admin/mint", aliceToken, map[string]any{
		"mint_key": "mnt_1",
		"to":       "hld_alice",
		"amount":   float64(10),
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("holder mint status = %d", rr.Code)
	}
	if code := unitsErrorCode(t, body); code != "NOT_ADMIN" {
		t.Fatalf("code = %q, want NOT_ADMIN", code)
	}

	rr, _ = unitsDo(t, s, "POST", "/v1/admin/mint", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous mint status = %d", rr.Code)
	}

	rr, body = unitsDo(t, s, "POST", "/v1/admin/mint", adminToken, map[string]any{
		"mint_key": "mnt_2",
		"to":       "hld_alice",
		"amount":   float64(600),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("mint status = %d, body %v", rr.Code, body)
	}
	rr, body = unitsDo(t, s, "POST", "/v1/admin/cap", adminToken, map[string]any{
		"new_cap": float64(100),
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("cap below supply status = %d", rr.Code)
	}
	if code := unitsErrorCode(t, body); code != "CAP_BELOW_SUPPLY" {
		t.Fatalf("code = %q, want CAP_BELOW_SUPPLY", code)
	}
}

func TestAllowlistReadSurface(t *testing.T) {
	s, _ := newUnitsServer(t)

	rr, _ := unitsDo(t, s, "POST", "/v1/admin/allowlist", adminToken, map[string]any{
		"holder": "hld_bob",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("allow status = %d", rr.Code)
	}

	rr, body := unitsDo(t, s, "GET", "/v1/allowlist", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("allowlist status = %d", rr.Code)
	}
	allowed := body["allowed"].([]any)
	if len(allowed) != 1 || allowed[0] != "hld_bob" {
		t.Fatalf("allowed = %v, want [hld_bob]", allowed)
	}

	rr, body = unitsDo(t, s, "GET", "/v1/allowlist/hld_bob", "", nil)
	if rr.Code != http.StatusOK || body["allowed"] != true {
		t.Fatalf("membership = %v (status %d), want true", body["allowed"], rr.Code)
	}

	rr, _ = unitsDo(t, s, "DELETE", "/v1/admin/allowlist/hld_bob", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("disallow status = %d", rr.Code)
	}
	rr, body = unitsDo(t, s, "GET", "/v1/allowlist/hld_bob", "", nil)
	if rr.Code != http.StatusOK || body["allowed"] != false {
		t.Fatalf("membership after disallow = %v, want false", body["allowed"])
	}
}

package grantlane

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Control struct {
	Authority    string `json:"authority"`
	Paused       bool   `json:"paused"`
	Transitioned bool   `json:"transitioned"`
	Vault        string `json:"vault,omitempty"`
	ClaimBaseURI string `json:"claim_base_uri,omitempty"`
	StakeBaseURI string `json:"stake_base_uri,omitempty"`
}

type LockStatus struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	Owner    string `json:"owner"`
	Locked   bool   `json:"locked"`
	URI      string `json:"uri,omitempty"`
}

type Identity struct {
	Realm        string `json:"realm"`
	IssuerEntity string `json:"issuer_entity"`
	IssuerID     string `json:"issuer_id"`
}

type LedgerEvent struct {
	Seq        int64          `json:"seq"`
	Type       string         `json:"type"`
	RecordID   string         `json:"record_id,omitempty"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	EventHash  string         `json:"event_hash"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (c *Client) Control(ctx context.Context) (*Control, error) {
	var out struct {
		Control Control `json:"control"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/control", nil, &out); err != nil {
		return nil, err
	}
	return &out.Control, nil
}

func (c *Client) Pause(ctx context.Context) (*Control, error) {
	return c.controlAction(ctx, "/v1/admin/control/pause", nil)
}

func (c *Client) Unpause(ctx context.Context) (*Control, error) {
	return c.controlAction(ctx, "/v1/admin/control/unpause", nil)
}

func (c *Client) TransferAuthority(ctx context.Context, newAuthority string) (*Control, error) {
	return c.controlAction(ctx, "/v1/admin/control/authority", map[string]any{"new_authority": newAuthority})
}

// InitiateTransition hands record custody to vault and permanently destroys
// every administrative capability. There is no undo.
func (c *Client) InitiateTransition(ctx context.Context, vault string) (*Control, error) {
	return c.controlAction(ctx, "/v1/admin/control/transition", map[string]any{"vault": vault})
}

func (c *Client) controlAction(ctx context.Context, path string, body map[string]any) (*Control, error) {
	var out struct {
		Control Control `json:"control"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Control, nil
}

func (c *Client) SetBaseURIs(ctx context.Context, claimBaseURI, stakeBaseURI string) (*Control, error) {
	body := map[string]any{"claim_base_uri": claimBaseURI, "stake_base_uri": stakeBaseURI}
	var out struct {
		Control Control `json:"control"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/admin/control/uris", body, &out); err != nil {
		return nil, err
	}
	return &out.Control, nil
}

// TransferReceipt confirms a custodial move: which record, of which kind,
// now owned by whom.
type TransferReceipt struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	Owner    string `json:"owner"`
}

// CustodianTransfer moves a record to a new owner. Vault token only, and only
// after the transition.
func (c *Client) CustodianTransfer(ctx context.Context, recordID, newOwner string) (*TransferReceipt, error) {
	body := map[string]any{"record_id": recordID, "new_owner": newOwner}
	var out TransferReceipt
	if err := c.do(ctx, http.MethodPost, "/v1/custody/transfers", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordLock(ctx context.Context, recordID string) (*LockStatus, error) {
	var out LockStatus
	path := "/v1/records/" + url.PathEscape(recordID) + "/lock"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.do(ctx, http.MethodGet, "/v1/identity", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DerivePactID recomputes a pact identity off-path, so a caller can know the
// id a document will get before anything is created.
func (c *Client) DerivePactID(ctx context.Context, contentHash, version string) (string, error) {
	body := map[string]any{"content_hash": contentHash, "version": version}
	var out struct {
		IssuerID string `json:"issuer_id"`
		PactID   string `json:"pact_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/identity/derive", body, &out); err != nil {
		return "", err
	}
	return out.PactID, nil
}

func (c *Client) ClaimEvents(ctx context.Context, claimID string) ([]LedgerEvent, error) {
	return c.recordEvents(ctx, "/v1/claims/"+url.PathEscape(claimID)+"/events")
}

func (c *Client) StakeEvents(ctx context.Context, stakeID string) ([]LedgerEvent, error) {
	return c.recordEvents(ctx, "/v1/stakes/"+url.PathEscape(stakeID)+"/events")
}

func (c *Client) recordEvents(ctx context.Context, path string) ([]LedgerEvent, error) {
	var out struct {
		Events []LedgerEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Events pages the audit chain; replay pages in order and check each link's
// prev_hash to audit the trail.
func (c *Client) Events(ctx context.Context, fromSeq int64, limit int) ([]LedgerEvent, error) {
	path := fmt.Sprintf("/v1/events?from=%d&limit=%d", fromSeq, limit)
	var out struct {
		Events []LedgerEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) ChainHead(ctx context.Context) (*LedgerEvent, bool, error) {
	var out struct {
		Found bool        `json:"found"`
		Event LedgerEvent `json:"event"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/events/head", nil, &out); err != nil {
		return nil, false, err
	}
	if !out.Found {
		return nil, false, nil
	}
	return &out.Event, true, nil
}

package grantlane

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Pact struct {
	PactID                   string    `json:"pact_id"`
	IssuerID                 string    `json:"issuer_id"`
	ContentHash              string    `json:"content_hash"`
	RightsRoot               string    `json:"rights_root,omitempty"`
	URI                      string    `json:"uri,omitempty"`
	Version                  string    `json:"version"`
	Mutable                  bool      `json:"mutable"`
	RevocationMode           string    `json:"revocation_mode"`
	DefaultRevocableUnvested bool      `json:"default_revocable_unvested"`
	SupersedesPactID         string    `json:"supersedes_pact_id,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
}

type Claim struct {
	ClaimID        string    `json:"claim_id"`
	Owner          string    `json:"owner"`
	PactID         string    `json:"pact_id"`
	MaxUnits       int64     `json:"max_units"`
	UnitType       string    `json:"unit_type"`
	RedeemedUnits  int64     `json:"redeemed_units"`
	RemainingUnits int64     `json:"remaining_units"`
	Voided         bool      `json:"voided"`
	ReasonHash     string    `json:"reason_hash,omitempty"`
	FullyRedeemed  bool      `json:"fully_redeemed"`
	RedeemableAt   time.Time `json:"redeemable_at"`
	IssuanceKey    string    `json:"issuance_key"`
	CreatedAt      time.Time `json:"created_at"`
}

type Stake struct {
	StakeID       string     `json:"stake_id"`
	Owner         string     `json:"owner"`
	ClaimID       string     `json:"claim_id"`
	UnitType      string     `json:"unit_type"`
	Units         int64      `json:"units"`
	VestStart     time.Time  `json:"vest_start"`
	VestCliff     time.Time  `json:"vest_cliff"`
	VestEnd       time.Time  `json:"vest_end"`
	Revoked       bool       `json:"revoked"`
	RevokedUnits  int64      `json:"revoked_units"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RedemptionKey string     `json:"redemption_key"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type VestingStatus struct {
	Stake    Stake     `json:"stake"`
	At       time.Time `json:"at"`
	Vested   int64     `json:"vested_units"`
	Unvested int64     `json:"unvested_units"`
}

type PactParams struct {
	ContentHash              string `json:"content_hash"`
	RightsRoot               string `json:"rights_root"`
	URI                      string `json:"uri"`
	Version                  string `json:"version"`
	Mutable                  bool   `json:"mutable"`
	RevocationMode           string `json:"revocation_mode"`
	DefaultRevocableUnvested bool   `json:"default_revocable_unvested"`
}

type IssueParams struct {
	IssuanceKey  string    `json:"issuance_key"`
	Recipient    string    `json:"recipient"`
	PactID       string    `json:"pact_id"`
	MaxUnits     int64     `json:"max_units"`
	UnitType     string    `json:"unit_type"`
	RedeemableAt time.Time `json:"redeemable_at"`
}

type BatchIssueParams struct {
	IssuanceKeys  []string    `json:"issuance_keys"`
	Recipients    []string    `json:"recipients"`
	PactIDs       []string    `json:"pact_ids"`
	MaxUnits      []int64     `json:"max_units"`
	UnitTypes     []string    `json:"unit_types"`
	RedeemableAts []time.Time `json:"redeemable_ats"`
}

type RedeemParams struct {
	RedemptionKey string    `json:"redemption_key"`
	ClaimID       string    `json:"claim_id"`
	Units         int64     `json:"units"`
	UnitType      string    `json:"unit_type"`
	VestStart     time.Time `json:"vest_start"`
	VestCliff     time.Time `json:"vest_cliff"`
	VestEnd       time.Time `json:"vest_end"`
	Note          string    `json:"note"`
}

func (c *Client) CreatePact(ctx context.Context, p PactParams) (*Pact, error) {
	var out struct {
		Pact Pact `json:"pact"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/pacts", p, &out); err != nil {
		return nil, err
	}
	return &out.Pact, nil
}

func (c *Client) AmendPact(ctx context.Context, pactID string, p PactParams) (*Pact, error) {
	var out struct {
		Pact Pact `json:"pact"`
	}
	path := "/v1/admin/pacts/" + url.PathEscape(pactID) + "/amendments"
	if err := c.do(ctx, http.MethodPost, path, p, &out); err != nil {
		return nil, err
	}
	return &out.Pact, nil
}

func (c *Client) GetPact(ctx context.Context, pactID string) (*Pact, error) {
	var out struct {
		Pact Pact `json:"pact"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pacts/"+url.PathEscape(pactID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Pact, nil
}

// TryGetPact reports absence as (nil, false, nil) rather than an error.
func (c *Client) TryGetPact(ctx context.Context, pactID string) (*Pact, bool, error) {
	var out struct {
		Found bool `json:"found"`
		Pact  Pact `json:"pact"`
	}
	path := "/v1/pacts/" + url.PathEscape(pactID) + "?try=1"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, false, err
	}
	if !out.Found {
		return nil, false, nil
	}
	return &out.Pact, true, nil
}

func (c *Client) Issue(ctx context.Context, p IssueParams) (*Claim, error) {
	if strings.TrimSpace(p.IssuanceKey) == "" {
		return nil, errInsufficientKey("issuance")
	}
	var out struct {
		Claim Claim `json:"claim"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/claims", p, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

// IssueBatch is all-or-nothing; on failure the returned *Error names the
// offending element index in Details["batch_index"].
func (c *Client) IssueBatch(ctx context.Context, p BatchIssueParams) ([]Claim, error) {
	var out struct {
		Claims []Claim `json:"claims"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/claims/batch", p, &out); err != nil {
		return nil, err
	}
	return out.Claims, nil
}

func (c *Client) VoidClaim(ctx context.Context, issuanceKey, reasonHash string) (*Claim, error) {
	if strings.TrimSpace(issuanceKey) == "" {
		return nil, errInsufficientKey("issuance")
	}
	body := map[string]any{"issuance_key": issuanceKey, "reason_hash": reasonHash}
	var out struct {
		Claim Claim `json:"claim"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/claims/void", body, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

func (c *Client) GetClaim(ctx context.Context, claimID string) (*Claim, error) {
	var out struct {
		Claim Claim `json:"claim"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/claims/"+url.PathEscape(claimID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

func (c *Client) GetClaimByKey(ctx context.Context, issuanceKey string) (*Claim, error) {
	var out struct {
		Claim Claim `json:"claim"`
	}
	path := "/v1/claims/by-key/" + url.PathEscape(issuanceKey)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

func (c *Client) Redeem(ctx context.Context, p RedeemParams) (*Stake, error) {
	if strings.TrimSpace(p.RedemptionKey) == "" {
		return nil, errInsufficientKey("redemption")
	}
	var out struct {
		Stake Stake `json:"stake"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/stakes", p, &out); err != nil {
		return nil, err
	}
	return &out.Stake, nil
}

func (c *Client) RevokeStake(ctx context.Context, stakeID, reasonHash string) (*Stake, error) {
	body := map[string]any{"reason_hash": reasonHash}
	var out struct {
		Stake Stake `json:"stake"`
	}
	path := "/v1/admin/stakes/" + url.PathEscape(stakeID) + "/revoke"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Stake, nil
}

func (c *Client) GetStake(ctx context.Context, stakeID string) (*Stake, error) {
	var out struct {
		Stake Stake `json:"stake"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/stakes/"+url.PathEscape(stakeID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Stake, nil
}

func (c *Client) GetStakeByKey(ctx context.Context, redemptionKey string) (*Stake, error) {
	var out struct {
		Stake Stake `json:"stake"`
	}
	path := "/v1/stakes/by-key/" + url.PathEscape(redemptionKey)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Stake, nil
}

// Vesting evaluates a stake's schedule, at the service's current clock when
// at is nil.
func (c *Client) Vesting(ctx context.Context, stakeID string, at *time.Time) (*VestingStatus, error) {
	path := "/v1/stakes/" + url.PathEscape(stakeID) + "/vesting"
	if at != nil {
		path += "?at=" + url.QueryEscape(at.UTC().Format(time.RFC3339))
	}
	var out VestingStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func errInsufficientKey(kind string) error {
	return &Error{StatusCode: 0, ErrorCode: "MISSING_KEY", Message: kind + " key is required; mint one with NewIdempotencyKey"}
}

// Package unitsdk is a minimal client for the units service, for settlement
// agents and holder tooling that only need balances, lockup state, and
// transfers. The full ledger surface lives in the Go SDK.
package unitsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Bearer     string
}

func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Bearer:     bearer,
	}
}

type State struct {
	Cap         int64     `json:"cap"`
	Supply      int64     `json:"supply"`
	LockupUntil time.Time `json:"lockup_until"`
	Admin       string    `json:"admin"`
}

type StateResponse struct {
	RequestID string `json:"request_id"`
	State     State  `json:"state"`
}

type HolderBalance struct {
	Holder  string `json:"holder"`
	Balance int64  `json:"balance"`
}

type BalanceResponse struct {
	RequestID string `json:"request_id"`
	Holder    string `json:"holder"`
	Balance   int64  `json:"balance"`
}

type BalancesResponse struct {
	RequestID string          `json:"request_id"`
	Balances  []HolderBalance `json:"balances"`
}

type AllowedResponse struct {
	RequestID string `json:"request_id"`
	Holder    string `json:"holder"`
	Allowed   bool   `json:"allowed"`
}

type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type TransferResponse struct {
	RequestID string `json:"request_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
}

func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/state", nil)
	if err != nil {
		return nil, err
	}
	return doJSON[StateResponse](c, req)
}

func (c *Client) Balance(ctx context.Context, holder string) (*BalanceResponse, error) {
	u := c.BaseURL + "/v1/balances/" + url.PathEscape(holder)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return doJSON[BalanceResponse](c, req)
}

func (c *Client) Balances(ctx context.Context) (*BalancesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/balances", nil)
	if err != nil {
		return nil, err
	}
	return doJSON[BalancesResponse](c, req)
}

func (c *Client) Allowed(ctx context.Context, holder string) (*AllowedResponse, error) {
	u := c.BaseURL + "/v1/allowlist/" + url.PathEscape(holder)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return doJSON[AllowedResponse](c, req)
}

func (c *Client) Transfer(ctx context.Context, in TransferRequest) (*TransferResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON[TransferResponse](c, req)
}

func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("http %d: %v", resp.StatusCode, errBody)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

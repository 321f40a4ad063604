// Package grantlane is the typed Go client for the entitlement ledger HTTP
// API. It speaks the service's JSON envelopes, carries bearer credentials,
// and retries throttled or transiently failing calls; every write that needs
// replay safety takes the caller's idempotency key straight through.
package grantlane

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const APIVersion = "v1"

// Error is the decoded service error envelope. StatusCode is the HTTP status,
// ErrorCode the stable machine code (PACT_NOT_FOUND, IDEMPOTENCE_MISMATCH...).
type Error struct {
	StatusCode int
	ErrorCode  string
	Message    string
	RequestID  string
	Details    map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("grantlane sdk error: status=%d code=%s message=%s", e.StatusCode, e.ErrorCode, e.Message)
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type AuthStrategy interface {
	Apply(req *http.Request) error
}

// PrincipalAuth authenticates as a registered principal. Admin calls need the
// authority's token, custody calls the vault's; reads need none.
type PrincipalAuth struct{ Token string }

func (a PrincipalAuth) Apply(req *http.Request) error {
	if strings.TrimSpace(a.Token) == "" {
		return errors.New("principal bearer token is required")
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// NoAuth is for read-only clients.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) error { return nil }

type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       AuthStrategy
	retry      RetryConfig
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(baseURL string, auth AuthStrategy, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		auth:       auth,
		retry:      RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	if c.retry.BaseDelay <= 0 {
		c.retry.BaseDelay = 200 * time.Millisecond
	}
	if c.retry.MaxDelay <= 0 {
		c.retry.MaxDelay = 5 * time.Second
	}
	return c
}

// NewIdempotencyKey mints a random issuance or redemption key. The ledger
// stores whichever key you pass, so generate once and reuse on retries.
func NewIdempotencyKey() string { return newNonce() }

func newNonce() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// do runs one call and decodes the success envelope into out. Throttled and
// gateway-failed attempts back off and retry; everything else surfaces as
// *Error on the first response.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "grantlane-go-sdk/0.1.0 (api:"+APIVersion+")")
		if len(bodyBytes) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.auth != nil {
			if err := c.auth.Apply(req); err != nil {
				return err
			}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.retry.MaxAttempts {
				sleepWithBackoff(c.retry, attempt, "")
				continue
			}
			return err
		}
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			return json.Unmarshal(respBody, out)
		}
		if shouldRetryStatus(resp.StatusCode) && attempt < c.retry.MaxAttempts {
			sleepWithBackoff(c.retry, attempt, resp.Header.Get("Retry-After"))
			continue
		}
		return parseSDKError(resp.StatusCode, respBody)
	}
	return errors.New("unreachable")
}

func shouldRetryStatus(status int) bool {
	return status == 429 || status == 502 || status == 503 || status == 504
}

func sleepWithBackoff(cfg RetryConfig, attempt int, retryAfter string) {
	if strings.TrimSpace(retryAfter) != "" {
		if sec, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
			d := time.Duration(sec) * time.Second
			if d > cfg.MaxDelay {
				d = cfg.MaxDelay
			}
			time.Sleep(d)
			return
		}
	}
	max := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max > float64(cfg.MaxDelay) {
		max = float64(cfg.MaxDelay)
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	time.Sleep(time.Duration(n.Int64()))
}

func parseSDKError(status int, body []byte) error {
	out := &Error{StatusCode: status}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	out.RequestID, _ = obj["request_id"].(string)
	if inner, ok := obj["error"].(map[string]any); ok {
		obj = inner
	}
	out.ErrorCode, _ = obj["code"].(string)
	out.Message, _ = obj["message"].(string)
	if d, ok := obj["details"].(map[string]any); ok {
		out.Details = d
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

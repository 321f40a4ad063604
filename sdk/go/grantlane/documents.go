package grantlane

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// ArchiveDocument uploads a rights document to the service's archive and
// returns the content hash to put in PactParams.ContentHash. Raw bytes, not
// JSON; the service hashes exactly what it stores.
func (c *Client) ArchiveDocument(ctx context.Context, doc []byte) (contentHash string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/admin/documents", bytes.NewReader(doc))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.Apply(req); err != nil {
			return "", err
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	respBody, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseSDKError(resp.StatusCode, respBody)
	}
	var out struct {
		ContentHash string `json:"content_hash"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.ContentHash, nil
}

// DocumentURL returns a time-limited download link for an archived document.
func (c *Client) DocumentURL(ctx context.Context, contentHash string) (string, error) {
	path := "/v1/documents/" + url.PathEscape(contentHash) + "/url"
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Package assignctl implements the operator CLI for the assignment API.
package assignctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outreach_backend/internal/assignment/transport"
	"outreach_backend/platform/httpkit"
)

const defaultTimeout = 2 * time.Minute

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 && string(e.Details) != "null" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Client calls the assignment endpoints with the cron secret.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1/assignment",
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Run(ctx context.Context, req transport.RunRequest) (transport.RunResponse, error) {
	var out transport.RunResponse
	err := c.do(ctx, http.MethodPost, "/run", nil, req, &out)
	return out, err
}

func (c *Client) Orchestrate(ctx context.Context, req transport.OrchestrateRequest) (transport.OrchestrateResponse, error) {
	var out transport.OrchestrateResponse
	err := c.do(ctx, http.MethodPost, "/orchestrate", nil, req, &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context) (transport.SettingsResponse, error) {
	var out transport.SettingsResponse
	err := c.do(ctx, http.MethodGet, "/settings", nil, nil, &out)
	return out, err
}

func (c *Client) UpdateSettings(ctx context.Context, req transport.UpdateSettingsRequest) (transport.SettingsResponse, error) {
	var out transport.SettingsResponse
	err := c.do(ctx, http.MethodPut, "/settings", nil, req, &out)
	return out, err
}

func (c *Client) Batches(ctx context.Context, query url.Values) (transport.BatchListResponse, error) {
	var out transport.BatchListResponse
	err := c.do(ctx, http.MethodGet, "/batches", query, nil, &out)
	return out, err
}

func (c *Client) Batch(ctx context.Context, batchID string) (transport.BatchResponse, error) {
	var out transport.BatchResponse
	err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(batchID), nil, nil, &out)
	return out, err
}

// SteerBatch posts pause, resume or cancel for a batch.
func (c *Client) SteerBatch(ctx context.Context, batchID, action string) (transport.BatchResponse, error) {
	var out transport.BatchResponse
	err := c.do(ctx, http.MethodPost, "/batches/"+url.PathEscape(batchID)+"/"+action, nil, nil, &out)
	return out, err
}

func (c *Client) Logs(ctx context.Context, query url.Values) (transport.LogListResponse, error) {
	var out transport.LogListResponse
	err := c.do(ctx, http.MethodGet, "/logs", query, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(httpkit.CronSecretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string          `json:"error"`
			Details json.RawMessage `json:"details"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error, Details: apiErr.Details}
	}
	return json.Unmarshal(raw, out)
}

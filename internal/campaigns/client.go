// Package campaigns is the HTTP client of the external campaign system the
// assignment worker pushes leads into.
package campaigns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"

	"golang.org/x/time/rate"
)

// Status is the campaign system's verdict on one lead.
type Status string

const (
	StatusAdded     Status = "added"
	StatusDuplicate Status = "duplicate"
	StatusRejected  Status = "rejected"
	StatusError     Status = "error"
)

const (
	leadsPath       = "/api/v2/leads"
	maxResponseBody = 64 << 10
	// Process-wide ceiling shared by every platform worker in this process.
	requestsPerSecond = 10
)

// ErrNotConfigured is returned when no API URL or key is set.
var ErrNotConfigured = errors.New("campaign system not configured")

// Lead is the payload pushed for one contact.
type Lead struct {
	CampaignID  string
	Email       string
	FirstName   string
	LastName    string
	CompanyName string
	Title       string
	Website     string
}

// AssignResult is the classified upstream response. Per-lead failures are
// results, not Go errors; the worker records them and moves on.
type AssignResult struct {
	Status           Status
	LeadLimitReached bool
	HTTPStatus       int
	Message          string
}

// Client talks to the campaign system.
type Client struct {
	baseURL         string
	apiKey          string
	defaultCampaign string
	http            *http.Client
	limiter         *rate.Limiter
	log             *logger.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg config.CampaignConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	timeout := cfg.GetCampaignAPITimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.GetCampaignAPIURL(), "/"),
		apiKey:          cfg.GetCampaignAPIKey(),
		defaultCampaign: cfg.GetCampaignDefaultID(),
		http:            &http.Client{Timeout: timeout},
		limiter:         rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:             log,
	}
}

// Enabled reports whether the client can make calls.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

type addLeadRequest struct {
	Campaign          string `json:"campaign"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	CompanyName       string `json:"company_name,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
	Website           string `json:"website,omitempty"`
	SkipIfInWorkspace bool   `json:"skip_if_in_workspace"`
}

type addLeadResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	LeadLimitReached bool   `json:"lead_limit_reached"`
}

// Assign pushes one lead. A Go error means the call could not be attempted
// at all (not configured, context cancelled); everything the upstream says
// is reported through AssignResult.
func (c *Client) Assign(ctx context.Context, lead Lead) (AssignResult, error) {
	if !c.Enabled() {
		return AssignResult{}, ErrNotConfigured
	}
	campaignID := lead.CampaignID
	if campaignID == "" {
		campaignID = c.defaultCampaign
	}
	if campaignID == "" {
		return AssignResult{Status: StatusError, Message: "no campaign configured for platform"}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return AssignResult{}, err
	}

	body, err := json.Marshal(addLeadRequest{
		Campaign:          campaignID,
		Email:             lead.Email,
		FirstName:         lead.FirstName,
		LastName:          lead.LastName,
		CompanyName:       lead.CompanyName,
		JobTitle:          lead.Title,
		Website:           lead.Website,
		SkipIfInWorkspace: true,
	})
	if err != nil {
		return AssignResult{}, fmt.Errorf("encode lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+leadsPath, bytes.NewReader(body))
	if err != nil {
		return AssignResult{}, fmt.Errorf("build lead request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return AssignResult{}, ctx.Err()
		}
		c.log.Warn("campaign api call failed", "error", err)
		return AssignResult{Status: StatusError, Message: sanitize.Message(err.Error())}, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return classify(resp.StatusCode, raw), nil
}

func classify(statusCode int, raw []byte) AssignResult {
	var parsed addLeadResponse
	_ = json.Unmarshal(raw, &parsed)

	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}
	failed := statusCode < 200 || statusCode > 299
	if message == "" && failed {
		message = string(raw)
	}
	message = sanitize.Message(message)

	if statusCode == http.StatusPaymentRequired || parsed.LeadLimitReached || (failed && mentionsLeadLimit(raw)) {
		return AssignResult{Status: StatusError, LeadLimitReached: true, HTTPStatus: statusCode, Message: message}
	}

	switch {
	case statusCode >= 200 && statusCode <= 299:
		switch strings.ToLower(parsed.Status) {
		case "duplicate", "skipped":
			return AssignResult{Status: StatusDuplicate, HTTPStatus: statusCode, Message: message}
		}
		return AssignResult{Status: StatusAdded, HTTPStatus: statusCode}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return AssignResult{Status: StatusRejected, HTTPStatus: statusCode, Message: message}
	default:
		if message == "" {
			message = fmt.Sprintf("campaign api returned %d", statusCode)
		}
		return AssignResult{Status: StatusError, HTTPStatus: statusCode, Message: message}
	}
}

func mentionsLeadLimit(raw []byte) bool {
	lower := strings.ToLower(string(raw))
	return strings.Contains(lower, "lead limit")
}

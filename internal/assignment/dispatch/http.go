// Package dispatch starts per-platform assignment workers over HTTP.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/service"
	"outreach_backend/internal/assignment/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"
)

const (
	runPath          = "/api/v1/assignment/run"
	defaultTimeout   = 10 * time.Second
	maxReasonBody    = 4 << 10
	maxReasonMessage = 200
)

// HTTPDispatcher posts a run request to the worker route. The call is bounded
// by a short timeout that normally fires while the worker is still running;
// that counts as sent. Only a request that never left, or that the worker
// refused, is NotSent.
type HTTPDispatcher struct {
	endpoint string
	secret   string
	timeout  time.Duration
	client   *http.Client
	log      *logger.Logger
}

var _ service.Dispatcher = (*HTTPDispatcher)(nil)

// NewHTTPDispatcher creates a dispatcher for the worker at baseURL.
func NewHTTPDispatcher(baseURL, cronSecret string, timeout time.Duration, log *logger.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &HTTPDispatcher{
		endpoint: strings.TrimRight(baseURL, "/") + runPath,
		secret:   cronSecret,
		timeout:  timeout,
		client:   &http.Client{},
		log:      log,
	}
}

// Dispatch starts the worker for one platform.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, req service.PlatformDispatch) domain.DispatchOutcome {
	platformID := req.PlatformID
	body, err := json.Marshal(transport.RunRequest{
		MaxTotal:               &req.MaxTotal,
		MaxPerPlatform:         &req.MaxPerPlatform,
		DelayBetweenContactsMs: &req.DelayMs,
		ChunkSize:              &req.ChunkSize,
		DryRun:                 req.DryRun,
		PlatformID:             &platformID,
		OrchestrationID:        req.OrchestrationID,
	})
	if err != nil {
		return domain.NotSent{Reason: "encode dispatch: " + err.Error()}
	}

	var wrote atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				wrote.Store(true)
			}
		},
	}
	reqCtx, cancel := context.WithTimeout(httptrace.WithClientTrace(ctx, trace), d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.NotSent{Reason: "build dispatch: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		httpReq.Header.Set(httpkit.CronSecretHeader, d.secret)
	}

	log := d.log.WithContext(ctx).With("platform_id", platformID.String())
	resp, err := d.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) && wrote.Load() {
			log.Info("worker dispatch timed out after send, worker continues")
			return domain.Sent{TimedOut: true}
		}
		log.Warn("worker dispatch failed", "error", err)
		return domain.NotSent{Reason: sanitize.Truncate(err.Error(), maxReasonMessage)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBody))
		reason := fmt.Sprintf("worker responded %d", resp.StatusCode)
		if msg := sanitize.Truncate(sanitize.Message(string(raw)), maxReasonMessage); msg != "" {
			reason += ": " + msg
		}
		log.Warn("worker refused dispatch", "status", resp.StatusCode)
		return domain.NotSent{Reason: reason, HTTPStatus: resp.StatusCode}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReasonBody))
	return domain.Sent{HTTPStatus: resp.StatusCode}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Package handler exposes the assignment endpoints.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/assignment/service"
	"outreach_backend/internal/assignment/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgAllDispatchFail  = "every platform dispatch failed"
	dateLayout          = "2006-01-02"
	defaultPageLimit    = 50
)

// Handler handles HTTP requests for the assignment pipeline.
type Handler struct {
	runner       *service.Runner
	orchestrator *service.Orchestrator
	batches      *service.BatchService
	settings     *service.SettingsService
	logs         *service.LogService
	blocklist    BlocklistCache
	val          *validator.Validator
}

// BlocklistCache drops the cached blocklist so edits apply to the next lookup.
type BlocklistCache interface {
	Invalidate(ctx context.Context) error
}

// Services groups the services the handler serves.
type Services struct {
	Runner       *service.Runner
	Orchestrator *service.Orchestrator
	Batches      *service.BatchService
	Settings     *service.SettingsService
	Logs         *service.LogService
	// Blocklist is optional; the refresh route is not mounted without it.
	Blocklist BlocklistCache
}

// New creates a new assignment handler.
func New(svc Services, val *validator.Validator) *Handler {
	return &Handler{
		runner:       svc.Runner,
		orchestrator: svc.Orchestrator,
		batches:      svc.Batches,
		settings:     svc.Settings,
		logs:         svc.Logs,
		blocklist:    svc.Blocklist,
		val:          val,
	}
}

// RegisterRoutes mounts the assignment routes.
func (h *Handler) RegisterRoutes(protected, admin *gin.RouterGroup) {
	g := protected.Group("/assignment")
	g.POST("/run", h.Run)
	g.GET("/run", h.Run)
	g.POST("/orchestrate", h.Orchestrate)
	g.GET("/settings", h.GetSettings)
	g.GET("/logs", h.ListLogs)
	g.GET("/batches", h.ListBatches)
	g.GET("/batches/:batchId", h.GetBatch)
	g.POST("/batches/:batchId/pause", h.PauseBatch)
	g.POST("/batches/:batchId/resume", h.ResumeBatch)
	g.POST("/batches/:batchId/cancel", h.CancelBatch)

	admin.PUT("/assignment/settings", h.UpdateSettings)
	if h.blocklist != nil {
		admin.POST("/assignment/blocklist/refresh", h.RefreshBlocklist)
	}
}

// Run starts or continues a run. GET takes no body and uses the settings.
// POST|GET /api/v1/assignment/run
func (h *Handler) Run(c *gin.Context) {
	var req transport.RunRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	// The dispatcher hangs up long before the worker finishes; the run is
	// bounded by the runner's time budget instead.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.runner.RunDailyAssignment(ctx, service.RunOptions{
		Overrides: domain.RunOverrides{
			MaxTotal:               req.MaxTotal,
			MaxPerPlatform:         req.MaxPerPlatform,
			DelayBetweenContactsMs: req.DelayBetweenContactsMs,
			ChunkSize:              req.ChunkSize,
		},
		DryRun:          req.DryRun,
		ResumeBatchID:   strings.TrimSpace(req.ResumeBatchID),
		PlatformID:      req.PlatformID,
		OrchestrationID: strings.TrimSpace(req.OrchestrationID),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toRunResponse(result))
}

// Orchestrate fans a run out per platform. Responds 502 when no dispatch was sent.
// POST /api/v1/assignment/orchestrate
func (h *Handler) Orchestrate(c *gin.Context) {
	var req transport.OrchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.orchestrator.Orchestrate(c.Request.Context(), service.OrchestrateOptions{
		Overrides: domain.RunOverrides{
			MaxTotal:               req.MaxTotal,
			MaxPerPlatform:         req.MaxPerPlatform,
			DelayBetweenContactsMs: req.DelayBetweenContactsMs,
			ChunkSize:              req.ChunkSize,
		},
		DryRun: req.DryRun,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	resp := toOrchestrateResponse(result)
	if !result.Success && !result.Skipped {
		httpkit.Error(c, http.StatusBadGateway, msgAllDispatchFail, resp)
		return
	}
	httpkit.OK(c, resp)
}

// GetSettings returns the quota settings.
// GET /api/v1/assignment/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toSettingsResponse(settings))
}

// UpdateSettings replaces the quota settings.
// PUT /api/v1/assignment/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req transport.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), domain.Settings{
		MaxTotalContacts:       req.MaxTotalContacts,
		MaxPerPlatform:         req.MaxPerPlatform,
		DelayBetweenContactsMs: req.DelayBetweenContactsMs,
		IsEnabled:              *req.IsEnabled,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toSettingsResponse(settings))
}

// ListLogs returns a page of the assignment log.
// GET /api/v1/assignment/logs
func (h *Handler) ListLogs(c *gin.Context) {
	var req transport.ListLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	filter, details := logFilterFrom(req)
	if len(details) > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, details)
		return
	}
	entries, total, err := h.logs.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	page, limit := pageOf(filter.Page, filter.Limit)
	httpkit.OK(c, transport.LogListResponse{
		Items:      toLogResponses(entries),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	})
}

// ListBatches returns a page of batches.
// GET /api/v1/assignment/batches
func (h *Handler) ListBatches(c *gin.Context) {
	var req transport.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	filter := repository.BatchFilter{Page: req.Page, Limit: req.Limit}
	if status, ok := domain.ParseBatchStatus(req.Status); ok {
		filter.Status = &status
	}
	if req.OrchestrationID != "" {
		filter.OrchestrationID = &req.OrchestrationID
	}
	batches, total, err := h.batches.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	page, limit := pageOf(filter.Page, filter.Limit)
	items := make([]transport.BatchResponse, 0, len(batches))
	for _, b := range batches {
		items = append(items, toBatchResponse(b))
	}
	httpkit.OK(c, transport.BatchListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	})
}

// GetBatch returns one batch.
// GET /api/v1/assignment/batches/:batchId
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.batches.Get(c.Request.Context(), c.Param("batchId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toBatchResponse(batch))
}

// PauseBatch pauses a batch at its next candidate boundary.
// POST /api/v1/assignment/batches/:batchId/pause
func (h *Handler) PauseBatch(c *gin.Context) {
	h.steer(c, h.batches.Pause)
}

// ResumeBatch resumes a paused batch.
// POST /api/v1/assignment/batches/:batchId/resume
func (h *Handler) ResumeBatch(c *gin.Context) {
	h.steer(c, h.batches.Resume)
}

// CancelBatch cancels a batch.
// POST /api/v1/assignment/batches/:batchId/cancel
func (h *Handler) CancelBatch(c *gin.Context) {
	h.steer(c, h.batches.Cancel)
}

// RefreshBlocklist drops the cached blocklist.
// POST /api/v1/assignment/blocklist/refresh
func (h *Handler) RefreshBlocklist(c *gin.Context) {
	if httpkit.HandleError(c, h.blocklist.Invalidate(c.Request.Context())) {
		return
	}
	httpkit.OK(c, gin.H{"refreshed": true})
}

func (h *Handler) steer(c *gin.Context, op func(context.Context, string) (domain.Batch, error)) {
	batch, err := op(c.Request.Context(), c.Param("batchId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toBatchResponse(batch))
}

func logFilterFrom(req transport.ListLogsRequest) (repository.LogFilter, map[string]string) {
	filter := repository.LogFilter{
		Search: strings.TrimSpace(req.Search),
		Page:   req.Page,
		Limit:  req.Limit,
	}
	details := map[string]string{}
	if class, ok := domain.ParseClassification(req.Status); ok {
		filter.Classification = &class
	}
	if req.PlatformID != "" {
		if id, err := uuid.Parse(req.PlatformID); err == nil {
			filter.PlatformID = &id
		}
	}
	if req.BatchID != "" {
		filter.BatchID = &req.BatchID
	}
	if req.DateFrom != "" {
		from, _, err := parseDate(req.DateFrom)
		if err != nil {
			details["dateFrom"] = "must be YYYY-MM-DD or RFC3339"
		} else {
			filter.DateFrom = &from
		}
	}
	if req.DateTo != "" {
		to, dateOnly, err := parseDate(req.DateTo)
		if err != nil {
			details["dateTo"] = "must be YYYY-MM-DD or RFC3339"
		} else {
			if dateOnly {
				to = to.Add(24 * time.Hour)
			}
			filter.DateTo = &to
		}
	}
	return filter, details
}

// parseDate accepts a calendar date or an RFC3339 timestamp. dateOnly is
// true for calendar dates, which cover the whole UTC day.
func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

// Package transport holds the JSON request and response shapes of the
// assignment endpoints.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// RunRequest triggers a run. Every field is optional and falls back to the
// stored settings. Per-platform worker dispatches use the same shape.
type RunRequest struct {
	MaxTotal               *int       `json:"maxTotal,omitempty" validate:"omitempty,min=1,max=5000"`
	MaxPerPlatform         *int       `json:"maxPerPlatform,omitempty" validate:"omitempty,min=1,max=500"`
	DelayBetweenContactsMs *int       `json:"delayBetweenContactsMs,omitempty" validate:"omitempty,min=100,max=5000"`
	ChunkSize              *int       `json:"chunkSize,omitempty" validate:"omitempty,min=1,max=100"`
	DryRun                 bool       `json:"dryRun,omitempty"`
	ResumeBatchID          string     `json:"resumeBatchId,omitempty" validate:"omitempty,max=100"`
	PlatformID             *uuid.UUID `json:"platformId,omitempty"`
	OrchestrationID        string     `json:"orchestrationId,omitempty" validate:"omitempty,max=100"`
}

// StatsResponse are batch counters. Skipped is the sum of the three skip kinds.
type StatsResponse struct {
	Processed        int `json:"processed"`
	Added            int `json:"added"`
	Skipped          int `json:"skipped"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	SkippedKlant     int `json:"skippedKlant"`
	SkippedAIError   int `json:"skippedAiError"`
	Errors           int `json:"errors"`
}

// PlatformStatsResponse are the counters of one platform within a batch.
type PlatformStatsResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// RunResponse reports a run.
type RunResponse struct {
	Success          bool                             `json:"success"`
	Skipped          bool                             `json:"skipped,omitempty"`
	Message          string                           `json:"message,omitempty"`
	BatchID          string                           `json:"batchId,omitempty"`
	Status           string                           `json:"status,omitempty"`
	TotalCandidates  int                              `json:"totalCandidates"`
	Stats            StatsResponse                    `json:"stats"`
	PlatformStats    map[string]PlatformStatsResponse `json:"platformStats"`
	HasMoreToProcess bool                             `json:"hasMoreToProcess"`
	LeadLimitReached bool                             `json:"leadLimitReached"`
	DryRun           bool                             `json:"dryRun"`
}

// OrchestrateRequest triggers a fan-out.
type OrchestrateRequest struct {
	MaxTotal               *int `json:"maxTotal,omitempty" validate:"omitempty,min=1,max=5000"`
	MaxPerPlatform         *int `json:"maxPerPlatform,omitempty" validate:"omitempty,min=1,max=500"`
	DelayBetweenContactsMs *int `json:"delayBetweenContactsMs,omitempty" validate:"omitempty,min=100,max=5000"`
	ChunkSize              *int `json:"chunkSize,omitempty" validate:"omitempty,min=1,max=100"`
	DryRun                 bool `json:"dryRun,omitempty"`
}

// PlatformDispatchResponse is one platform line of an orchestration.
type PlatformDispatchResponse struct {
	PlatformID     uuid.UUID `json:"platformId"`
	PlatformName   string    `json:"platformName"`
	CandidateCount int       `json:"candidateCount"`
	Status         string    `json:"status"`
	HTTPStatus     *int      `json:"httpStatus,omitempty"`
	TimedOut       bool      `json:"timedOut,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// OrchestrateResponse reports a fan-out.
type OrchestrateResponse struct {
	Success         bool                       `json:"success"`
	Skipped         bool                       `json:"skipped,omitempty"`
	OrchestrationID string                     `json:"orchestrationId,omitempty"`
	TotalCandidates int                        `json:"totalCandidates"`
	DryRun          bool                       `json:"dryRun"`
	Platforms       []PlatformDispatchResponse `json:"platforms"`
}

// SettingsResponse is the quota configuration.
type SettingsResponse struct {
	MaxTotalContacts       int        `json:"maxTotalContacts"`
	MaxPerPlatform         int        `json:"maxPerPlatform"`
	DelayBetweenContactsMs int        `json:"delayBetweenContactsMs"`
	IsEnabled              bool       `json:"isEnabled"`
	UpdatedAt              *time.Time `json:"updatedAt,omitempty"`
}

// UpdateSettingsRequest replaces the quota configuration.
type UpdateSettingsRequest struct {
	MaxTotalContacts       int   `json:"maxTotalContacts" validate:"required,min=1,max=5000"`
	MaxPerPlatform         int   `json:"maxPerPlatform" validate:"required,min=1,max=500"`
	DelayBetweenContactsMs int   `json:"delayBetweenContactsMs" validate:"required,min=100,max=5000"`
	IsEnabled              *bool `json:"isEnabled" validate:"required"`
}

// ListLogsRequest filters the assignment log. Status is the classification.
type ListLogsRequest struct {
	Status     string `form:"status" validate:"omitempty,oneof=added skipped_klant skipped_ai_error skipped_duplicate error"`
	PlatformID string `form:"platformId" validate:"omitempty,uuid"`
	BatchID    string `form:"batchId" validate:"omitempty,max=100"`
	DateFrom   string `form:"dateFrom" validate:"omitempty"`
	DateTo     string `form:"dateTo" validate:"omitempty"`
	Search     string `form:"search" validate:"omitempty,max=200"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// LogEntryResponse is one assignment log row.
type LogEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	BatchID        string     `json:"batchId"`
	PlatformID     *uuid.UUID `json:"platformId,omitempty"`
	PlatformName   string     `json:"platformName,omitempty"`
	ContactID      uuid.UUID  `json:"contactId"`
	CompanyID      *uuid.UUID `json:"companyId,omitempty"`
	Email          string     `json:"email"`
	ContactName    string     `json:"contactName"`
	CompanyName    string     `json:"companyName"`
	Classification string     `json:"status"`
	Message        *string    `json:"message,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// LogListResponse is a page of log rows.
type LogListResponse struct {
	Items      []LogEntryResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

// ListBatchesRequest filters batches.
type ListBatchesRequest struct {
	Status          string `form:"status" validate:"omitempty,oneof=pending processing paused completed failed cancelled"`
	OrchestrationID string `form:"orchestrationId" validate:"omitempty,max=100"`
	Page            int    `form:"page" validate:"omitempty,min=1"`
	Limit           int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// BatchResponse is one ledger entry.
type BatchResponse struct {
	BatchID          string                           `json:"batchId"`
	OrchestrationID  *string                          `json:"orchestrationId,omitempty"`
	PlatformID       *uuid.UUID                       `json:"platformId,omitempty"`
	Status           string                           `json:"status"`
	TotalCandidates  int                              `json:"totalCandidates"`
	Stats            StatsResponse                    `json:"stats"`
	PlatformStats    map[string]PlatformStatsResponse `json:"platformStats"`
	LeadLimitReached bool                             `json:"leadLimitReached"`
	DryRun           bool                             `json:"dryRun"`
	LastError        *string                          `json:"lastError,omitempty"`
	MaxTotal         int                              `json:"maxTotal"`
	MaxPerPlatform   int                              `json:"maxPerPlatform"`
	DelayMs          int                              `json:"delayBetweenContactsMs"`
	ChunkSize        int                              `json:"chunkSize"`
	StartedAt        time.Time                        `json:"startedAt"`
	CompletedAt      *time.Time                       `json:"completedAt,omitempty"`
	UpdatedAt        time.Time                        `json:"updatedAt"`
}

// BatchListResponse is a page of batches.
type BatchListResponse struct {
	Items      []BatchResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// Package events defines the assignment lifecycle events and exposes the
// platform bus under the same import.
package events

import (
	platformevents "outreach_backend/platform/events"
	"outreach_backend/platform/logger"
)

type (
	Event       = platformevents.Event
	Bus         = platformevents.Bus
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	BaseEvent   = platformevents.BaseEvent
	InMemoryBus = platformevents.InMemoryBus
)

var (
	NewBaseEvent = platformevents.NewBaseEvent
	SubscribeAll = platformevents.SubscribeAll
)

// NewInMemoryBus creates the process-local bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// =============================================================================
// Assignment Domain Events
// =============================================================================

// AssignmentContactClassified is published once per contact the worker handled.
type AssignmentContactClassified struct {
	BaseEvent
	BatchID        string `json:"batchId"`
	PlatformID     string `json:"platformId,omitempty"`
	ContactID      string `json:"contactId"`
	Classification string `json:"classification"`
	DryRun         bool   `json:"dryRun"`
}

func (e AssignmentContactClassified) EventName() string { return "assignment.contact.classified" }

// AssignmentChunkProcessed is published after every worker chunk.
type AssignmentChunkProcessed struct {
	BaseEvent
	BatchID    string  `json:"batchId"`
	Processed  int     `json:"processed"`
	DurationMs float64 `json:"durationMs"`
}

func (e AssignmentChunkProcessed) EventName() string { return "assignment.chunk.processed" }

// AssignmentBatchFinalized is published when a batch reaches a terminal status.
type AssignmentBatchFinalized struct {
	BaseEvent
	BatchID          string `json:"batchId"`
	OrchestrationID  string `json:"orchestrationId,omitempty"`
	Status           string `json:"status"`
	Processed        int    `json:"processed"`
	LeadLimitReached bool   `json:"leadLimitReached"`
}

func (e AssignmentBatchFinalized) EventName() string { return "assignment.batch.finalized" }

// AssignmentLeadLimitReached is published when the campaign system reports its lead ceiling.
type AssignmentLeadLimitReached struct {
	BaseEvent
	BatchID   string `json:"batchId"`
	ContactID string `json:"contactId"`
}

func (e AssignmentLeadLimitReached) EventName() string { return "assignment.lead_limit.reached" }

// AssignmentPlatformDispatched is published for every per-platform dispatch of an orchestration.
type AssignmentPlatformDispatched struct {
	BaseEvent
	OrchestrationID string `json:"orchestrationId"`
	PlatformID      string `json:"platformId"`
	Status          string `json:"status"`
	HTTPStatus      int    `json:"httpStatus,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (e AssignmentPlatformDispatched) EventName() string { return "assignment.platform.dispatched" }

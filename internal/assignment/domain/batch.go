package domain

import (
	"time"

	"github.com/google/uuid"
)

// Batch is the ledger entry of one assignment run.
type Batch struct {
	ID               uuid.UUID
	BatchID          string
	OrchestrationID  *string
	PlatformID       *uuid.UUID
	Status           BatchStatus
	TotalCandidates  int
	Stats            Stats
	PlatformStats    map[string]PlatformStats
	LeadLimitReached bool
	Limits           RunLimits
	LastError        *string
	DryRun           bool
	StartedAt        time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// NewBatchID returns a fresh external batch handle.
func NewBatchID() string {
	return "batch_" + uuid.NewString()
}

// NewOrchestrationID returns a fresh orchestration handle.
func NewOrchestrationID() string {
	return "orch_" + uuid.NewString()
}

// IsGlobal reports whether the batch spans all platforms.
func (b Batch) IsGlobal() bool {
	return b.PlatformID == nil
}

// Remaining is the number of candidates still to process.
func (b Batch) Remaining() int {
	if r := b.TotalCandidates - b.Stats.Processed; r > 0 {
		return r
	}
	return 0
}

// UsedPerPlatform returns how many contacts each platform already contributed.
func (b Batch) UsedPerPlatform() map[uuid.UUID]int {
	used := make(map[uuid.UUID]int, len(b.PlatformStats))
	for key, ps := range b.PlatformStats {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		used[id] = ps.Processed()
	}
	return used
}

// NewBatchParams describes a batch to create.
type NewBatchParams struct {
	BatchID         string
	OrchestrationID *string
	PlatformID      *uuid.UUID
	Status          BatchStatus
	TotalCandidates int
	Limits          RunLimits
	DryRun          bool
}

// Outcome is one classified contact to record in the ledger.
type Outcome struct {
	BatchID        string
	Candidate      Candidate
	Classification Classification
	Message        string
}

// LogEntry is a row of the append-only assignment log.
type LogEntry struct {
	ID             uuid.UUID
	BatchID        string
	PlatformID     *uuid.UUID
	PlatformName   string
	ContactID      uuid.UUID
	CompanyID      *uuid.UUID
	Email          string
	ContactName    string
	CompanyName    string
	Classification Classification
	Message        *string
	CreatedAt      time.Time
}

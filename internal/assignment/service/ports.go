// Package service implements the assignment pipeline: candidate selection,
// the chunked worker, the driver loop and the per-platform fan-out.
package service

import (
	"context"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/blocklist"
	"outreach_backend/internal/campaigns"

	"github.com/google/uuid"
)

// Assigner pushes one lead into the external campaign system.
type Assigner interface {
	Enabled() bool
	Assign(ctx context.Context, lead campaigns.Lead) (campaigns.AssignResult, error)
}

// BlockChecker is the blocklist collaborator.
type BlockChecker interface {
	IsBlocked(ctx context.Context, s blocklist.Subject) (bool, error)
}

// ContinuationScheduler enqueues the next tick of an unfinished batch.
type ContinuationScheduler interface {
	ScheduleContinuation(ctx context.Context, batchID string) error
}

// PlatformDispatch is the request body a per-platform worker receives.
type PlatformDispatch struct {
	PlatformID      uuid.UUID
	OrchestrationID string
	DryRun          bool
	MaxTotal        int
	MaxPerPlatform  int
	DelayMs         int
	ChunkSize       int
}

// Dispatcher starts one per-platform worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, req PlatformDispatch) domain.DispatchOutcome
}

// dryRunAssigner accepts every lead without calling anything.
type dryRunAssigner struct{}

func (dryRunAssigner) Enabled() bool { return true }

func (dryRunAssigner) Assign(context.Context, campaigns.Lead) (campaigns.AssignResult, error) {
	return campaigns.AssignResult{Status: campaigns.StatusAdded}, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

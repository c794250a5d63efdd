package service

import (
	"context"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/events"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultDispatchConcurrency = 8

// OrchestrateOptions are the optional inputs of a fan-out trigger.
type OrchestrateOptions struct {
	Overrides domain.RunOverrides
	DryRun    bool
}

// PlatformDispatchResult is the per-platform line of an orchestration.
type PlatformDispatchResult struct {
	PlatformID     uuid.UUID
	PlatformName   string
	CandidateCount int
	Status         string
	HTTPStatus     int
	TimedOut       bool
	Error          string
}

// OrchestrationResult summarizes a fan-out.
type OrchestrationResult struct {
	Success         bool
	Skipped         bool
	OrchestrationID string
	TotalCandidates int
	DryRun          bool
	Platforms       []PlatformDispatchResult
}

// Triggered counts platforms whose worker was started.
func (r OrchestrationResult) Triggered() int {
	n := 0
	for _, p := range r.Platforms {
		if p.Status == domain.DispatchTriggered {
			n++
		}
	}
	return n
}

// Orchestrator fans a run out to one worker invocation per platform.
type Orchestrator struct {
	settings    repository.SettingsStore
	selector    *Selector
	dispatcher  Dispatcher
	bus         events.Bus
	log         *logger.Logger
	chunkSize   int
	concurrency int
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(settings repository.SettingsStore, selector *Selector, dispatcher Dispatcher, bus events.Bus, chunkSize int, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		settings:    settings,
		selector:    selector,
		dispatcher:  dispatcher,
		bus:         bus,
		log:         log,
		chunkSize:   chunkSize,
		concurrency: defaultDispatchConcurrency,
	}
}

// Orchestrate computes the platform groups and dispatches every group
// independently. The run fails only when no dispatch was sent.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts OrchestrateOptions) (OrchestrationResult, error) {
	settings, err := o.settings.GetSettings(ctx)
	if err != nil {
		return OrchestrationResult{}, err
	}
	if !settings.IsEnabled {
		o.log.Info("assignment disabled, skipping orchestration")
		return OrchestrationResult{Success: true, Skipped: true, DryRun: opts.DryRun}, nil
	}
	limits, err := opts.Overrides.Apply(settings, o.chunkSize)
	if err != nil {
		return OrchestrationResult{}, err
	}

	groups, err := o.selector.GroupedCandidates(ctx, limits.MaxTotal, limits.MaxPerPlatform)
	if err != nil {
		return OrchestrationResult{}, err
	}

	orchestrationID := domain.NewOrchestrationID()
	result := OrchestrationResult{
		OrchestrationID: orchestrationID,
		TotalCandidates: domain.TotalCandidates(groups),
		DryRun:          opts.DryRun,
		Platforms:       make([]PlatformDispatchResult, len(groups)),
	}
	if len(groups) == 0 {
		result.Success = true
		return result, nil
	}

	ctx = context.WithValue(ctx, logger.OrchestrationIDKey, orchestrationID)
	log := o.log.WithContext(ctx)
	log.Info("orchestrating assignment", "platforms", len(groups), "total_candidates", result.TotalCandidates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			outcome := o.dispatcher.Dispatch(gctx, PlatformDispatch{
				PlatformID:      group.PlatformID,
				OrchestrationID: orchestrationID,
				DryRun:          opts.DryRun,
				MaxTotal:        group.CandidateCount,
				MaxPerPlatform:  limits.MaxPerPlatform,
				DelayMs:         limits.DelayMs,
				ChunkSize:       limits.ChunkSize,
			})
			result.Platforms[i] = platformResult(group, outcome)
			o.publishDispatched(ctx, orchestrationID, result.Platforms[i])
			// Never fail the group: one platform must not cancel the others.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return OrchestrationResult{}, err
	}

	triggered := result.Triggered()
	result.Success = triggered > 0
	if result.Success {
		log.Info("assignment orchestration dispatched", "triggered", triggered, "failed", len(groups)-triggered)
	} else {
		log.Error("every platform dispatch failed", "platforms", len(groups))
	}
	return result, nil
}

func platformResult(group domain.PlatformGroup, outcome domain.DispatchOutcome) PlatformDispatchResult {
	res := PlatformDispatchResult{
		PlatformID:     group.PlatformID,
		PlatformName:   group.PlatformName,
		CandidateCount: group.CandidateCount,
		Status:         domain.DispatchStatus(outcome),
	}
	switch o := outcome.(type) {
	case domain.Sent:
		res.HTTPStatus = o.HTTPStatus
		res.TimedOut = o.TimedOut
	case domain.NotSent:
		res.HTTPStatus = o.HTTPStatus
		res.Error = o.Reason
	}
	return res
}

func (o *Orchestrator) publishDispatched(ctx context.Context, orchestrationID string, p PlatformDispatchResult) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, events.AssignmentPlatformDispatched{
		BaseEvent:       events.NewBaseEvent(),
		OrchestrationID: orchestrationID,
		PlatformID:      p.PlatformID.String(),
		Status:          p.Status,
		HTTPStatus:      p.HTTPStatus,
		Error:           p.Error,
	})
}

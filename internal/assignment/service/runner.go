package service

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultTimeBudget    = 50 * time.Second
	defaultMaxIterations = 200
)

// RunOptions are the optional inputs of a trigger.
type RunOptions struct {
	Overrides       domain.RunOverrides
	DryRun          bool
	ResumeBatchID   string
	PlatformID      *uuid.UUID
	OrchestrationID string
}

// RunResult is what a trigger reports back.
type RunResult struct {
	Success          bool
	Skipped          bool
	Message          string
	BatchID          string
	Status           domain.BatchStatus
	TotalCandidates  int
	Stats            domain.Stats
	PlatformStats    map[string]domain.PlatformStats
	HasMoreToProcess bool
	LeadLimitReached bool
	DryRun           bool
	Iterations       int
}

// RunnerConfig bounds one driver invocation.
type RunnerConfig struct {
	ChunkSize     int
	TimeBudget    time.Duration
	MaxIterations int
}

// RunnerDeps are the collaborators of a Runner.
type RunnerDeps struct {
	Settings   repository.SettingsStore
	Ledger     repository.Ledger
	Candidates repository.CandidateStore
	Selector   *Selector
	Worker     *Worker
	Assigner   Assigner
	// Scheduler may be nil; unfinished batches then wait for the next trigger.
	Scheduler ContinuationScheduler
	Log       *logger.Logger
}

// Runner is the driver loop around Worker.ProcessNextBatch. It owns batch
// creation; the worker owns batch progress.
type Runner struct {
	settings   repository.SettingsStore
	ledger     repository.Ledger
	candidates repository.CandidateStore
	selector   *Selector
	worker     *Worker
	assigner   Assigner
	scheduler  ContinuationScheduler
	log        *logger.Logger
	cfg        RunnerConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRunner creates a runner.
func NewRunner(deps RunnerDeps, cfg RunnerConfig) *Runner {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = domain.DefaultChunkSize
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = defaultTimeBudget
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		settings:   deps.Settings,
		ledger:     deps.Ledger,
		candidates: deps.Candidates,
		selector:   deps.Selector,
		worker:     deps.Worker,
		assigner:   deps.Assigner,
		scheduler:  deps.Scheduler,
		log:        log,
		cfg:        cfg,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// RunDailyAssignment runs the single-process path: it opens or continues the
// global batch and drives it within the time budget.
func (r *Runner) RunDailyAssignment(ctx context.Context, opts RunOptions) (RunResult, error) {
	if opts.PlatformID != nil {
		return r.RunPlatformAssignment(ctx, opts)
	}
	if opts.ResumeBatchID != "" {
		if opts.DryRun {
			return RunResult{}, apperr.Validation("dryRun cannot resume a batch")
		}
		return r.ContinueBatch(ctx, opts.ResumeBatchID)
	}

	limits, skipped, err := r.prepare(ctx, opts)
	if err != nil || skipped {
		return RunResult{Success: err == nil, Skipped: skipped, DryRun: opts.DryRun}, err
	}

	if opts.DryRun {
		groups, err := r.selector.GroupedCandidates(ctx, limits.MaxTotal, limits.MaxPerPlatform)
		if err != nil {
			return RunResult{}, err
		}
		return r.dryRun(ctx, groups, limits, nil, nil)
	}

	active, err := r.ledger.FindActiveBatch(ctx)
	if err != nil {
		return RunResult{}, err
	}
	if active != nil {
		r.log.Assignment(active.BatchID, "").Info("continuing active assignment batch")
		return r.drive(ctx, r.worker, active.BatchID, false)
	}

	groups, err := r.selector.GroupedCandidates(ctx, limits.MaxTotal, limits.MaxPerPlatform)
	if err != nil {
		return RunResult{}, err
	}
	total := domain.TotalCandidates(groups)
	if total == 0 {
		return RunResult{Success: true, Message: "no eligible candidates"}, nil
	}

	batch, err := r.ledger.CreateBatch(ctx, domain.NewBatchParams{
		BatchID:         domain.NewBatchID(),
		Status:          domain.StatusPending,
		TotalCandidates: total,
		Limits:          limits,
	})
	if apperr.Is(err, apperr.KindConflict) {
		// Lost the race against a concurrent trigger; join its batch.
		active, findErr := r.ledger.FindActiveBatch(ctx)
		if findErr != nil || active == nil {
			return RunResult{}, err
		}
		return r.drive(ctx, r.worker, active.BatchID, false)
	}
	if err != nil {
		return RunResult{}, err
	}
	r.log.Assignment(batch.BatchID, "").Info("assignment batch created",
		"total_candidates", total, "platforms", len(groups))
	return r.drive(ctx, r.worker, batch.BatchID, false)
}

// RunPlatformAssignment runs the worker for one platform of an orchestration.
// A repeated dispatch for the same orchestration continues the existing batch.
func (r *Runner) RunPlatformAssignment(ctx context.Context, opts RunOptions) (RunResult, error) {
	if opts.PlatformID == nil {
		return RunResult{}, apperr.Validation("platformId is required")
	}
	platformID := *opts.PlatformID

	limits, skipped, err := r.prepare(ctx, opts)
	if err != nil || skipped {
		return RunResult{Success: err == nil, Skipped: skipped, DryRun: opts.DryRun}, err
	}

	platform, err := r.candidates.GetPlatform(ctx, platformID)
	if err != nil {
		return RunResult{}, err
	}
	if !platform.IsActive {
		return RunResult{}, apperr.Validation("platform is not active")
	}

	orchestrationID := opts.OrchestrationID
	if orchestrationID == "" {
		orchestrationID = domain.NewOrchestrationID()
	}

	groups, err := r.selector.PlatformCandidates(ctx, platformID, limits.MaxTotal, limits.MaxPerPlatform)
	if err != nil {
		return RunResult{}, err
	}
	if opts.DryRun {
		return r.dryRun(ctx, groups, limits, &platformID, &orchestrationID)
	}

	existing, err := r.ledger.FindPlatformBatch(ctx, orchestrationID, platformID)
	if err != nil {
		return RunResult{}, err
	}
	if existing != nil {
		return r.drive(ctx, r.worker, existing.BatchID, false)
	}

	total := domain.TotalCandidates(groups)
	if total == 0 {
		return RunResult{Success: true, Message: "no eligible candidates"}, nil
	}
	batch, err := r.ledger.CreateBatch(ctx, domain.NewBatchParams{
		BatchID:         domain.NewBatchID(),
		OrchestrationID: &orchestrationID,
		PlatformID:      &platformID,
		Status:          domain.StatusPending,
		TotalCandidates: total,
		Limits:          limits,
	})
	if err != nil {
		return RunResult{}, err
	}
	r.log.Assignment(batch.BatchID, platformID.String()).Info("platform batch created",
		"orchestration_id", orchestrationID, "platform", platform.Name, "total_candidates", total)
	return r.drive(ctx, r.worker, batch.BatchID, false)
}

// ContinueBatch drives an existing batch. Terminal and paused batches are
// reported as they are. While assignment is disabled the batch is left
// untouched and stays resumable.
func (r *Runner) ContinueBatch(ctx context.Context, batchID string) (RunResult, error) {
	batch, err := r.ledger.GetBatch(ctx, batchID)
	if err != nil {
		return RunResult{}, err
	}
	if !batch.Status.IsActive() {
		return r.resultFor(batch, 0), nil
	}
	settings, err := r.settings.GetSettings(ctx)
	if err != nil {
		return RunResult{}, err
	}
	if !settings.IsEnabled {
		r.log.Assignment(batchID, "").Info("assignment disabled, leaving batch for later")
		return RunResult{Success: true, Skipped: true, BatchID: batchID, Status: batch.Status}, nil
	}
	if !r.assigner.Enabled() {
		return RunResult{}, apperr.Validation("campaign system not configured")
	}
	return r.drive(ctx, r.worker, batchID, false)
}

// prepare loads settings and resolves the effective limits. skipped is true
// when assignment is disabled.
func (r *Runner) prepare(ctx context.Context, opts RunOptions) (domain.RunLimits, bool, error) {
	settings, err := r.settings.GetSettings(ctx)
	if err != nil {
		return domain.RunLimits{}, false, err
	}
	if !settings.IsEnabled {
		r.log.Info("assignment disabled, skipping run")
		return domain.RunLimits{}, true, nil
	}
	limits, err := opts.Overrides.Apply(settings, r.cfg.ChunkSize)
	if err != nil {
		return domain.RunLimits{}, false, err
	}
	if !opts.DryRun && !r.assigner.Enabled() {
		return domain.RunLimits{}, false, apperr.Validation("campaign system not configured")
	}
	return limits, false, nil
}

// dryRun drives a throwaway batch in a private ledger.
func (r *Runner) dryRun(ctx context.Context, groups []domain.PlatformGroup, limits domain.RunLimits, platformID *uuid.UUID, orchestrationID *string) (RunResult, error) {
	total := domain.TotalCandidates(groups)
	if total == 0 {
		return RunResult{Success: true, DryRun: true, Message: "no eligible candidates"}, nil
	}
	ledger := repository.NewMemoryLedger()
	batch, err := ledger.CreateBatch(ctx, domain.NewBatchParams{
		BatchID:         domain.NewBatchID(),
		OrchestrationID: orchestrationID,
		PlatformID:      platformID,
		Status:          domain.StatusPending,
		TotalCandidates: total,
		Limits:          limits,
		DryRun:          true,
	})
	if err != nil {
		return RunResult{}, err
	}

	worker := r.worker.forDryRun(ledger)
	dry := *r
	dry.ledger = ledger
	dry.worker = worker
	dry.scheduler = nil
	dry.cfg.MaxIterations = max(r.cfg.MaxIterations, total)
	dry.cfg.TimeBudget = 0
	dry.sleep = worker.sleep
	return dry.drive(ctx, worker, batch.BatchID, true)
}

// drive calls the worker until the batch completes, halts, the iteration
// ceiling is hit or the next chunk would overrun the time budget.
func (r *Runner) drive(ctx context.Context, w *Worker, batchID string, dryRun bool) (RunResult, error) {
	log := r.log.Assignment(batchID, "")
	started := r.now()
	var lastChunk time.Duration
	iterations := 0
	busy := false

	for {
		if iterations >= r.cfg.MaxIterations {
			log.Warn("assignment iteration ceiling reached, batch stays resumable", "iterations", iterations)
			break
		}
		if r.cfg.TimeBudget > 0 && iterations > 0 && r.now().Sub(started)+lastChunk > r.cfg.TimeBudget {
			log.Info("assignment time budget exhausted", "iterations", iterations)
			break
		}

		chunkStarted := r.now()
		res, err := w.ProcessNextBatch(ctx, batchID)
		iterations++
		lastChunk = r.now().Sub(chunkStarted)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Warn("assignment run interrupted, batch stays resumable", "error", err)
			} else {
				log.Error("assignment chunk failed", "error", err)
			}
			return RunResult{BatchID: batchID, DryRun: dryRun, Iterations: iterations}, err
		}
		if res.Busy {
			busy = true
			break
		}
		if res.IsComplete || res.Halted {
			break
		}
		if err := r.sleep(ctx, res.Batch.Limits.Delay()); err != nil {
			return RunResult{BatchID: batchID, DryRun: dryRun, Iterations: iterations}, err
		}
	}

	batch, err := r.ledger.GetBatch(ctx, batchID)
	if err != nil {
		return RunResult{}, err
	}
	result := r.resultFor(batch, iterations)
	result.DryRun = dryRun

	if result.HasMoreToProcess && !busy && !dryRun && r.scheduler != nil {
		if err := r.scheduler.ScheduleContinuation(ctx, batchID); err != nil {
			log.Warn("failed to schedule batch continuation", "error", err)
		}
	}
	return result, nil
}

func (r *Runner) resultFor(b domain.Batch, iterations int) RunResult {
	return RunResult{
		Success:          true,
		BatchID:          b.BatchID,
		Status:           b.Status,
		TotalCandidates:  b.TotalCandidates,
		Stats:            b.Stats,
		PlatformStats:    b.PlatformStats,
		HasMoreToProcess: b.Status.IsActive(),
		LeadLimitReached: b.LeadLimitReached,
		DryRun:           b.DryRun,
		Iterations:       iterations,
	}
}

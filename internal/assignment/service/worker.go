package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/blocklist"
	"outreach_backend/internal/campaigns"
	"outreach_backend/internal/events"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"

	"github.com/google/uuid"
)

var errAssignFailed = errors.New("campaign assignment failed")

// ChunkResult is what one ProcessNextBatch call reports.
type ChunkResult struct {
	// IsComplete is true once the batch reached a terminal status.
	IsComplete bool
	// Halted is true when the batch was paused or cancelled mid-chunk.
	Halted bool
	// Busy is true when another chunk of the same batch is running in this process.
	Busy             bool
	Status           domain.BatchStatus
	Stats            domain.Stats
	ChunkStats       domain.Stats
	LeadLimitReached bool
	Batch            domain.Batch
}

// WorkerDeps are the collaborators of a Worker.
type WorkerDeps struct {
	Ledger    repository.Ledger
	Selector  *Selector
	Companies repository.CandidateStore
	Blocklist BlockChecker
	Assigner  Assigner
	Bus       events.Bus
	Log       *logger.Logger
}

// Worker processes one chunk of a batch per call. It only appends progress
// to batches it did not create.
type Worker struct {
	ledger    repository.Ledger
	selector  *Selector
	companies repository.CandidateStore
	blocklist BlockChecker
	assigner  Assigner
	bus       events.Bus
	log       *logger.Logger
	dryRun    bool

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	// Shared between a worker and its dry-run copies.
	running *runGuard
}

// NewWorker creates a worker.
func NewWorker(deps WorkerDeps) *Worker {
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Worker{
		ledger:    deps.Ledger,
		selector:  deps.Selector,
		companies: deps.Companies,
		blocklist: deps.Blocklist,
		assigner:  deps.Assigner,
		bus:       deps.Bus,
		log:       log,
		sleep:     sleepContext,
		now:       time.Now,
		running:   newRunGuard(),
	}
}

// forDryRun returns a copy that records into ledger and never calls the
// campaign system or sleeps.
func (w *Worker) forDryRun(ledger repository.Ledger) *Worker {
	c := *w
	c.ledger = ledger
	c.assigner = dryRunAssigner{}
	c.dryRun = true
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return &c
}

// ProcessNextBatch processes at most one chunk of the batch. Candidates are
// recomputed fresh and filtered against the assignment log, so a resumed
// batch never processes a contact twice.
func (w *Worker) ProcessNextBatch(ctx context.Context, batchID string) (ChunkResult, error) {
	if !w.running.acquire(batchID) {
		return ChunkResult{Busy: true}, nil
	}
	defer w.running.release(batchID)

	started := w.now()
	batch, err := w.ledger.GetBatch(ctx, batchID)
	if err != nil {
		return ChunkResult{}, err
	}
	platformID := ""
	if batch.PlatformID != nil {
		platformID = batch.PlatformID.String()
	}
	log := w.log.Assignment(batchID, platformID)

	switch {
	case batch.Status.IsTerminal():
		return resultFrom(batch, domain.Stats{}), nil
	case batch.Status == domain.StatusPaused:
		r := resultFrom(batch, domain.Stats{})
		r.Halted = true
		return r, nil
	case batch.Status == domain.StatusPending:
		if batch, err = w.ledger.TransitionStatus(ctx, batchID, domain.StatusProcessing); err != nil {
			return ChunkResult{}, err
		}
	}
	if batch.LeadLimitReached {
		return w.finalize(ctx, batch, domain.StatusCompleted, nil, domain.Stats{})
	}

	processed, err := w.ledger.ProcessedContactIDs(ctx, batchID)
	if err != nil {
		return ChunkResult{}, err
	}
	exclude := append([]uuid.UUID(nil), processed...)

	run := chunkRun{
		batch: batch,
		guard: domain.NewLeadLimitGuard(batch.LeadLimitReached),
		log:   log,
	}
	stop, err := w.runChunk(ctx, &run, exclude)
	w.publishChunk(ctx, batchID, run.stats.Processed, w.now().Sub(started))
	if err != nil {
		return w.afterError(ctx, batchID, run.stats, err)
	}

	if stop == stopLeadLimit {
		if err := w.ledger.MarkLeadLimitReached(ctx, batchID); err != nil {
			return ChunkResult{}, err
		}
		log.Warn("campaign lead limit reached, stopping batch")
	}

	current, err := w.ledger.GetBatch(ctx, batchID)
	if err != nil {
		return ChunkResult{}, err
	}
	switch {
	case stop == stopHalted:
		log.Info("assignment chunk halted", "status", current.Status, "processed", run.stats.Processed)
		r := resultFrom(current, run.stats)
		r.Halted = true
		return r, nil
	case stop == stopLeadLimit, stop == stopExhausted, current.Remaining() == 0:
		return w.finalize(ctx, current, domain.StatusCompleted, nil, run.stats)
	}
	return resultFrom(current, run.stats), nil
}

type stopReason int

const (
	stopChunkFull stopReason = iota
	stopHalted
	stopLeadLimit
	stopExhausted
)

type chunkRun struct {
	batch     domain.Batch
	guard     *domain.LeadLimitGuard
	stats     domain.Stats
	attempted int
	log       *logger.Logger
}

func (w *Worker) runChunk(ctx context.Context, run *chunkRun, exclude []uuid.UUID) (stopReason, error) {
	batchID := run.batch.BatchID
	chunkSize := run.batch.Limits.ChunkSize
	if chunkSize <= 0 {
		chunkSize = domain.DefaultChunkSize
	}
	delay := run.batch.Limits.Delay()
	called := false

	for {
		current, err := w.ledger.GetBatch(ctx, batchID)
		if err != nil {
			return stopChunkFull, err
		}
		if current.Remaining() == 0 {
			return stopExhausted, nil
		}
		want := min(chunkSize-run.attempted, current.Remaining())
		candidates, err := w.selector.Next(ctx, current, exclude, want)
		if err != nil {
			return stopChunkFull, err
		}
		if len(candidates) == 0 {
			return stopExhausted, nil
		}

		for _, c := range candidates {
			if !run.guard.Allows() {
				return stopLeadLimit, nil
			}
			if called {
				if err := w.sleep(ctx, delay); err != nil {
					return stopChunkFull, err
				}
			}
			// Pause and cancel land during the delay; read the status last.
			status, err := w.ledger.GetStatus(ctx, batchID)
			if err != nil {
				return stopChunkFull, err
			}
			if !status.IsActive() {
				return stopHalted, nil
			}

			verdict, err := w.handle(ctx, c)
			if err != nil {
				return stopChunkFull, err
			}
			called = verdict.called
			exclude = append(exclude, c.ContactID)
			if verdict.drop {
				run.log.Debug("candidate no longer eligible", "contact_id", c.ContactID, "reason", verdict.message)
				continue
			}

			recorded, err := w.ledger.RecordOutcome(ctx, domain.Outcome{
				BatchID:        batchID,
				Candidate:      c,
				Classification: verdict.class,
				Message:        verdict.message,
			})
			if err != nil {
				return stopChunkFull, err
			}
			if recorded {
				run.stats.Record(verdict.class)
				w.publishClassified(ctx, batchID, c, verdict.class)
			}
			run.attempted++

			if verdict.leadLimit {
				if run.guard.Trip() {
					w.publish(ctx, events.AssignmentLeadLimitReached{
						BaseEvent: events.NewBaseEvent(),
						BatchID:   batchID,
						ContactID: c.ContactID.String(),
					})
				}
				return stopLeadLimit, nil
			}
			if run.attempted >= chunkSize {
				return stopChunkFull, nil
			}
		}
	}
}

type verdict struct {
	class     domain.Classification
	message   string
	drop      bool
	called    bool
	leadLimit bool
}

// handle re-checks eligibility and classifies one candidate. A returned error
// means the batch cannot continue; per-contact failures are verdicts.
func (w *Worker) handle(ctx context.Context, c domain.Candidate) (verdict, error) {
	if w.blocklist != nil {
		blocked, err := w.blocklist.IsBlocked(ctx, blocklist.Subject{Email: c.Email, Domain: c.CompanyDomain, CompanyID: c.CompanyID})
		if err != nil {
			return verdict{class: domain.ClassError, message: "blocklist check failed"}, nil
		}
		if blocked {
			return verdict{drop: true, message: "blocked"}, nil
		}
	}

	state, err := w.companies.CompanyEligibility(ctx, c.CompanyID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return verdict{drop: true, message: "company removed"}, nil
	case err != nil:
		if ctx.Err() != nil {
			return verdict{}, ctx.Err()
		}
		return verdict{class: domain.ClassError, message: "company lookup failed"}, nil
	case !state.Qualified():
		return verdict{drop: true, message: "company " + state.QualificationStatus}, nil
	case state.IsCustomer:
		return verdict{class: domain.ClassSkippedKlant, message: "existing customer"}, nil
	}

	res, err := w.assigner.Assign(ctx, leadFor(c))
	if err != nil {
		if ctx.Err() != nil {
			return verdict{}, ctx.Err()
		}
		return verdict{}, fmt.Errorf("%w: %w", errAssignFailed, err)
	}
	v := verdict{called: true, message: res.Message}
	switch {
	case res.LeadLimitReached:
		v.class = domain.ClassError
		v.message = domain.MessageLeadLimitReached
		v.leadLimit = true
	case res.Status == campaigns.StatusAdded:
		v.class = domain.ClassAdded
	case res.Status == campaigns.StatusDuplicate:
		v.class = domain.ClassSkippedDuplicate
	case res.Status == campaigns.StatusRejected:
		v.class = domain.ClassSkippedAIError
	default:
		v.class = domain.ClassError
	}
	return v, nil
}

func leadFor(c domain.Candidate) campaigns.Lead {
	return campaigns.Lead{
		CampaignID:  c.CampaignID,
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		CompanyName: c.CompanyName,
		Title:       c.Title,
		Website:     c.CompanyDomain,
	}
}

// afterError decides what a failed chunk leaves behind. Cancellation keeps
// the batch resumable; a campaign client failure is systemic and fails the
// batch; anything else is noted on the batch, which keeps its last state.
func (w *Worker) afterError(ctx context.Context, batchID string, chunk domain.Stats, err error) (ChunkResult, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ChunkResult{ChunkStats: chunk}, err
	}
	msg := sanitize.Message(err.Error())
	if !errors.Is(err, errAssignFailed) {
		if setErr := w.ledger.SetLastError(context.WithoutCancel(ctx), batchID, msg); setErr != nil {
			w.log.Assignment(batchID, "").Warn("failed to record batch error", "error", setErr)
		}
		return ChunkResult{ChunkStats: chunk}, err
	}
	batch, getErr := w.ledger.GetBatch(context.WithoutCancel(ctx), batchID)
	if getErr != nil {
		return ChunkResult{ChunkStats: chunk}, err
	}
	res, finErr := w.finalize(context.WithoutCancel(ctx), batch, domain.StatusFailed, &msg, chunk)
	if finErr != nil {
		return res, errors.Join(err, finErr)
	}
	return res, err
}

func (w *Worker) finalize(ctx context.Context, batch domain.Batch, status domain.BatchStatus, lastError *string, chunk domain.Stats) (ChunkResult, error) {
	final, changed, err := w.ledger.FinalizeBatch(ctx, batch.BatchID, status, lastError)
	if err != nil {
		return ChunkResult{}, err
	}
	if changed {
		orchestrationID := ""
		if final.OrchestrationID != nil {
			orchestrationID = *final.OrchestrationID
		}
		w.publish(ctx, events.AssignmentBatchFinalized{
			BaseEvent:        events.NewBaseEvent(),
			BatchID:          final.BatchID,
			OrchestrationID:  orchestrationID,
			Status:           string(final.Status),
			Processed:        final.Stats.Processed,
			LeadLimitReached: final.LeadLimitReached,
		})
		w.log.Assignment(final.BatchID, "").Info("assignment batch finalized",
			"status", final.Status,
			"processed", final.Stats.Processed,
			"total", final.TotalCandidates,
			"lead_limit_reached", final.LeadLimitReached)
	}
	return resultFrom(final, chunk), nil
}

func resultFrom(b domain.Batch, chunk domain.Stats) ChunkResult {
	return ChunkResult{
		IsComplete:       b.Status.IsTerminal(),
		Status:           b.Status,
		Stats:            b.Stats,
		ChunkStats:       chunk,
		LeadLimitReached: b.LeadLimitReached,
		Batch:            b,
	}
}

func (w *Worker) publishClassified(ctx context.Context, batchID string, c domain.Candidate, class domain.Classification) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.AssignmentContactClassified{
		BaseEvent:      events.NewBaseEvent(),
		BatchID:        batchID,
		PlatformID:     c.PlatformID.String(),
		ContactID:      c.ContactID.String(),
		Classification: string(class),
		DryRun:         w.dryRun,
	})
}

func (w *Worker) publishChunk(ctx context.Context, batchID string, processed int, took time.Duration) {
	w.publish(ctx, events.AssignmentChunkProcessed{
		BaseEvent:  events.NewBaseEvent(),
		BatchID:    batchID,
		Processed:  processed,
		DurationMs: float64(took) / float64(time.Millisecond),
	})
}

// publish drops lifecycle events of dry runs.
func (w *Worker) publish(ctx context.Context, evt events.Event) {
	if w.bus == nil || w.dryRun {
		return
	}
	w.bus.Publish(ctx, evt)
}

// runGuard keeps two chunks of the same batch from running in one process.
type runGuard struct {
	mu     sync.Mutex
	active map[string]bool
}

func newRunGuard() *runGuard {
	return &runGuard{active: make(map[string]bool)}
}

func (g *runGuard) acquire(batchID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[batchID] {
		return false
	}
	g.active[batchID] = true
	return true
}

func (g *runGuard) release(batchID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, batchID)
}

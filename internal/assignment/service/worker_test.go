package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/campaigns"
	"outreach_backend/platform/apperr"
)

func processUntilComplete(t *testing.T, w *Worker, batchID string, maxCalls int) (ChunkResult, int) {
	t.Helper()
	for calls := 1; calls <= maxCalls; calls++ {
		res, err := w.ProcessNextBatch(context.Background(), batchID)
		if err != nil {
			t.Fatalf("chunk %d failed: %v", calls, err)
		}
		if !res.Stats.Consistent() {
			t.Fatalf("inconsistent counters after chunk %d: %+v", calls, res.Stats)
		}
		if res.IsComplete {
			return res, calls
		}
	}
	t.Fatalf("batch not complete after %d chunks", maxCalls)
	return ChunkResult{}, 0
}

func TestProcessNextBatchResumesWithoutDoubleCounting(t *testing.T) {
	store := newFakeStore(makeCandidates("alpha", 4), makeCandidates("beta", 4), makeCandidates("gamma", 4))
	h := newHarness(store, RunnerConfig{})
	batch := h.createBatch(10, limits(10, 4, 3))

	res, calls := processUntilComplete(t, h.worker, batch.BatchID, 10)

	if calls != 4 {
		t.Fatalf("expected 4 chunks of at most 3, got %d", calls)
	}
	if res.Status != domain.StatusCompleted || res.Stats.Processed != 10 {
		t.Fatalf("expected completed batch with 10 processed, got %s %+v", res.Status, res.Stats)
	}
	ids, _ := h.ledger.ProcessedContactIDs(context.Background(), batch.BatchID)
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id.String()] {
			t.Fatalf("contact %s logged twice", id)
		}
		seen[id.String()] = true
	}
	if len(ids) != 10 || h.assigner.callCount() != 10 {
		t.Fatalf("expected 10 log entries and 10 calls, got %d and %d", len(ids), h.assigner.callCount())
	}
	for name, ps := range res.Batch.PlatformStats {
		if ps.Processed() > 4 {
			t.Fatalf("platform %s exceeded its quota: %+v", name, ps)
		}
	}
}

func TestProcessNextBatchProcessesOneChunk(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 10)), RunnerConfig{})
	batch := h.createBatch(10, limits(10, 10, 4))

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsComplete || res.ChunkStats.Processed != 4 || res.Status != domain.StatusProcessing {
		t.Fatalf("expected one open chunk of 4, got %+v", res)
	}
	if len(h.delays) != 3 {
		t.Fatalf("expected a delay between each of 4 calls, got %d", len(h.delays))
	}
	if h.delays[0] != batch.Limits.Delay() {
		t.Fatalf("expected delay %v, got %v", batch.Limits.Delay(), h.delays[0])
	}
}

func TestProcessNextBatchStopsAtLeadLimit(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 10)), RunnerConfig{})
	h.assigner.respond = func(call int, _ campaigns.Lead) (campaigns.AssignResult, error) {
		if call == 3 {
			return campaigns.AssignResult{Status: campaigns.StatusError, LeadLimitReached: true, HTTPStatus: 402}, nil
		}
		return campaigns.AssignResult{Status: campaigns.StatusAdded}, nil
	}
	batch := h.createBatch(10, limits(10, 10, 10))

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsComplete || !res.LeadLimitReached {
		t.Fatalf("expected complete batch with lead limit, got %+v", res)
	}
	if res.Stats.Processed != 3 || res.Stats.Added != 2 || res.Stats.Errors != 1 {
		t.Fatalf("expected 3 processed (2 added, 1 error), got %+v", res.Stats)
	}
	if h.assigner.callCount() != 3 {
		t.Fatalf("expected 3 campaign calls, got %d", h.assigner.callCount())
	}

	again, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil || !again.IsComplete || h.assigner.callCount() != 3 {
		t.Fatalf("expected no further dispatch after the lead limit, got %+v err=%v", again, err)
	}
}

func TestProcessNextBatchClassifiesOutcomes(t *testing.T) {
	candidates := makeCandidates("alpha", 5)
	store := newFakeStore(candidates)
	store.setCompany(candidates[0].CompanyID, repository.CompanyState{QualificationStatus: repository.QualificationQualified, IsCustomer: true})
	h := newHarness(store, RunnerConfig{})
	h.assigner.respond = func(call int, _ campaigns.Lead) (campaigns.AssignResult, error) {
		switch call {
		case 1:
			return campaigns.AssignResult{Status: campaigns.StatusAdded}, nil
		case 2:
			return campaigns.AssignResult{Status: campaigns.StatusDuplicate}, nil
		case 3:
			return campaigns.AssignResult{Status: campaigns.StatusRejected, Message: "invalid email"}, nil
		default:
			return campaigns.AssignResult{Status: campaigns.StatusError, HTTPStatus: 500}, nil
		}
	}
	batch := h.createBatch(5, limits(5, 5, 25))

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.Stats{Processed: 5, Added: 1, SkippedKlant: 1, SkippedDuplicate: 1, SkippedAIError: 1, Errors: 1}
	if res.Stats != want {
		t.Fatalf("expected %+v, got %+v", want, res.Stats)
	}
	if h.assigner.callCount() != 4 {
		t.Fatalf("existing customer must not reach the campaign system, got %d calls", h.assigner.callCount())
	}
	ps := res.Batch.PlatformStats[platformID("alpha").String()]
	if ps.Added != 1 || ps.Skipped != 3 || ps.Errors != 1 {
		t.Fatalf("unexpected platform stats %+v", ps)
	}
}

func TestProcessNextBatchDropsCandidatesThatBecameIneligible(t *testing.T) {
	candidates := makeCandidates("alpha", 4)
	store := newFakeStore(candidates)
	store.setCompany(candidates[2].CompanyID, repository.CompanyState{QualificationStatus: repository.QualificationDisqualified})
	h := newHarness(store, RunnerConfig{})
	h.blocklist.block(candidates[1].Email)
	batch := h.createBatch(4, limits(4, 4, 25))

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsComplete || res.Status != domain.StatusCompleted {
		t.Fatalf("expected completion once candidates run out, got %+v", res)
	}
	if res.Stats.Processed != 2 {
		t.Fatalf("blocked and disqualified candidates must not be counted, got %+v", res.Stats)
	}
	entries, _, _ := h.ledger.ListLogs(context.Background(), repository.LogFilter{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
}

func TestCancelledBatchProcessesNothingFurther(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 6)), RunnerConfig{})
	batch := h.createBatch(6, limits(6, 6, 2))
	batches := NewBatchService(h.ledger, nil, nil, nil)

	if _, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := batches.Cancel(context.Background(), batch.BatchID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusCancelled || !res.IsComplete {
		t.Fatalf("expected cancelled batch, got %+v", res)
	}
	ids, _ := h.ledger.ProcessedContactIDs(context.Background(), batch.BatchID)
	if len(ids) != 2 || h.assigner.callCount() != 2 {
		t.Fatalf("expected no work after cancellation, got %d entries and %d calls", len(ids), h.assigner.callCount())
	}
}

func TestPauseHaltsAtNextCandidateBoundary(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 6)), RunnerConfig{})
	batch := h.createBatch(6, limits(6, 6, 6))
	batches := NewBatchService(h.ledger, h.scheduler, nil, nil)
	h.assigner.respond = func(call int, _ campaigns.Lead) (campaigns.AssignResult, error) {
		if call == 2 {
			if _, err := batches.Pause(context.Background(), batch.BatchID); err != nil {
				t.Errorf("pause failed: %v", err)
			}
		}
		return campaigns.AssignResult{Status: campaigns.StatusAdded}, nil
	}

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Halted || res.Status != domain.StatusPaused || res.Stats.Processed != 2 {
		t.Fatalf("expected halt after the in-flight contact, got %+v", res)
	}

	if _, err := batches.Resume(context.Background(), batch.BatchID); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if got := h.scheduler.scheduled(); len(got) != 1 || got[0] != batch.BatchID {
		t.Fatalf("expected resume to schedule a continuation, got %v", got)
	}
	h.assigner.respond = nil
	final, _ := processUntilComplete(t, h.worker, batch.BatchID, 3)
	if final.Stats.Processed != 6 {
		t.Fatalf("expected all 6 processed after resume, got %+v", final.Stats)
	}
}

func TestProcessNextBatchBusyWhenAlreadyRunning(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 2)), RunnerConfig{})
	batch := h.createBatch(2, limits(2, 2, 25))

	h.worker.running.acquire(batch.BatchID)
	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil || !res.Busy {
		t.Fatalf("expected busy result, got %+v err=%v", res, err)
	}
	if h.assigner.callCount() != 0 {
		t.Fatalf("busy worker must not call the campaign system")
	}
}

func TestProcessNextBatchFailsBatchOnSystemicError(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 3)), RunnerConfig{})
	h.assigner.respond = func(int, campaigns.Lead) (campaigns.AssignResult, error) {
		return campaigns.AssignResult{}, campaigns.ErrNotConfigured
	}
	batch := h.createBatch(3, limits(3, 3, 25))

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if !errors.Is(err, campaigns.ErrNotConfigured) {
		t.Fatalf("expected not-configured error, got %v", err)
	}
	if res.Status != domain.StatusFailed || res.Batch.LastError == nil {
		t.Fatalf("expected failed batch with last error, got %+v", res)
	}
}

func TestProcessNextBatchCancelledContextLeavesBatchResumable(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 3)), RunnerConfig{})
	batch := h.createBatch(3, limits(3, 3, 25))
	ctx, cancel := context.WithCancel(context.Background())
	h.assigner.respond = func(call int, _ campaigns.Lead) (campaigns.AssignResult, error) {
		cancel()
		return campaigns.AssignResult{Status: campaigns.StatusAdded}, nil
	}

	_, err := h.worker.ProcessNextBatch(ctx, batch.BatchID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	status, _ := h.ledger.GetStatus(context.Background(), batch.BatchID)
	if status != domain.StatusProcessing {
		t.Fatalf("expected batch to stay processing, got %s", status)
	}
}

func TestCancelDuringDelaySendsNothingFurther(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 5)), RunnerConfig{})
	batch := h.createBatch(5, limits(5, 5, 5))
	batches := NewBatchService(h.ledger, nil, nil, nil)
	h.worker.sleep = func(ctx context.Context, _ time.Duration) error {
		if _, err := batches.Cancel(context.Background(), batch.BatchID); err != nil && !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("cancel failed: %v", err)
		}
		return ctx.Err()
	}

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusCancelled || !res.IsComplete {
		t.Fatalf("expected cancelled batch, got %+v", res)
	}
	if h.assigner.callCount() != 1 || res.Stats.Processed != 1 {
		t.Fatalf("expected only the contact before the delay, got %d calls and %d processed", h.assigner.callCount(), res.Stats.Processed)
	}
}

func TestPauseDuringDelayHaltsBeforeNextContact(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 4)), RunnerConfig{})
	batch := h.createBatch(4, limits(4, 4, 4))
	batches := NewBatchService(h.ledger, nil, nil, nil)
	h.worker.sleep = func(ctx context.Context, _ time.Duration) error {
		_, _ = batches.Pause(context.Background(), batch.BatchID)
		return ctx.Err()
	}

	res, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Halted || res.Status != domain.StatusPaused || h.assigner.callCount() != 1 {
		t.Fatalf("expected halt before the second contact, got %+v with %d calls", res, h.assigner.callCount())
	}
}

func TestProcessNextBatchRecordsUnexpectedErrors(t *testing.T) {
	store := newFakeStore(makeCandidates("alpha", 3))
	h := newHarness(store, RunnerConfig{})
	batch := h.createBatch(3, limits(3, 3, 25))
	store.listErr = errors.New("connection reset by peer")

	_, err := h.worker.ProcessNextBatch(context.Background(), batch.BatchID)
	if err == nil {
		t.Fatal("expected the store error")
	}
	got, _ := h.ledger.GetBatch(context.Background(), batch.BatchID)
	if got.Status != domain.StatusProcessing {
		t.Fatalf("expected batch to keep its last state, got %s", got.Status)
	}
	if got.LastError == nil || !strings.Contains(*got.LastError, "connection reset") {
		t.Fatalf("expected last error to be recorded, got %v", got.LastError)
	}
}

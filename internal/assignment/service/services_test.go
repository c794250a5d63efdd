package service

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/platform/apperr"
)

func TestCancelTwiceConflicts(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 2)), RunnerConfig{})
	batch := h.createBatch(2, limits(2, 2, 25))
	svc := NewBatchService(h.ledger, nil, nil, nil)

	cancelled, err := svc.Cancel(context.Background(), batch.BatchID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled || cancelled.CompletedAt == nil {
		t.Fatalf("expected finalized cancelled batch, got %+v", cancelled)
	}
	if _, err := svc.Cancel(context.Background(), batch.BatchID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second cancel, got %v", err)
	}
	if _, err := svc.Resume(context.Background(), batch.BatchID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict resuming a cancelled batch, got %v", err)
	}
}

func TestBatchListNormalizesPaging(t *testing.T) {
	h := newHarness(newFakeStore(), RunnerConfig{})
	for i := 0; i < 3; i++ {
		b := h.createBatch(1, limits(1, 1, 1))
		if _, _, err := h.ledger.FinalizeBatch(context.Background(), b.BatchID, domain.StatusCompleted, nil); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	svc := NewBatchService(h.ledger, nil, nil, nil)

	items, total, err := svc.List(context.Background(), repository.BatchFilter{Page: 0, Limit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 batches, got %d of %d", len(items), total)
	}
}

func TestSettingsUpdateValidatesRanges(t *testing.T) {
	store := &fakeSettings{settings: domain.DefaultSettings()}
	svc := NewSettingsService(store)

	bad := domain.DefaultSettings()
	bad.DelayBetweenContactsMs = 50
	if _, err := svc.Update(context.Background(), bad); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	good := domain.DefaultSettings()
	good.MaxTotalContacts = 1200
	good.IsEnabled = false
	saved, err := svc.Update(context.Background(), good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background())
	if saved.MaxTotalContacts != 1200 || got.IsEnabled {
		t.Fatalf("expected saved settings, got %+v", got)
	}
}

func TestLogListRejectsInvertedDateRange(t *testing.T) {
	svc := NewLogService(repository.NewMemoryLedger())
	from := baseTime
	to := baseTime.Add(-time.Hour)

	if _, _, err := svc.List(context.Background(), repository.LogFilter{DateFrom: &from, DateTo: &to}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLogPruneKeepsActiveBatches(t *testing.T) {
	h := newHarness(newFakeStore(makeCandidates("alpha", 4)), RunnerConfig{ChunkSize: 2, MaxIterations: 1})
	if _, err := h.runner.RunDailyAssignment(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewLogService(h.ledger)

	deleted, err := svc.Prune(context.Background(), time.Hour, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("logs of an active batch must survive retention, deleted %d", deleted)
	}
}

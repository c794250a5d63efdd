package service

import (
	"context"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/events"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// BatchService inspects and steers batches. Pause and cancel take effect at
// the worker's next candidate boundary.
type BatchService struct {
	ledger    repository.Ledger
	scheduler ContinuationScheduler
	bus       events.Bus
	log       *logger.Logger
}

// NewBatchService creates the service. scheduler may be nil.
func NewBatchService(ledger repository.Ledger, scheduler ContinuationScheduler, bus events.Bus, log *logger.Logger) *BatchService {
	if log == nil {
		log = logger.Discard()
	}
	return &BatchService{ledger: ledger, scheduler: scheduler, bus: bus, log: log}
}

// Get returns one batch.
func (s *BatchService) Get(ctx context.Context, batchID string) (domain.Batch, error) {
	return s.ledger.GetBatch(ctx, batchID)
}

// List returns a page of batches and the total count.
func (s *BatchService) List(ctx context.Context, filter repository.BatchFilter) ([]domain.Batch, int, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	return s.ledger.ListBatches(ctx, filter)
}

// Pause stops the batch at the next candidate boundary.
func (s *BatchService) Pause(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := s.ledger.TransitionStatus(ctx, batchID, domain.StatusPaused)
	if err != nil {
		return domain.Batch{}, err
	}
	s.log.Assignment(batchID, "").Info("assignment batch paused")
	return batch, nil
}

// Resume flips a paused batch back to processing and schedules its next tick.
func (s *BatchService) Resume(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := s.ledger.TransitionStatus(ctx, batchID, domain.StatusProcessing)
	if err != nil {
		return domain.Batch{}, err
	}
	log := s.log.Assignment(batchID, "")
	log.Info("assignment batch resumed")
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleContinuation(ctx, batchID); err != nil {
			log.Warn("failed to schedule resumed batch", "error", err)
		}
	}
	return batch, nil
}

// Cancel finalizes the batch as cancelled. Unprocessed candidates stay
// eligible for a later run.
func (s *BatchService) Cancel(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, changed, err := s.ledger.FinalizeBatch(ctx, batchID, domain.StatusCancelled, nil)
	if err != nil {
		return domain.Batch{}, err
	}
	if !changed {
		return domain.Batch{}, apperr.Conflict("batch already " + string(batch.Status)).WithOp("cancel_batch")
	}
	s.log.Assignment(batchID, "").Info("assignment batch cancelled", "processed", batch.Stats.Processed)
	if s.bus != nil {
		orchestrationID := ""
		if batch.OrchestrationID != nil {
			orchestrationID = *batch.OrchestrationID
		}
		s.bus.Publish(ctx, events.AssignmentBatchFinalized{
			BaseEvent:        events.NewBaseEvent(),
			BatchID:          batch.BatchID,
			OrchestrationID:  orchestrationID,
			Status:           string(batch.Status),
			Processed:        batch.Stats.Processed,
			LeadLimitReached: batch.LeadLimitReached,
		})
	}
	return batch, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

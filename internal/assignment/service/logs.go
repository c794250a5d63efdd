package service

import (
	"context"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/platform/apperr"
)

// LogService reads and prunes the assignment log.
type LogService struct {
	store repository.LogStore
}

// NewLogService creates the service.
func NewLogService(store repository.LogStore) *LogService {
	return &LogService{store: store}
}

// List returns a page of log entries and the total count.
func (s *LogService) List(ctx context.Context, filter repository.LogFilter) ([]domain.LogEntry, int, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, 0, apperr.Validation("dateTo must not be before dateFrom")
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	return s.store.ListLogs(ctx, filter)
}

// Prune deletes log entries of finished batches older than retention.
func (s *LogService) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.store.DeleteLogsBefore(ctx, now.Add(-retention))
}

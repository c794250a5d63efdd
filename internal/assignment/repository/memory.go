package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// MemoryLedger is a process-local Ledger. Dry runs use a fresh instance per
// run so nothing reaches Postgres; it follows the same exactly-once rules as
// the SQL ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
	logs    map[string][]domain.LogEntry
	seen    map[string]map[uuid.UUID]bool
	now     func() time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		batches: make(map[string]*domain.Batch),
		logs:    make(map[string][]domain.LogEntry),
		seen:    make(map[string]map[uuid.UUID]bool),
		now:     time.Now,
	}
}

var (
	_ Ledger   = (*MemoryLedger)(nil)
	_ LogStore = (*MemoryLedger)(nil)
)

// CreateBatch stores a new batch with zeroed counters.
func (m *MemoryLedger) CreateBatch(_ context.Context, p domain.NewBatchParams) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.PlatformID == nil {
		for _, b := range m.batches {
			if b.IsGlobal() && b.Status.IsActive() {
				return domain.Batch{}, apperr.Conflict(errBatchActive).WithOp(opCreateBatch)
			}
		}
	}
	if _, exists := m.batches[p.BatchID]; exists {
		return domain.Batch{}, apperr.Conflict("batch id already exists").WithOp(opCreateBatch)
	}

	status := p.Status
	if status == "" {
		status = domain.StatusPending
	}
	now := m.now()
	b := &domain.Batch{
		ID:              uuid.New(),
		BatchID:         p.BatchID,
		OrchestrationID: p.OrchestrationID,
		PlatformID:      p.PlatformID,
		Status:          status,
		TotalCandidates: p.TotalCandidates,
		PlatformStats:   map[string]domain.PlatformStats{},
		Limits:          p.Limits,
		DryRun:          p.DryRun,
		StartedAt:       now,
		UpdatedAt:       now,
	}
	m.batches[p.BatchID] = b
	return clone(b), nil
}

// FindActiveBatch returns the active global batch, if any.
func (m *MemoryLedger) FindActiveBatch(_ context.Context) (*domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.IsGlobal() && b.Status.IsActive() {
			c := clone(b)
			return &c, nil
		}
	}
	return nil, nil
}

// FindPlatformBatch returns the platform batch of an orchestration, if any.
func (m *MemoryLedger) FindPlatformBatch(_ context.Context, orchestrationID string, platformID uuid.UUID) (*domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.OrchestrationID != nil && *b.OrchestrationID == orchestrationID &&
			b.PlatformID != nil && *b.PlatformID == platformID {
			c := clone(b)
			return &c, nil
		}
	}
	return nil, nil
}

// GetBatch returns a copy of the batch.
func (m *MemoryLedger) GetBatch(_ context.Context, batchID string) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	return clone(b), nil
}

// GetStatus returns the batch status.
func (m *MemoryLedger) GetStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	b, err := m.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	return b.Status, nil
}

// ListBatches returns a page of batches, newest first.
func (m *MemoryLedger) ListBatches(_ context.Context, f BatchFilter) ([]domain.Batch, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]domain.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.OrchestrationID != nil && (b.OrchestrationID == nil || *b.OrchestrationID != *f.OrchestrationID) {
			continue
		}
		matched = append(matched, clone(b))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })
	return page(matched, f.Offset(), f.Limit), len(matched), nil
}

func (m *MemoryLedger) applyLocked(batchID string, delta domain.ProgressDelta) error {
	b, ok := m.batches[batchID]
	if !ok {
		return apperr.NotFound("batch not found")
	}
	next := b.Stats.Add(delta.Stats)
	if next.Processed > b.TotalCandidates {
		return fmt.Errorf("increment batch counters: processed %d exceeds total %d", next.Processed, b.TotalCandidates)
	}
	b.Stats = next
	b.PlatformStats = domain.MergePlatformStats(b.PlatformStats, delta.Platforms)
	b.UpdatedAt = m.now()
	return nil
}

// RecordOutcome appends the log entry once per contact and counts it.
// Terminal batches take no further entries.
func (m *MemoryLedger) RecordOutcome(_ context.Context, o domain.Outcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[o.BatchID]
	if !ok {
		return false, apperr.NotFound("batch not found")
	}
	if b.Status.IsTerminal() {
		return false, nil
	}
	seen := m.seen[o.BatchID]
	if seen == nil {
		seen = make(map[uuid.UUID]bool)
		m.seen[o.BatchID] = seen
	}
	if seen[o.Candidate.ContactID] {
		return false, nil
	}

	c := o.Candidate
	if err := m.applyLocked(o.BatchID, domain.DeltaFor(c.PlatformID.String(), o.Classification)); err != nil {
		return false, err
	}
	seen[c.ContactID] = true

	entry := domain.LogEntry{
		ID:             uuid.New(),
		BatchID:        o.BatchID,
		PlatformID:     nullableUUID(c.PlatformID),
		PlatformName:   c.PlatformName,
		ContactID:      c.ContactID,
		CompanyID:      nullableUUID(c.CompanyID),
		Email:          c.Email,
		ContactName:    c.FirstName + " " + c.LastName,
		CompanyName:    c.CompanyName,
		Classification: o.Classification,
		CreatedAt:      m.now(),
	}
	if o.Message != "" {
		msg := o.Message
		entry.Message = &msg
	}
	m.logs[o.BatchID] = append(m.logs[o.BatchID], entry)
	return true, nil
}

// ProcessedContactIDs returns the contacts logged for the batch.
func (m *MemoryLedger) ProcessedContactIDs(_ context.Context, batchID string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.logs[batchID]))
	for _, e := range m.logs[batchID] {
		ids = append(ids, e.ContactID)
	}
	return ids, nil
}

// TransitionStatus applies a state-machine step.
func (m *MemoryLedger) TransitionStatus(_ context.Context, batchID string, to domain.BatchStatus) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	if !domain.CanTransition(b.Status, to) {
		return domain.Batch{}, apperr.Conflict(fmt.Sprintf("cannot move batch from %s to %s", b.Status, to)).WithOp(opTransition)
	}
	if b.IsGlobal() && to.IsActive() && !b.Status.IsActive() {
		for id, other := range m.batches {
			if id != batchID && other.IsGlobal() && other.Status.IsActive() {
				return domain.Batch{}, apperr.Conflict(errBatchActive).WithOp(opTransition)
			}
		}
	}
	b.Status = to
	b.UpdatedAt = m.now()
	return clone(b), nil
}

// MarkLeadLimitReached sets the lead-limit flag.
func (m *MemoryLedger) MarkLeadLimitReached(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return apperr.NotFound("batch not found")
	}
	b.LeadLimitReached = true
	return nil
}

// SetLastError records the latest failure.
func (m *MemoryLedger) SetLastError(_ context.Context, batchID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return apperr.NotFound("batch not found")
	}
	b.LastError = &message
	return nil
}

// FinalizeBatch moves a non-terminal batch to a terminal status exactly once.
func (m *MemoryLedger) FinalizeBatch(_ context.Context, batchID string, status domain.BatchStatus, lastError *string) (domain.Batch, bool, error) {
	if !status.IsTerminal() {
		return domain.Batch{}, false, apperr.Validation("finalize requires a terminal status")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return domain.Batch{}, false, apperr.NotFound("batch not found")
	}
	if b.Status.IsTerminal() {
		return clone(b), false, nil
	}
	now := m.now()
	b.Status = status
	if lastError != nil {
		b.LastError = lastError
	}
	b.CompletedAt = &now
	b.UpdatedAt = now
	return clone(b), true, nil
}

// ListLogs filters the in-memory log.
func (m *MemoryLedger) ListLogs(_ context.Context, f LogFilter) ([]domain.LogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]domain.LogEntry, 0)
	for batchID, entries := range m.logs {
		if f.BatchID != nil && *f.BatchID != batchID {
			continue
		}
		for _, e := range entries {
			if f.Classification != nil && e.Classification != *f.Classification {
				continue
			}
			if f.PlatformID != nil && (e.PlatformID == nil || *e.PlatformID != *f.PlatformID) {
				continue
			}
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Offset(), f.Limit), len(matched), nil
}

// DeleteLogsBefore prunes entries of terminal batches older than cutoff.
func (m *MemoryLedger) DeleteLogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for batchID, entries := range m.logs {
		b, ok := m.batches[batchID]
		if !ok || !b.Status.IsTerminal() {
			continue
		}
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		m.logs[batchID] = kept
	}
	return deleted, nil
}

func clone(b *domain.Batch) domain.Batch {
	c := *b
	c.PlatformStats = domain.MergePlatformStats(b.PlatformStats, nil)
	return c
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opCreateBatch  = "assignment.create_batch"
	opTransition   = "assignment.transition_status"
	errBatchActive = "another global assignment batch is already active"
	pgUniqueCode   = "23505"
)

const batchColumns = `
	id, batch_id, orchestration_id, platform_id, status, total_candidates,
	processed, added, skipped_duplicate, skipped_klant, skipped_ai_error, errors,
	platform_stats, lead_limit_reached, max_total, max_per_platform, delay_ms, chunk_size,
	last_error, started_at, completed_at, updated_at`

const createBatchQuery = `
	INSERT INTO assignment_batches (
		batch_id, orchestration_id, platform_id, status, total_candidates,
		max_total, max_per_platform, delay_ms, chunk_size
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING` + batchColumns

const findActiveBatchQuery = `
	SELECT` + batchColumns + `
	FROM assignment_batches
	WHERE platform_id IS NULL AND status IN ('pending', 'processing')
	ORDER BY started_at DESC
	LIMIT 1`

const findPlatformBatchQuery = `
	SELECT` + batchColumns + `
	FROM assignment_batches
	WHERE orchestration_id = $1 AND platform_id = $2
	ORDER BY started_at DESC
	LIMIT 1`

const getBatchQuery = `
	SELECT` + batchColumns + `
	FROM assignment_batches
	WHERE batch_id = $1`

const listBatchesQuery = `
	SELECT` + batchColumns + `
	FROM assignment_batches
	WHERE ($1::text IS NULL OR status = $1)
		AND ($2::text IS NULL OR orchestration_id = $2)
	ORDER BY started_at DESC, id DESC
	LIMIT $3 OFFSET $4`

const countBatchesQuery = `
	SELECT COUNT(*)
	FROM assignment_batches
	WHERE ($1::text IS NULL OR status = $1)
		AND ($2::text IS NULL OR orchestration_id = $2)`

// incrementCountersQuery is additive: concurrent writers converge instead of
// overwriting each other.
const incrementCountersQuery = `
	UPDATE assignment_batches SET
		processed = processed + $2,
		added = added + $3,
		skipped_duplicate = skipped_duplicate + $4,
		skipped_klant = skipped_klant + $5,
		skipped_ai_error = skipped_ai_error + $6,
		errors = errors + $7,
		updated_at = now()
	WHERE batch_id = $1`

const mergePlatformStatsQuery = `
	UPDATE assignment_batches SET
		platform_stats = jsonb_set(platform_stats, ARRAY[$2::text], jsonb_build_object(
			'added', COALESCE((platform_stats -> $2::text ->> 'added')::int, 0) + $3,
			'skipped', COALESCE((platform_stats -> $2::text ->> 'skipped')::int, 0) + $4,
			'errors', COALESCE((platform_stats -> $2::text ->> 'errors')::int, 0) + $5
		), true)
	WHERE batch_id = $1`

const insertLogQuery = `
	INSERT INTO assignment_logs (batch_id, platform_id, contact_id, company_id, email, classification, message)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (batch_id, contact_id) DO NOTHING`

const markContactQuery = `
	UPDATE contacts SET
		campaign_assignment_status = $2::text,
		campaign_assigned_at = CASE WHEN $2::text = 'added' THEN now() ELSE campaign_assigned_at END
	WHERE id = $1`

// lockBatchStatusQuery holds the batch row for the rest of the outcome
// transaction, so a concurrent finalize waits for it or wins before it.
const lockBatchStatusQuery = `
	SELECT status FROM assignment_batches WHERE batch_id = $1 FOR UPDATE`

const processedContactIDsQuery = `
	SELECT contact_id FROM assignment_logs WHERE batch_id = $1`

const transitionStatusQuery = `
	UPDATE assignment_batches SET status = $2, updated_at = now()
	WHERE batch_id = $1 AND status = ANY($3::text[])
	RETURNING` + batchColumns

const markLeadLimitQuery = `
	UPDATE assignment_batches SET lead_limit_reached = true, updated_at = now()
	WHERE batch_id = $1`

const setLastErrorQuery = `
	UPDATE assignment_batches SET last_error = $2, updated_at = now()
	WHERE batch_id = $1`

// finalizeBatchQuery only matches non-terminal batches, so a batch becomes
// terminal exactly once.
const finalizeBatchQuery = `
	UPDATE assignment_batches SET
		status = $2,
		last_error = COALESCE($3, last_error),
		completed_at = now(),
		updated_at = now()
	WHERE batch_id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
	RETURNING` + batchColumns

// CreateBatch inserts a new batch with zeroed counters.
func (r *Repository) CreateBatch(ctx context.Context, p domain.NewBatchParams) (domain.Batch, error) {
	status := p.Status
	if status == "" {
		status = domain.StatusPending
	}
	row := r.pool.QueryRow(ctx, createBatchQuery,
		p.BatchID, p.OrchestrationID, p.PlatformID, string(status), p.TotalCandidates,
		p.Limits.MaxTotal, p.Limits.MaxPerPlatform, p.Limits.DelayMs, p.Limits.ChunkSize,
	)
	batch, err := scanBatch(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode {
			return domain.Batch{}, apperr.Conflict(errBatchActive).WithOp(opCreateBatch)
		}
		return domain.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	return batch, nil
}

// FindActiveBatch returns the pending or processing global batch, if any.
func (r *Repository) FindActiveBatch(ctx context.Context) (*domain.Batch, error) {
	return r.findOne(ctx, "find active batch", findActiveBatchQuery)
}

// FindPlatformBatch returns the batch a platform worker created for an orchestration.
func (r *Repository) FindPlatformBatch(ctx context.Context, orchestrationID string, platformID uuid.UUID) (*domain.Batch, error) {
	return r.findOne(ctx, "find platform batch", findPlatformBatchQuery, orchestrationID, platformID)
}

func (r *Repository) findOne(ctx context.Context, op, query string, args ...any) (*domain.Batch, error) {
	batch, err := scanBatch(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &batch, nil
}

// GetBatch loads a batch by its external handle.
func (r *Repository) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := scanBatch(r.pool.QueryRow(ctx, getBatchQuery, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	if err != nil {
		return domain.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// GetStatus reads only the status column.
func (r *Repository) GetStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM assignment_batches WHERE batch_id = $1`, batchID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("batch not found")
	}
	if err != nil {
		return "", fmt.Errorf("get batch status: %w", err)
	}
	return domain.BatchStatus(status), nil
}

// ListBatches returns a page of batches, newest first.
func (r *Repository) ListBatches(ctx context.Context, f BatchFilter) ([]domain.Batch, int, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	var total int
	if err := r.pool.QueryRow(ctx, countBatchesQuery, status, f.OrchestrationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	rows, err := r.pool.Query(ctx, listBatchesQuery, status, f.OrchestrationID, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, total, nil
}

func applyProgress(ctx context.Context, q querier, batchID string, delta domain.ProgressDelta) error {
	s := delta.Stats
	tag, err := q.Exec(ctx, incrementCountersQuery, batchID,
		s.Processed, s.Added, s.SkippedDuplicate, s.SkippedKlant, s.SkippedAIError, s.Errors)
	if err != nil {
		return fmt.Errorf("increment batch counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("batch not found")
	}
	for platformID, ps := range delta.Platforms {
		if _, err := q.Exec(ctx, mergePlatformStatsQuery, batchID, platformID, ps.Added, ps.Skipped, ps.Errors); err != nil {
			return fmt.Errorf("merge platform stats: %w", err)
		}
	}
	return nil
}

// RecordOutcome appends the log row and, only if it was new, counts it and
// marks the contact. Outcomes for terminal batches are dropped.
func (r *Repository) RecordOutcome(ctx context.Context, o domain.Outcome) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin record outcome: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, lockBatchStatusQuery, o.BatchID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.NotFound("batch not found")
	}
	if err != nil {
		return false, fmt.Errorf("lock batch: %w", err)
	}
	if domain.BatchStatus(status).IsTerminal() {
		return false, nil
	}

	c := o.Candidate
	var message *string
	if o.Message != "" {
		message = &o.Message
	}
	tag, err := tx.Exec(ctx, insertLogQuery,
		o.BatchID, nullableUUID(c.PlatformID), c.ContactID, nullableUUID(c.CompanyID), c.Email, string(o.Classification), message)
	if err != nil {
		return false, fmt.Errorf("insert assignment log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := applyProgress(ctx, tx, o.BatchID, domain.DeltaFor(c.PlatformID.String(), o.Classification)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, markContactQuery, c.ContactID, string(o.Classification)); err != nil {
		return false, fmt.Errorf("mark contact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit record outcome: %w", err)
	}
	return true, nil
}

// ProcessedContactIDs returns every contact logged for the batch.
func (r *Repository) ProcessedContactIDs(ctx context.Context, batchID string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, processedContactIDsQuery, batchID)
	if err != nil {
		return nil, fmt.Errorf("processed contact ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TransitionStatus moves a batch to `to` if the state machine allows it from
// the current status. The check and the write are one conditional UPDATE.
func (r *Repository) TransitionStatus(ctx context.Context, batchID string, to domain.BatchStatus) (domain.Batch, error) {
	from := sourcesFor(to)
	batch, err := scanBatch(r.pool.QueryRow(ctx, transitionStatusQuery, batchID, string(to), from))
	if err == nil {
		return batch, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode {
		return domain.Batch{}, apperr.Conflict(errBatchActive).WithOp(opTransition)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Batch{}, fmt.Errorf("transition batch status: %w", err)
	}

	current, getErr := r.GetStatus(ctx, batchID)
	if getErr != nil {
		return domain.Batch{}, getErr
	}
	return domain.Batch{}, apperr.Conflict(fmt.Sprintf("cannot move batch from %s to %s", current, to)).WithOp(opTransition)
}

// MarkLeadLimitReached sets the lead-limit flag.
func (r *Repository) MarkLeadLimitReached(ctx context.Context, batchID string) error {
	if _, err := r.pool.Exec(ctx, markLeadLimitQuery, batchID); err != nil {
		return fmt.Errorf("mark lead limit reached: %w", err)
	}
	return nil
}

// SetLastError records the most recent unexpected failure of the batch.
func (r *Repository) SetLastError(ctx context.Context, batchID, message string) error {
	if _, err := r.pool.Exec(ctx, setLastErrorQuery, batchID, message); err != nil {
		return fmt.Errorf("set batch last error: %w", err)
	}
	return nil
}

// FinalizeBatch moves the batch to a terminal status exactly once.
func (r *Repository) FinalizeBatch(ctx context.Context, batchID string, status domain.BatchStatus, lastError *string) (domain.Batch, bool, error) {
	if !status.IsTerminal() {
		return domain.Batch{}, false, apperr.Validation("finalize requires a terminal status")
	}
	batch, err := scanBatch(r.pool.QueryRow(ctx, finalizeBatchQuery, batchID, string(status), lastError))
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := r.GetBatch(ctx, batchID)
		if getErr != nil {
			return domain.Batch{}, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return domain.Batch{}, false, fmt.Errorf("finalize batch: %w", err)
	}
	return batch, true, nil
}

func scanBatch(row pgx.Row) (domain.Batch, error) {
	var (
		b             domain.Batch
		status        string
		platformStats []byte
	)
	err := row.Scan(
		&b.ID, &b.BatchID, &b.OrchestrationID, &b.PlatformID, &status, &b.TotalCandidates,
		&b.Stats.Processed, &b.Stats.Added, &b.Stats.SkippedDuplicate, &b.Stats.SkippedKlant,
		&b.Stats.SkippedAIError, &b.Stats.Errors,
		&platformStats, &b.LeadLimitReached,
		&b.Limits.MaxTotal, &b.Limits.MaxPerPlatform, &b.Limits.DelayMs, &b.Limits.ChunkSize,
		&b.LastError, &b.StartedAt, &b.CompletedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Batch{}, err
	}
	b.Status = domain.BatchStatus(status)
	b.PlatformStats = map[string]domain.PlatformStats{}
	if len(platformStats) > 0 {
		if err := json.Unmarshal(platformStats, &b.PlatformStats); err != nil {
			return domain.Batch{}, fmt.Errorf("decode platform stats: %w", err)
		}
	}
	return b, nil
}

// sourcesFor lists every status from which `to` is reachable.
func sourcesFor(to domain.BatchStatus) []string {
	all := []domain.BatchStatus{
		domain.StatusPending, domain.StatusProcessing, domain.StatusPaused,
		domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled,
	}
	from := make([]string, 0, len(all))
	for _, s := range all {
		if domain.CanTransition(s, to) {
			from = append(from, string(s))
		}
	}
	return from
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

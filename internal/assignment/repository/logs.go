package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outreach_backend/internal/assignment/domain"
)

const logFilterClause = `
	WHERE ($1::text IS NULL OR l.classification = $1)
		AND ($2::uuid IS NULL OR l.platform_id = $2)
		AND ($3::text IS NULL OR l.batch_id = $3)
		AND ($4::timestamptz IS NULL OR l.created_at >= $4)
		AND ($5::timestamptz IS NULL OR l.created_at < $5)
		AND ($6::text IS NULL
			OR l.email ILIKE $6
			OR co.name ILIKE $6
			OR (ct.first_name || ' ' || ct.last_name) ILIKE $6)`

const logJoins = `
	FROM assignment_logs l
	LEFT JOIN contacts ct ON ct.id = l.contact_id
	LEFT JOIN companies co ON co.id = l.company_id
	LEFT JOIN platforms p ON p.id = l.platform_id`

const listLogsQuery = `
	SELECT l.id, l.batch_id, l.platform_id, COALESCE(p.name, ''), l.contact_id, l.company_id, l.email,
		COALESCE(ct.first_name || ' ' || ct.last_name, ''), COALESCE(co.name, ''),
		l.classification, l.message, l.created_at` + logJoins + logFilterClause + `
	ORDER BY l.created_at DESC, l.id DESC
	LIMIT $7 OFFSET $8`

const countLogsQuery = `
	SELECT COUNT(*)` + logJoins + logFilterClause

// deleteLogsBeforeQuery never touches logs of resumable batches: they are the
// membership set a resume relies on.
const deleteLogsBeforeQuery = `
	DELETE FROM assignment_logs l
	USING assignment_batches b
	WHERE l.batch_id = b.batch_id
		AND b.status IN ('completed', 'failed', 'cancelled')
		AND l.created_at < $1`

// ListLogs returns a page of the audit log, newest first.
func (r *Repository) ListLogs(ctx context.Context, f LogFilter) ([]domain.LogEntry, int, error) {
	args := logFilterArgs(f)

	var total int
	if err := r.pool.QueryRow(ctx, countLogsQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assignment logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, listLogsQuery, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assignment logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LogEntry, 0)
	for rows.Next() {
		var (
			e              domain.LogEntry
			classification string
		)
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.PlatformID, &e.PlatformName, &e.ContactID, &e.CompanyID, &e.Email,
			&e.ContactName, &e.CompanyName, &classification, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan assignment log: %w", err)
		}
		e.Classification = domain.Classification(classification)
		e.ContactName = strings.TrimSpace(e.ContactName)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assignment logs: %w", err)
	}
	return entries, total, nil
}

// DeleteLogsBefore prunes log rows of terminal batches older than cutoff.
func (r *Repository) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteLogsBeforeQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete assignment logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func logFilterArgs(f LogFilter) []any {
	var classification *string
	if f.Classification != nil {
		c := string(*f.Classification)
		classification = &c
	}
	var search *string
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		search = &pattern
	}
	return []any{classification, f.PlatformID, f.BatchID, f.DateFrom, f.DateTo, search}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

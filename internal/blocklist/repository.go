package blocklist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry types.
const (
	TypeEmail   = "email"
	TypeDomain  = "domain"
	TypeCompany = "company"
)

// Entry is an active blocklist row.
type Entry struct {
	Type  string
	Value string
}

// Source lists the active blocklist entries.
type Source interface {
	ListActive(ctx context.Context) ([]Entry, error)
}

const listActiveQuery = `
	SELECT entry_type, lower(value)
	FROM blocklist_entries
	WHERE is_active`

// Repository reads blocklist entries from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new blocklist repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns every active entry with its value lower-cased.
func (r *Repository) ListActive(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, listActiveQuery)
	if err != nil {
		return nil, fmt.Errorf("list blocklist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Type, &e.Value); err != nil {
			return nil, fmt.Errorf("scan blocklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Package repository provides PostgreSQL persistence for the assignment
// bounded context plus an in-memory ledger used by dry runs and tests.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "assignment repository not configured"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL implementation of every assignment store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new assignment repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ SettingsStore  = (*Repository)(nil)
	_ CandidateStore = (*Repository)(nil)
	_ Ledger         = (*Repository)(nil)
	_ LogStore       = (*Repository)(nil)
)

package repository

import (
	"context"
	"time"

	"outreach_backend/internal/assignment/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces
// =====================================

// SettingsStore persists the singleton assignment settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	UpsertSettings(ctx context.Context, s domain.Settings) (domain.Settings, error)
}

// CandidateStore is the read-only view used by the candidate selector.
type CandidateStore interface {
	ListEligible(ctx context.Context, q CandidateQuery) ([]domain.Candidate, error)
	CompanyEligibility(ctx context.Context, companyID uuid.UUID) (CompanyState, error)
	GetPlatform(ctx context.Context, platformID uuid.UUID) (Platform, error)
}

// Ledger is the durable record of assignment batches and their audit log.
type Ledger interface {
	CreateBatch(ctx context.Context, params domain.NewBatchParams) (domain.Batch, error)
	FindActiveBatch(ctx context.Context) (*domain.Batch, error)
	FindPlatformBatch(ctx context.Context, orchestrationID string, platformID uuid.UUID) (*domain.Batch, error)
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
	GetStatus(ctx context.Context, batchID string) (domain.BatchStatus, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]domain.Batch, int, error)

	// RecordOutcome appends the log row, applies its delta and marks the
	// contact in one transaction. It returns false when the contact was
	// already recorded for this batch or the batch is terminal; nothing is
	// counted twice and nothing is counted after finalization.
	RecordOutcome(ctx context.Context, outcome domain.Outcome) (bool, error)
	// ProcessedContactIDs returns the contacts already logged for the batch.
	ProcessedContactIDs(ctx context.Context, batchID string) ([]uuid.UUID, error)

	TransitionStatus(ctx context.Context, batchID string, to domain.BatchStatus) (domain.Batch, error)
	MarkLeadLimitReached(ctx context.Context, batchID string) error
	SetLastError(ctx context.Context, batchID, message string) error
	// FinalizeBatch moves a non-terminal batch to a terminal status. The
	// bool is false when the batch was already terminal.
	FinalizeBatch(ctx context.Context, batchID string, status domain.BatchStatus, lastError *string) (domain.Batch, bool, error)
}

// LogStore reads and prunes the assignment log.
type LogStore interface {
	ListLogs(ctx context.Context, filter LogFilter) ([]domain.LogEntry, int, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// =====================================
// Query Parameters
// =====================================

// CandidateQuery selects eligible contacts.
type CandidateQuery struct {
	// PlatformID restricts the query to one platform when set.
	PlatformID *uuid.UUID
	// Exclude lists contacts already processed or dropped for the batch.
	Exclude []uuid.UUID
	// PerPlatformLimit caps rows per platform (oldest first).
	PerPlatformLimit int
}

// CompanyState is the live eligibility of a company.
type CompanyState struct {
	QualificationStatus string
	IsCustomer          bool
}

// Qualified reports whether the company passes selection.
func (c CompanyState) Qualified() bool {
	return c.QualificationStatus == QualificationQualified
}

// Qualification statuses.
const (
	QualificationQualified    = "qualified"
	QualificationReview       = "review"
	QualificationDisqualified = "disqualified"
	QualificationPending      = "pending"
)

// Platform is a source platform.
type Platform struct {
	ID         uuid.UUID
	Name       string
	CampaignID *string
	IsActive   bool
}

// BatchFilter narrows ListBatches.
type BatchFilter struct {
	Status          *domain.BatchStatus
	OrchestrationID *string
	Page            int
	Limit           int
}

// LogFilter narrows ListLogs.
type LogFilter struct {
	Classification *domain.Classification
	PlatformID     *uuid.UUID
	BatchID        *string
	DateFrom       *time.Time
	DateTo         *time.Time
	Search         string
	Page           int
	Limit          int
}

// Offset returns the row offset for the page.
func (f LogFilter) Offset() int {
	return offset(f.Page, f.Limit)
}

// Offset returns the row offset for the page.
func (f BatchFilter) Offset() int {
	return offset(f.Page, f.Limit)
}

func offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

package repository

import (
	"context"
	"time"

	"github.com/casklane/stockfeed/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAttemptParams carries everything needed to open a pending attempt.
type CreateAttemptParams struct {
	Target         string
	SourceFilename string
	FileHash       string
	FileSize       int64
	AsOfDate       time.Time
	AsOfDatetime   *time.Time
	TriggeredBy    string
	ProcessingMode domain.ProcessingMode
}

// CreateSkippedParams records a terminal skipped audit row for a blocked
// submission. Skipped rows never occupy the blocking key.
type CreateSkippedParams struct {
	Target         string
	SourceFilename string
	FileHash       string
	FileSize       int64
	AsOfDate       time.Time
	TriggeredBy    string
	Reason         string
}

// ImportRunRepository is the run ledger. Every mutating call runs in its
// own short transaction, never inside the business-data transaction; see
// the two-transaction protocol on the orchestrator.
type ImportRunRepository interface {
	// CheckAttempt answers "may a new attempt start for this key?". It is
	// read-only and race-tolerant: the uniqueness index at creation time is
	// the actual enforcement. The returned run is the blocking row for the
	// SKIP decisions, or the most recent failed/rolled_back row for
	// RETRY_AFTER_FAILED, or nil for START.
	CheckAttempt(ctx context.Context, key domain.RunKey) (domain.AttemptDecision, *domain.ImportRun, error)

	// CreateAttempt inserts a pending run. A concurrent blocking row
	// surfaces as domain.ErrDuplicateAttempt.
	CreateAttempt(ctx context.Context, params CreateAttemptParams) (domain.ImportRun, error)

	// MarkRunning transitions pending -> running; any other current status
	// is domain.ErrInvalidTransition.
	MarkRunning(ctx context.Context, runID uuid.UUID) error

	// AttachEnvelope links an envelope to a pending or running run.
	AttachEnvelope(ctx context.Context, runID uuid.UUID, envelopeID uuid.UUID) error

	// MarkSuccess transitions running -> success. Metrics are filtered
	// through the whitelist before persisting.
	MarkSuccess(ctx context.Context, runID uuid.UUID, metrics map[string]int64, artifacts map[string]string) error

	// MarkFailed transitions running -> failed.
	MarkFailed(ctx context.Context, runID uuid.UUID, summary string, details map[string]string) error

	// CreateSkippedAttempt inserts a terminal skipped audit row.
	CreateSkippedAttempt(ctx context.Context, params CreateSkippedParams) (domain.ImportRun, error)

	// ReapStale transitions running rows older than runningGrace and
	// pending rows older than pendingGrace to rolled_back, returning the
	// reclaimed runs. Idempotent: the guarded update matches on status and
	// age, so a second sweep finds nothing.
	ReapStale(ctx context.Context, runningGrace, pendingGrace time.Duration) ([]domain.ImportRun, error)

	GetByID(ctx context.Context, runID uuid.UUID) (domain.ImportRun, error)
	ListByTarget(ctx context.Context, target string, limit int) ([]domain.ImportRun, error)
}

// EnvelopeRepository records best-effort file receipts. Callers must treat
// every error as non-fatal.
type EnvelopeRepository interface {
	Create(ctx context.Context, envelope domain.Envelope) (domain.Envelope, error)
	ListByHash(ctx context.Context, target, fileHash string) ([]domain.Envelope, error)
}

// QuarantineRepository persists rejected rows. Append-only by contract:
// there is no update or delete operation. InsertBatch takes the business
// transaction so quarantined rows commit or roll back with the import.
type QuarantineRepository interface {
	InsertBatch(ctx context.Context, tx pgx.Tx, runID uuid.UUID, envelopeID *uuid.UUID, rejections []domain.RowRejection) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.QuarantinedRow, error)
}

// CatalogRepository performs the price/inventory upserts inside the
// caller's business transaction.
type CatalogRepository interface {
	// UpsertItem creates or refreshes an item by (target, sku); created
	// reports whether a new row was inserted.
	UpsertItem(ctx context.Context, tx pgx.Tx, item domain.CatalogItem) (id uuid.UUID, created bool, err error)
	RecordPrice(ctx context.Context, tx pgx.Tx, price domain.PriceRecord) error
	RecordStock(ctx context.Context, tx pgx.Tx, stock domain.StockRecord) error
}

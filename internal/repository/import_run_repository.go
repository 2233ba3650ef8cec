package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/casklane/stockfeed/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runColumns = `id, target, source_filename, file_hash, file_size, as_of_date, as_of_datetime,
	status, triggered_by, processing_mode, created_at, started_at, finished_at,
	error_summary, error_details, metrics, artifact_paths, envelope_id`

// importRunRepository implements ImportRunRepository on pgx. Every
// statement executes on the pool in its own implicit transaction, which
// keeps ledger bookkeeping out of the business-data transaction.
type importRunRepository struct {
	pool *pgxpool.Pool
}

// NewImportRunRepository creates the run ledger repository.
func NewImportRunRepository(pool *pgxpool.Pool) ImportRunRepository {
	return &importRunRepository{pool: pool}
}

func (r *importRunRepository) CheckAttempt(ctx context.Context, key domain.RunKey) (domain.AttemptDecision, *domain.ImportRun, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM import_runs
		 WHERE target = $1 AND file_hash = $2 AND as_of_date = $3
		   AND status IN ('pending', 'running', 'success')
		 ORDER BY created_at DESC
		 LIMIT 1`, runColumns),
		key.Target, key.FileHash, key.AsOfDate,
	)

	blocker, err := scanRun(row)
	if err == nil {
		if blocker.Status == domain.RunStatusSuccess {
			return domain.DecisionSkipAlreadySuccess, &blocker, nil
		}
		return domain.DecisionSkipAlreadyRunning, &blocker, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", nil, fmt.Errorf("failed to check blocking run: %w", err)
	}

	row = r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM import_runs
		 WHERE target = $1 AND file_hash = $2 AND as_of_date = $3
		   AND status IN ('failed', 'rolled_back')
		 ORDER BY created_at DESC
		 LIMIT 1`, runColumns),
		key.Target, key.FileHash, key.AsOfDate,
	)

	previous, err := scanRun(row)
	if err == nil {
		// Informational only: the retry is permitted, not enforced.
		return domain.DecisionRetryAfterFailed, &previous, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", nil, fmt.Errorf("failed to check failed runs: %w", err)
	}

	return domain.DecisionStart, nil, nil
}

func (r *importRunRepository) CreateAttempt(ctx context.Context, params CreateAttemptParams) (domain.ImportRun, error) {
	mode := params.ProcessingMode
	if mode == "" {
		mode = domain.ProcessingModeAtomic
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO import_runs
			(target, source_filename, file_hash, file_size, as_of_date, as_of_datetime,
			 status, triggered_by, processing_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		 RETURNING %s`, runColumns),
		params.Target,
		params.SourceFilename,
		params.FileHash,
		params.FileSize,
		params.AsOfDate,
		params.AsOfDatetime,
		params.TriggeredBy,
		mode,
	)

	run, err := scanRun(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the creation race; the caller re-resolves via CheckAttempt.
			return domain.ImportRun{}, fmt.Errorf("create attempt for %s/%s: %w",
				params.Target, params.SourceFilename, domain.ErrDuplicateAttempt)
		}
		return domain.ImportRun{}, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

func (r *importRunRepository) MarkRunning(ctx context.Context, runID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE import_runs
		 SET status = 'running', started_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, runID, domain.RunStatusRunning)
	}
	return nil
}

func (r *importRunRepository) AttachEnvelope(ctx context.Context, runID uuid.UUID, envelopeID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE import_runs
		 SET envelope_id = $2
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		runID, envelopeID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach envelope to run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, runID, "")
	}
	return nil
}

func (r *importRunRepository) MarkSuccess(ctx context.Context, runID uuid.UUID, metrics map[string]int64, artifacts map[string]string) error {
	metricsJSON, err := marshalOrNil(domain.FilterMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	artifactsJSON, err := marshalOrNil(artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE import_runs
		 SET status = 'success', finished_at = now(), metrics = $2, artifact_paths = $3
		 WHERE id = $1 AND status = 'running'`,
		runID, metricsJSON, artifactsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run %s success: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, runID, domain.RunStatusSuccess)
	}
	return nil
}

func (r *importRunRepository) MarkFailed(ctx context.Context, runID uuid.UUID, summary string, details map[string]string) error {
	detailsJSON, err := marshalOrNil(details)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE import_runs
		 SET status = 'failed', finished_at = now(), error_summary = $2, error_details = $3
		 WHERE id = $1 AND status = 'running'`,
		runID, summary, detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, runID, domain.RunStatusFailed)
	}
	return nil
}

func (r *importRunRepository) CreateSkippedAttempt(ctx context.Context, params CreateSkippedParams) (domain.ImportRun, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO import_runs
			(target, source_filename, file_hash, file_size, as_of_date,
			 status, triggered_by, error_summary, finished_at)
		 VALUES ($1, $2, $3, $4, $5, 'skipped', $6, $7, now())
		 RETURNING %s`, runColumns),
		params.Target,
		params.SourceFilename,
		params.FileHash,
		params.FileSize,
		params.AsOfDate,
		params.TriggeredBy,
		params.Reason,
	)

	run, err := scanRun(row)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to create skipped audit row: %w", err)
	}
	return run, nil
}

func (r *importRunRepository) ReapStale(ctx context.Context, runningGrace, pendingGrace time.Duration) ([]domain.ImportRun, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`UPDATE import_runs
		 SET status = 'rolled_back',
		     finished_at = now(),
		     error_summary = 'reclaimed by stale-run reaper: worker presumed dead'
		 WHERE (status = 'running' AND started_at < now() - $1::interval)
		    OR (status = 'pending' AND created_at < now() - $2::interval)
		 RETURNING %s`, runColumns),
		intervalString(runningGrace), intervalString(pendingGrace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reap stale runs: %w", err)
	}
	defer rows.Close()

	var reclaimed []domain.ImportRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan reclaimed run: %w", scanErr)
		}
		reclaimed = append(reclaimed, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate reclaimed runs: %w", rowsErr)
	}
	return reclaimed, nil
}

func (r *importRunRepository) GetByID(ctx context.Context, runID uuid.UUID) (domain.ImportRun, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM import_runs WHERE id = $1`, runColumns), runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportRun{}, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
		}
		return domain.ImportRun{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

func (r *importRunRepository) ListByTarget(ctx context.Context, target string, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM import_runs
		 WHERE target = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, runColumns),
		target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", target, err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", rowsErr)
	}
	return runs, nil
}

// transitionFailure distinguishes "run does not exist" from "run exists in
// the wrong status" after a guarded update matched zero rows.
func (r *importRunRepository) transitionFailure(ctx context.Context, runID uuid.UUID, want domain.RunStatus) error {
	var current string
	err := r.pool.QueryRow(ctx, `SELECT status FROM import_runs WHERE id = $1`, runID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
		}
		return fmt.Errorf("failed to inspect run %s: %w", runID, err)
	}
	if want == "" {
		return fmt.Errorf("run %s is %s: %w", runID, current, domain.ErrInvalidTransition)
	}
	return fmt.Errorf("run %s is %s, cannot transition to %s: %w", runID, current, want, domain.ErrInvalidTransition)
}

func scanRun(row pgx.Row) (domain.ImportRun, error) {
	var (
		run           domain.ImportRun
		asOfDate      pgtype.Date
		asOfDatetime  pgtype.Timestamptz
		startedAt     pgtype.Timestamptz
		finishedAt    pgtype.Timestamptz
		errorSummary  pgtype.Text
		errorDetails  []byte
		metrics       []byte
		artifactPaths []byte
		envelopeID    pgtype.UUID
	)

	err := row.Scan(
		&run.ID,
		&run.Target,
		&run.SourceFilename,
		&run.FileHash,
		&run.FileSize,
		&asOfDate,
		&asOfDatetime,
		&run.Status,
		&run.TriggeredBy,
		&run.ProcessingMode,
		&run.CreatedAt,
		&startedAt,
		&finishedAt,
		&errorSummary,
		&errorDetails,
		&metrics,
		&artifactPaths,
		&envelopeID,
	)
	if err != nil {
		return domain.ImportRun{}, err
	}

	if asOfDate.Valid {
		run.AsOfDate = asOfDate.Time
	}
	if asOfDatetime.Valid {
		t := asOfDatetime.Time
		run.AsOfDatetime = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if errorSummary.Valid {
		run.ErrorSummary = errorSummary.String
	}
	if len(errorDetails) > 0 {
		if err := json.Unmarshal(errorDetails, &run.ErrorDetails); err != nil {
			return domain.ImportRun{}, fmt.Errorf("failed to decode error details: %w", err)
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
			return domain.ImportRun{}, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	if len(artifactPaths) > 0 {
		if err := json.Unmarshal(artifactPaths, &run.ArtifactPaths); err != nil {
			return domain.ImportRun{}, fmt.Errorf("failed to decode artifact paths: %w", err)
		}
	}
	if envelopeID.Valid {
		id := uuid.UUID(envelopeID.Bytes)
		run.EnvelopeID = &id
	}

	return run, nil
}

func marshalOrNil(value any) ([]byte, error) {
	switch v := value.(type) {
	case map[string]int64:
		if len(v) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(v) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(value)
}

func intervalString(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}

// Package orchestrator composes the fingerprinter, envelope tracker, run
// ledger and a caller-supplied import function into one governed attempt.
//
// The transaction protocol is deliberate and fixed: every ledger
// transition commits on its own, the import function's work commits or
// rolls back as one separate unit, and the two are never nested. A
// rollback of bad business data must not erase the audit trail that an
// attempt was made.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/casklane/stockfeed/internal/domain"
	"github.com/casklane/stockfeed/internal/fingerprint"
	"github.com/casklane/stockfeed/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner opens the business transaction for the import function.
// db.Connection satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// ImportContext is handed to the import function alongside the business
// transaction.
type ImportContext struct {
	Target     string
	FilePath   string
	AsOfDate   time.Time
	RunID      uuid.UUID
	EnvelopeID *uuid.UUID
	Options    map[string]string
}

// ImportFunc performs the actual upserts inside the business transaction.
// It must return an error on failure and must not touch ledger tables.
type ImportFunc func(ctx context.Context, tx pgx.Tx, ic ImportContext) (domain.ImportOutcome, error)

// Outcome classifies the result of a governed attempt.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result is the structured return of Execute. Import failures are carried
// here, not raised: nothing escapes a governed attempt as a panic or a
// raw error once a run exists.
type Result struct {
	Outcome    Outcome           `json:"outcome"`
	RunID      uuid.UUID         `json:"run_id,omitempty"`
	Decision   string            `json:"decision,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	BlockerID  uuid.UUID         `json:"blocker_id,omitempty"`
	Metrics    map[string]int64  `json:"metrics,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	ErrSummary string            `json:"error_summary,omitempty"`
}

// Request describes one governed import attempt.
type Request struct {
	Target         string
	FilePath       string
	SourceFilename string
	AsOfDate       time.Time
	TriggeredBy    string
	ProcessingMode domain.ProcessingMode
	Options        map[string]string
}

// Runner drives governed attempts.
type Runner struct {
	runs      repository.ImportRunRepository
	envelopes repository.EnvelopeRepository
	txRunner  TxRunner
	importFn  ImportFunc
}

// NewRunner wires an orchestrator.
func NewRunner(
	runs repository.ImportRunRepository,
	envelopes repository.EnvelopeRepository,
	txRunner TxRunner,
	importFn ImportFunc,
) *Runner {
	return &Runner{
		runs:      runs,
		envelopes: envelopes,
		txRunner:  txRunner,
		importFn:  importFn,
	}
}

// Execute runs one governed attempt: fingerprint, blocking check, pending
// attempt, running transition, best-effort envelope, import function,
// terminal transition. Returns an error only for setup failures before a
// run could be resolved (unreadable file, ledger unreachable).
func (r *Runner) Execute(ctx context.Context, req Request) (Result, error) {
	fileHash, fileSize, err := fingerprint.File(req.FilePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fingerprint input: %w", err)
	}

	key := domain.RunKey{Target: req.Target, FileHash: fileHash, AsOfDate: req.AsOfDate}

	decision, blocker, err := r.runs.CheckAttempt(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve blocking state: %w", err)
	}
	if decision == domain.DecisionSkipAlreadySuccess || decision == domain.DecisionSkipAlreadyRunning {
		return r.recordSkip(ctx, req, fileHash, fileSize, decision, blocker), nil
	}
	if decision == domain.DecisionRetryAfterFailed && blocker != nil {
		log.Printf("[ORCHESTRATOR] retrying %s/%s after prior %s run %s",
			req.Target, req.SourceFilename, blocker.Status, blocker.ID)
	}

	run, err := r.runs.CreateAttempt(ctx, repository.CreateAttemptParams{
		Target:         req.Target,
		SourceFilename: req.SourceFilename,
		FileHash:       fileHash,
		FileSize:       fileSize,
		AsOfDate:       req.AsOfDate,
		TriggeredBy:    req.TriggeredBy,
		ProcessingMode: req.ProcessingMode,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAttempt) {
			// Someone else won the creation race. Re-resolve for the caller
			// message; the raw constraint error never propagates.
			decision, blocker, checkErr := r.runs.CheckAttempt(ctx, key)
			if checkErr != nil || blocker == nil {
				decision = domain.DecisionSkipAlreadyRunning
			}
			return r.recordSkip(ctx, req, fileHash, fileSize, decision, blocker), nil
		}
		return Result{}, fmt.Errorf("failed to create attempt: %w", err)
	}

	if err := r.runs.MarkRunning(ctx, run.ID); err != nil {
		return Result{}, fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}

	envelopeID := r.attachEnvelope(ctx, req, run.ID, fileHash, fileSize)

	outcome, importErr := r.runImport(ctx, req, run.ID, envelopeID)
	if importErr != nil {
		summary := importErr.Error()
		details := map[string]string{"error_type": fmt.Sprintf("%T", importErr)}
		if markErr := r.runs.MarkFailed(ctx, run.ID, summary, details); markErr != nil {
			log.Printf("[ORCHESTRATOR] failed to record failure of run %s: %v", run.ID, markErr)
		}
		return Result{
			Outcome:    OutcomeFailed,
			RunID:      run.ID,
			ErrSummary: summary,
		}, nil
	}

	metrics := domain.FilterMetrics(outcome.Metrics)
	if err := r.runs.MarkSuccess(ctx, run.ID, metrics, outcome.Artifacts); err != nil {
		return Result{}, fmt.Errorf("failed to record success of run %s: %w", run.ID, err)
	}

	return Result{
		Outcome:   OutcomeImported,
		RunID:     run.ID,
		Metrics:   metrics,
		Artifacts: outcome.Artifacts,
	}, nil
}

// runImport executes the import function inside its own transaction,
// isolated from every ledger commit. Panics in the import function become
// failures instead of crashing the worker.
func (r *Runner) runImport(ctx context.Context, req Request, runID uuid.UUID, envelopeID *uuid.UUID) (outcome domain.ImportOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("import function panicked: %v", p)
		}
	}()

	err = r.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		var importErr error
		outcome, importErr = r.importFn(ctx, tx, ImportContext{
			Target:     req.Target,
			FilePath:   req.FilePath,
			AsOfDate:   req.AsOfDate,
			RunID:      runID,
			EnvelopeID: envelopeID,
			Options:    req.Options,
		})
		return importErr
	})
	return outcome, err
}

// attachEnvelope creates and links a receipt. Explicitly non-critical:
// any failure is logged and the run proceeds without an envelope.
func (r *Runner) attachEnvelope(ctx context.Context, req Request, runID uuid.UUID, fileHash string, fileSize int64) *uuid.UUID {
	envelope, err := r.envelopes.Create(ctx, domain.Envelope{
		Target:         req.Target,
		SourceFilename: req.SourceFilename,
		FileHash:       fileHash,
		FileSize:       fileSize,
	})
	if err != nil {
		log.Printf("[ORCHESTRATOR] envelope creation failed for run %s (continuing): %v", runID, err)
		return nil
	}

	if err := r.runs.AttachEnvelope(ctx, runID, envelope.ID); err != nil {
		log.Printf("[ORCHESTRATOR] envelope attach failed for run %s (continuing): %v", runID, err)
		return &envelope.ID
	}
	return &envelope.ID
}

// recordSkip writes the skipped audit row and builds the skip result.
// Must never fail: audit problems are logged and swallowed.
func (r *Runner) recordSkip(ctx context.Context, req Request, fileHash string, fileSize int64, decision domain.AttemptDecision, blocker *domain.ImportRun) Result {
	reason := skipReason(decision)

	if _, err := r.runs.CreateSkippedAttempt(ctx, repository.CreateSkippedParams{
		Target:         req.Target,
		SourceFilename: req.SourceFilename,
		FileHash:       fileHash,
		FileSize:       fileSize,
		AsOfDate:       req.AsOfDate,
		TriggeredBy:    req.TriggeredBy,
		Reason:         reason,
	}); err != nil {
		log.Printf("[ORCHESTRATOR] failed to record skipped audit row for %s/%s: %v",
			req.Target, req.SourceFilename, err)
	}

	result := Result{
		Outcome:  OutcomeSkipped,
		Decision: string(decision),
		Reason:   reason,
	}
	if blocker != nil {
		result.BlockerID = blocker.ID
	}
	return result
}

func skipReason(decision domain.AttemptDecision) string {
	switch decision {
	case domain.DecisionSkipAlreadySuccess:
		return "already succeeded for this target, file and date"
	case domain.DecisionSkipAlreadyRunning:
		return "an import is already in flight for this target, file and date"
	default:
		return "blocked by a concurrent attempt"
	}
}

package domain

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an ImportRun.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusRunning    RunStatus = "running"
	RunStatusSuccess    RunStatus = "success"
	RunStatusFailed     RunStatus = "failed"
	RunStatusSkipped    RunStatus = "skipped"
	RunStatusRolledBack RunStatus = "rolled_back"
)

// Blocking reports whether a run in this status occupies the
// (target, file_hash, as_of_date) blocking key. failed and rolled_back
// never block a new attempt; skipped is audit-only.
func (s RunStatus) Blocking() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSuccess:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusSkipped, RunStatusRolledBack:
		return true
	default:
		return false
	}
}

// ProcessingMode describes how the import commits its business data.
type ProcessingMode string

const (
	ProcessingModeAtomic  ProcessingMode = "atomic"
	ProcessingModeChunked ProcessingMode = "chunked"
)

// AttemptDecision is the answer to "may a new attempt start for this key?".
type AttemptDecision string

const (
	DecisionStart              AttemptDecision = "START"
	DecisionSkipAlreadySuccess AttemptDecision = "SKIP_ALREADY_SUCCESS"
	DecisionSkipAlreadyRunning AttemptDecision = "SKIP_ALREADY_RUNNING"
	DecisionRetryAfterFailed   AttemptDecision = "RETRY_AFTER_FAILED"
)

var (
	// ErrDuplicateAttempt signals that a concurrent caller already holds the
	// blocking key; the loser of the race must re-resolve via CheckAttempt.
	ErrDuplicateAttempt = errors.New("a blocking import run already exists for this target, file and date")

	// ErrInvalidTransition signals a status transition whose precondition
	// did not hold (e.g. MarkRunning on a non-pending run).
	ErrInvalidTransition = errors.New("import run is not in the required status for this transition")

	// ErrRunNotFound signals a lookup for an unknown run id.
	ErrRunNotFound = errors.New("import run not found")
)

// RunKey is the blocking key: at most one non-terminal-failure run may
// exist per key at any time.
type RunKey struct {
	Target   string    `json:"target"`
	FileHash string    `json:"file_hash"`
	AsOfDate time.Time `json:"as_of_date"`
}

// ImportRun is one governed attempt to import one file for one target on
// one business date.
type ImportRun struct {
	ID             uuid.UUID         `json:"id"`
	Target         string            `json:"target"`
	SourceFilename string            `json:"source_filename"`
	FileHash       string            `json:"file_hash"`
	FileSize       int64             `json:"file_size"`
	AsOfDate       time.Time         `json:"as_of_date"`
	AsOfDatetime   *time.Time        `json:"as_of_datetime,omitempty"`
	Status         RunStatus         `json:"status"`
	TriggeredBy    string            `json:"triggered_by"`
	ProcessingMode ProcessingMode    `json:"processing_mode"`
	CreatedAt      time.Time         `json:"created_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	ErrorSummary   string            `json:"error_summary,omitempty"`
	ErrorDetails   map[string]string `json:"error_details,omitempty"`
	Metrics        map[string]int64  `json:"metrics,omitempty"`
	ArtifactPaths  map[string]string `json:"artifact_paths,omitempty"`
	EnvelopeID     *uuid.UUID        `json:"envelope_id,omitempty"`
}

// Key returns the blocking key of the run.
func (r ImportRun) Key() RunKey {
	return RunKey{Target: r.Target, FileHash: r.FileHash, AsOfDate: r.AsOfDate}
}

// Metric keys accepted by the run ledger. Anything else a caller returns
// is dropped before persisting so caller bugs cannot grow the schema.
const (
	MetricRowsProcessed   = "rows_processed"
	MetricRowsAccepted    = "rows_accepted"
	MetricRowsQuarantined = "rows_quarantined"
	MetricRowsSkipped     = "rows_skipped"
	MetricItemsCreated    = "items_created"
	MetricItemsUpdated    = "items_updated"
	MetricPricesWritten   = "prices_written"
	MetricStockWritten    = "stock_written"
)

var metricWhitelist = map[string]struct{}{
	MetricRowsProcessed:   {},
	MetricRowsAccepted:    {},
	MetricRowsQuarantined: {},
	MetricRowsSkipped:     {},
	MetricItemsCreated:    {},
	MetricItemsUpdated:    {},
	MetricPricesWritten:   {},
	MetricStockWritten:    {},
}

// FilterMetrics keeps only whitelisted counter keys. Unknown keys are
// dropped with a warning rather than rejected; see the registry contract.
func FilterMetrics(metrics map[string]int64) map[string]int64 {
	if len(metrics) == 0 {
		return nil
	}
	filtered := make(map[string]int64, len(metrics))
	for key, value := range metrics {
		if _, ok := metricWhitelist[key]; !ok {
			log.Printf("[REGISTRY] dropping unknown metric key %q (value %d)", key, value)
			continue
		}
		filtered[key] = value
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

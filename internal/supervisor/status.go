package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is the polling-visible state of a supervised job.
type Status string

const (
	StatusRunning     Status = "RUNNING"
	StatusOK          Status = "OK"
	StatusOKWithSkips Status = "OK_WITH_SKIPS"
	StatusFailed      Status = "FAILED"
	StatusTimeout     Status = "TIMEOUT"
)

// Summary aggregates per-file and per-row outcomes of a job.
type Summary struct {
	TotalFiles      int   `json:"total_files"`
	ImportedFiles   int   `json:"imported_files"`
	SkippedFiles    int   `json:"skipped_files"`
	FailedFiles     int   `json:"failed_files"`
	RowsProcessed   int64 `json:"rows_processed"`
	RowsQuarantined int64 `json:"rows_quarantined"`
}

// StatusDocument is the JSON record a polling client reads. All
// timestamps are UTC; comparing a naive and an aware timestamp is exactly
// the bug this rules out.
type StatusDocument struct {
	RunID      string     `json:"run_id"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    Summary    `json:"summary"`
	Error      string     `json:"error,omitempty"`
	RawOutput  string     `json:"raw_output,omitempty"`
}

// Store persists status documents, one file per run id.
type Store struct {
	dir string
}

// NewStore creates a status store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// Write publishes a status document atomically: serialize to a temporary
// file in the same directory, then rename over the final path. A reader
// never observes a partially written record.
func (s *Store) Write(doc StatusDocument) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status for run %s: %w", doc.RunID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp status file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write status for run %s: %w", doc.RunID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp status file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(doc.RunID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to publish status for run %s: %w", doc.RunID, err)
	}
	return nil
}

// Read returns the status document for runID. found is false only when no
// record exists at all. A record that exists but does not parse is a
// mid-write race, and the poller sees "still running" rather than an
// error.
func (s *Store) Read(runID string) (StatusDocument, bool, error) {
	payload, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return StatusDocument{}, false, nil
		}
		return StatusDocument{}, false, fmt.Errorf("failed to read status for run %s: %w", runID, err)
	}

	var doc StatusDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return StatusDocument{
			RunID:  runID,
			Status: StatusRunning,
		}, true, nil
	}
	return doc, true, nil
}

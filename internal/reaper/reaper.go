// Package reaper reclaims runs orphaned by crashed workers. A worker that
// dies without reaching mark_failed leaves a permanently blocking row;
// the sweep converts such rows to rolled_back once they exceed their
// grace period.
package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/casklane/stockfeed/internal/domain"
	"github.com/casklane/stockfeed/internal/repository"
)

// Default grace periods. A pending run should become running within
// minutes; a running run gets the full import window.
const (
	DefaultRunningGrace = 2 * time.Hour
	DefaultPendingGrace = 15 * time.Minute
)

// Reaper performs the stale-run sweep. Safe to run repeatedly and
// concurrently: the underlying update matches on status and age, so a
// second sweep finds nothing.
type Reaper struct {
	runs         repository.ImportRunRepository
	runningGrace time.Duration
	pendingGrace time.Duration
}

// New creates a reaper. Non-positive grace periods fall back to defaults.
func New(runs repository.ImportRunRepository, runningGrace, pendingGrace time.Duration) *Reaper {
	if runningGrace <= 0 {
		runningGrace = DefaultRunningGrace
	}
	if pendingGrace <= 0 {
		pendingGrace = DefaultPendingGrace
	}
	return &Reaper{runs: runs, runningGrace: runningGrace, pendingGrace: pendingGrace}
}

// Sweep reclaims every stale run and returns what was reclaimed.
func (r *Reaper) Sweep(ctx context.Context) ([]domain.ImportRun, error) {
	reclaimed, err := r.runs.ReapStale(ctx, r.runningGrace, r.pendingGrace)
	if err != nil {
		return nil, fmt.Errorf("stale-run sweep failed: %w", err)
	}

	for _, run := range reclaimed {
		log.Printf("[REAPER] rolled back stale run %s (%s/%s, created %s)",
			run.ID, run.Target, run.SourceFilename, run.CreatedAt.Format(time.RFC3339))
	}
	return reclaimed, nil
}

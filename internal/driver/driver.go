// Package driver is the top-level daily-import entry point. It holds the
// system-wide advisory lock for its whole invocation, resolves which
// spreadsheets to import, supervises one worker per file and aggregates
// the outcomes into a single polling-friendly status document.
//
// The lock and the run ledger are independent layers: the lock stops two
// drivers from racing at all; the ledger's uniqueness constraint still
// prevents duplicate logical imports even if the lock is bypassed.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/casklane/stockfeed/internal/config"
	"github.com/casklane/stockfeed/internal/lock"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/google/uuid"
)

// Modes of file selection.
const (
	ModeAuto  = "auto"
	ModeFiles = "files"
)

// ErrDriverBusy is returned when another driver invocation holds the lock.
var ErrDriverBusy = errors.New("another import driver is already running")

// Options controls one driver invocation.
type Options struct {
	Mode    string
	Files   []string
	RunID   string
	Timeout time.Duration
	// WorkerArgs builds the argv for one supervised worker. Injected so
	// the driver stays testable without spawning the real binary.
	WorkerArgs func(runID, file string) []string
}

// Driver runs supervised imports under the advisory lock.
type Driver struct {
	locker lock.Locker
	sup    *supervisor.Supervisor
	store  *supervisor.Store
	cfg    config.ImporterConfig
}

// New wires a driver.
func New(locker lock.Locker, sup *supervisor.Supervisor, store *supervisor.Store, cfg config.ImporterConfig) *Driver {
	return &Driver{locker: locker, sup: sup, store: store, cfg: cfg}
}

// Run performs one driver invocation and returns the aggregate status
// document. Per-file failures do not fail the invocation; they are
// encoded in the document.
func (d *Driver) Run(ctx context.Context, opts Options) (supervisor.StatusDocument, error) {
	release, err := d.locker.TryAcquire(ctx, d.cfg.LockName)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return supervisor.StatusDocument{}, ErrDriverBusy
		}
		return supervisor.StatusDocument{}, fmt.Errorf("failed to acquire driver lock: %w", err)
	}
	defer func() {
		if releaseErr := release(context.Background()); releaseErr != nil {
			log.Printf("[DRIVER] failed to release lock: %v", releaseErr)
		}
	}()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	files, err := d.resolveFiles(opts)
	if err != nil {
		return supervisor.StatusDocument{}, err
	}

	startedAt := time.Now().UTC()
	doc := supervisor.StatusDocument{
		RunID:     runID,
		Status:    supervisor.StatusRunning,
		StartedAt: startedAt,
		Summary:   supervisor.Summary{TotalFiles: len(files)},
	}
	if err := d.store.Write(doc); err != nil {
		return supervisor.StatusDocument{}, fmt.Errorf("failed to publish driver status: %w", err)
	}

	for idx, file := range files {
		workerRunID := fmt.Sprintf("%s.%d", runID, idx+1)
		workerDoc, err := d.sup.Run(ctx, supervisor.Job{
			RunID:   workerRunID,
			Argv:    opts.WorkerArgs(workerRunID, file),
			Timeout: opts.Timeout,
		})
		if err != nil {
			log.Printf("[DRIVER] worker %s for %s failed to supervise: %v", workerRunID, file, err)
			doc.Summary.FailedFiles++
			continue
		}

		switch workerDoc.Status {
		case supervisor.StatusOK:
			doc.Summary.ImportedFiles++
		case supervisor.StatusOKWithSkips:
			doc.Summary.SkippedFiles++
		default:
			doc.Summary.FailedFiles++
		}
		doc.Summary.RowsProcessed += workerDoc.Summary.RowsProcessed
		doc.Summary.RowsQuarantined += workerDoc.Summary.RowsQuarantined
	}

	finishedAt := time.Now().UTC()
	doc.FinishedAt = &finishedAt
	doc.Status = aggregateStatus(doc.Summary)

	if err := d.store.Write(doc); err != nil {
		return doc, fmt.Errorf("failed to publish final driver status: %w", err)
	}
	return doc, nil
}

func aggregateStatus(summary supervisor.Summary) supervisor.Status {
	switch {
	case summary.FailedFiles > 0:
		return supervisor.StatusFailed
	case summary.SkippedFiles > 0:
		return supervisor.StatusOKWithSkips
	default:
		return supervisor.StatusOK
	}
}

func (d *Driver) resolveFiles(opts Options) ([]string, error) {
	switch opts.Mode {
	case ModeFiles:
		if len(opts.Files) == 0 {
			return nil, errors.New("files mode requires at least one file")
		}
		for _, file := range opts.Files {
			if _, err := os.Stat(file); err != nil {
				return nil, fmt.Errorf("input file %s: %w", file, err)
			}
		}
		return opts.Files, nil
	case ModeAuto, "":
		newest, err := newestEligible(d.cfg.InboxDir)
		if err != nil {
			return nil, err
		}
		return []string{newest}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

// newestEligible picks the most recently modified spreadsheet in dir.
func newestEligible(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read inbox %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no eligible spreadsheet found in %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

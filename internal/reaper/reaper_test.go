package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casklane/stockfeed/internal/domain"
	"github.com/casklane/stockfeed/internal/repository"

	"github.com/google/uuid"
)

// stubLedger simulates the guarded update: reclaimable rows are returned
// once and then the set is empty, matching the database behavior.
type stubLedger struct {
	reclaimable []domain.ImportRun
	err         error

	sweeps       int
	runningGrace time.Duration
	pendingGrace time.Duration
}

func (s *stubLedger) ReapStale(ctx context.Context, runningGrace, pendingGrace time.Duration) ([]domain.ImportRun, error) {
	s.sweeps++
	s.runningGrace = runningGrace
	s.pendingGrace = pendingGrace
	if s.err != nil {
		return nil, s.err
	}
	reclaimed := s.reclaimable
	s.reclaimable = nil
	for i := range reclaimed {
		reclaimed[i].Status = domain.RunStatusRolledBack
	}
	return reclaimed, nil
}

func (s *stubLedger) CheckAttempt(ctx context.Context, key domain.RunKey) (domain.AttemptDecision, *domain.ImportRun, error) {
	return domain.DecisionStart, nil, nil
}

func (s *stubLedger) CreateAttempt(ctx context.Context, params repository.CreateAttemptParams) (domain.ImportRun, error) {
	return domain.ImportRun{}, nil
}

func (s *stubLedger) MarkRunning(ctx context.Context, runID uuid.UUID) error { return nil }

func (s *stubLedger) AttachEnvelope(ctx context.Context, runID, envelopeID uuid.UUID) error {
	return nil
}

func (s *stubLedger) MarkSuccess(ctx context.Context, runID uuid.UUID, metrics map[string]int64, artifacts map[string]string) error {
	return nil
}

func (s *stubLedger) MarkFailed(ctx context.Context, runID uuid.UUID, summary string, details map[string]string) error {
	return nil
}

func (s *stubLedger) CreateSkippedAttempt(ctx context.Context, params repository.CreateSkippedParams) (domain.ImportRun, error) {
	return domain.ImportRun{}, nil
}

func (s *stubLedger) GetByID(ctx context.Context, runID uuid.UUID) (domain.ImportRun, error) {
	return domain.ImportRun{}, domain.ErrRunNotFound
}

func (s *stubLedger) ListByTarget(ctx context.Context, target string, limit int) ([]domain.ImportRun, error) {
	return nil, nil
}

func TestSweepReclaimsStaleRuns(t *testing.T) {
	ledger := &stubLedger{
		reclaimable: []domain.ImportRun{
			{ID: uuid.New(), Target: "acme", SourceFilename: "a.csv", Status: domain.RunStatusRunning, CreatedAt: time.Now().Add(-3 * time.Hour)},
			{ID: uuid.New(), Target: "acme", SourceFilename: "b.csv", Status: domain.RunStatusPending, CreatedAt: time.Now().Add(-time.Hour)},
		},
	}

	reclaimed, err := New(ledger, 2*time.Hour, 15*time.Minute).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(reclaimed) != 2 {
		t.Fatalf("expected 2 reclaimed runs, got %d", len(reclaimed))
	}
	for _, run := range reclaimed {
		if run.Status != domain.RunStatusRolledBack {
			t.Fatalf("reclaimed run %s has status %s, want rolled_back", run.ID, run.Status)
		}
	}
	if ledger.runningGrace != 2*time.Hour || ledger.pendingGrace != 15*time.Minute {
		t.Fatalf("grace periods not passed through: %s / %s", ledger.runningGrace, ledger.pendingGrace)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	ledger := &stubLedger{
		reclaimable: []domain.ImportRun{
			{ID: uuid.New(), Target: "acme", SourceFilename: "a.csv", Status: domain.RunStatusRunning},
		},
	}
	reaper := New(ledger, time.Hour, time.Minute)

	first, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first sweep reclaimed %d runs, want 1", len(first))
	}

	second, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second sweep reclaimed %d runs, want 0", len(second))
	}
}

func TestSweepPropagatesLedgerErrors(t *testing.T) {
	ledger := &stubLedger{err: errors.New("connection refused")}

	if _, err := New(ledger, time.Hour, time.Minute).Sweep(context.Background()); err == nil {
		t.Fatalf("expected error when the ledger is unreachable")
	}
}

func TestNewAppliesDefaultGraces(t *testing.T) {
	ledger := &stubLedger{}
	if _, err := New(ledger, 0, -time.Second).Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if ledger.runningGrace != DefaultRunningGrace {
		t.Fatalf("expected default running grace, got %s", ledger.runningGrace)
	}
	if ledger.pendingGrace != DefaultPendingGrace {
		t.Fatalf("expected default pending grace, got %s", ledger.pendingGrace)
	}
}

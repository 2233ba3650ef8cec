package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	finished := time.Date(2025, 1, 20, 10, 30, 0, 0, time.UTC)
	doc := StatusDocument{
		RunID:      "run-1",
		Status:     StatusOK,
		StartedAt:  time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC),
		FinishedAt: &finished,
		Summary:    Summary{TotalFiles: 1, ImportedFiles: 1, RowsProcessed: 42},
	}
	if err := store.Write(doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, found, err := store.Read("run-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !found {
		t.Fatalf("expected record to exist")
	}
	if got.Status != StatusOK || got.Summary.RowsProcessed != 42 {
		t.Fatalf("round trip mangled the document: %+v", got)
	}
	if !got.StartedAt.Equal(doc.StartedAt) {
		t.Fatalf("started_at changed: %v vs %v", got.StartedAt, doc.StartedAt)
	}
}

func TestStoreReadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	_, found, err := store.Read("nope")
	if err != nil {
		t.Fatalf("missing record should not error: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestStoreReadPartialWriteResolvesToRunning(t *testing.T) {
	// A crafted partial file simulates reading mid-write. The poller must
	// see "still running", never a parse error.
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	partial := []byte(`{"run_id": "run-2", "status": "O`)
	if err := os.WriteFile(filepath.Join(dir, "run-2.json"), partial, 0o644); err != nil {
		t.Fatalf("failed to write partial fixture: %v", err)
	}

	doc, found, err := store.Read("run-2")
	if err != nil {
		t.Fatalf("partial record must not error: %v", err)
	}
	if !found {
		t.Fatalf("expected record to be found")
	}
	if doc.Status != StatusRunning {
		t.Fatalf("expected RUNNING for partial record, got %s", doc.Status)
	}
	if doc.RunID != "run-2" {
		t.Fatalf("expected run id to be preserved, got %q", doc.RunID)
	}
}

func TestStoreWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := store.Write(StatusDocument{RunID: "run-3", Status: StatusRunning, StartedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected exactly one published file, got %v", names)
	}
}

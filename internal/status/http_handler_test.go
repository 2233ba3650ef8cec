package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casklane/stockfeed/internal/supervisor"
)

func newTestHandler(t *testing.T) (*Handler, *supervisor.Store) {
	t.Helper()
	store, err := supervisor.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewHandler(store), store
}

func TestGetRunReturnsDocument(t *testing.T) {
	handler, store := newTestHandler(t)

	doc := supervisor.StatusDocument{
		RunID:     "run-1",
		Status:    supervisor.StatusOK,
		StartedAt: time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC),
		Summary:   supervisor.Summary{TotalFiles: 1, ImportedFiles: 1},
	}
	if err := store.Write(doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var got supervisor.StatusDocument
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.RunID != "run-1" || got.Status != supervisor.StatusOK {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestGetRunRejectsTraversal(t *testing.T) {
	handler, _ := newTestHandler(t)

	for _, path := range []string{"/runs/", "/runs/a/b", "/runs/.."} {
		recorder := httptest.NewRecorder()
		handler.Routes().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("path %q: expected 400, got %d", path, recorder.Code)
		}
	}
}

func TestGetRunMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/runs/run-1", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

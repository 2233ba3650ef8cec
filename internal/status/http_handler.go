// Package status exposes supervised-run status documents to polling
// clients over HTTP.
package status

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/casklane/stockfeed/internal/middleware"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/rs/cors"
)

// Handler serves status documents.
type Handler struct {
	store *supervisor.Store
}

// NewHandler creates a status handler over store.
func NewHandler(store *supervisor.Store) *Handler {
	return &Handler{store: store}
}

// Routes returns the handler wrapped with CORS and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/runs/", h.getRun)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return middleware.LoggingMiddleware(corsHandler.Handler(mux))
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/runs/")
	runID = strings.TrimSuffix(runID, "/")
	if runID == "" || strings.Contains(runID, "/") || strings.Contains(runID, "..") {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	doc, found, err := h.store.Read(runID)
	if err != nil {
		log.Printf("[STATUS] failed to read status for %s: %v", runID, err)
		http.Error(w, "failed to read status", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		log.Printf("[STATUS] failed to encode status for %s: %v", runID, err)
	}
}

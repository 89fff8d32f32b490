package scraper

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// SetupServer builds the admin HTTP surface.
func (a *App) SetupServer() {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	r.HandleFunc("/api/status", a.handleStatus).Methods("GET")
	r.HandleFunc("/api/force-sync", a.handleForceSync).Methods("POST")
	r.HandleFunc("/api/force-extract", a.handleForceExtract).Methods("POST")

	a.Server = &http.Server{Addr: a.Config.Addr, Handler: r}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Status.Snapshot())
}

func (a *App) handleForceSync(w http.ResponseWriter, _ *http.Request) {
	if !a.ForceSync() {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Already syncing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sync triggered"})
}

func (a *App) handleForceExtract(w http.ResponseWriter, r *http.Request) {
	processed, ok, err := a.ForceExtraction(r.Context())
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Extraction already running"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Extraction batch complete",
		"processed": processed,
	})
}

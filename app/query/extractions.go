package query

import (
	"math"
	"net/http"
	"strconv"
)

const defaultExtractionRows = 200

// handleExtractions lists recognized result sheets, newest first.
// Supports ?limit=N.
func (a *App) handleExtractions(w http.ResponseWriter, r *http.Request) {
	limit := defaultExtractionRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := a.Store.ListExtractions(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleExtractionStatus summarizes extraction outcomes and the backlog of
// units still awaiting a first pass.
func (a *App) handleExtractionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := a.Store.GetExtractionStats(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	pending, err := a.Store.PendingExtractionCount(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_processed": stats.TotalProcessed,
		"success":         stats.Success,
		"low_confidence":  stats.LowConfidence,
		"failed":          stats.Failed,
		"error":           stats.Errored,
		"avg_confidence":  math.Round(stats.AvgConfidence*10) / 10,
		"pending":         pending,
	})
}

package query

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	a.Logger.Error("Query failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// percent is reported/expected as a percentage rounded to one decimal.
func percent(reported, expected uint64) float64 {
	if expected == 0 {
		return 0
	}
	return math.Round(float64(reported)/float64(expected)*1000) / 10
}

type categoryStats struct {
	ExpectedUnits uint64  `json:"total_pus"`
	ReportedUnits uint64  `json:"results_uploaded"`
	Percentage    float64 `json:"percentage"`
}

func (a *App) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	councils, err := a.Store.ListAreaCouncils(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	elections, err := a.Store.ListElections(ctx, "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	stats := map[string]categoryStats{}
	for _, category := range irev.Categories() {
		expected, reported, err := a.Store.CategoryTotals(ctx, string(category))
		if err != nil {
			a.writeError(w, err)
			return
		}
		stats[string(category)] = categoryStats{
			ExpectedUnits: expected,
			ReportedUnits: reported,
			Percentage:    percent(reported, expected),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"area_councils": councils,
		"elections":     elections,
		"stats":         stats,
	})
}

func (a *App) handleElectionsDetail(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.ListElections(r.Context(), string(irev.Chairman))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleLGABreakdown reports per-area chairmanship progress. Every
// chairmanship election covers exactly one administrative area, so the
// election rollups double as the per-area rollups; councillorship elections
// are per-ward and only summarize.
func (a *App) handleLGABreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chairman, err := a.Store.ListElections(ctx, string(irev.Chairman))
	if err != nil {
		a.writeError(w, err)
		return
	}
	lgaData := make([]map[string]any, 0, len(chairman))
	for _, e := range chairman {
		lgaData = append(lgaData, map[string]any{
			"lga_name": e.DomainName,
			"elections": map[string]categoryStats{
				string(irev.Chairman): {
					ExpectedUnits: uint64(e.ExpectedUnits),
					ReportedUnits: uint64(e.ReportedUnits),
					Percentage:    e.PercentDone,
				},
			},
		})
	}

	councillor, err := a.Store.ListElections(ctx, string(irev.Councillor))
	if err != nil {
		a.writeError(w, err)
		return
	}
	var cExpected, cReported uint64
	for _, e := range councillor {
		cExpected += uint64(e.ExpectedUnits)
		cReported += uint64(e.ReportedUnits)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lga_data": lgaData,
		"councillorship_summary": map[string]any{
			"total_wards":   len(councillor),
			"total_pus":     cExpected,
			"total_results": cReported,
			"percentage":    percent(cReported, cExpected),
		},
	})
}

func (a *App) handleWardBreakdown(w http.ResponseWriter, r *http.Request) {
	lgaName := mux.Vars(r)["lga"]
	wards, err := a.Store.ListWardsByLGAName(r.Context(), lgaName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wards)
}

func (a *App) handleCouncillorship(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.ListElections(r.Context(), string(irev.Councillor))
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, e := range rows {
		out = append(out, map[string]any{
			"id":            e.ID,
			"ward_name":     e.DomainName,
			"total_pus":     e.ExpectedUnits,
			"total_results": e.ReportedUnits,
			"pct":           e.PercentDone,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handleCandidates(w http.ResponseWriter, r *http.Request) {
	council := mux.Vars(r)["council"]
	rows, err := a.Store.ListCandidates(r.Context(), council, "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *App) handleRecentResults(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.ListUnitsWithResults(r.Context(), "", 50)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type timelineEntry struct {
	Timestamp     string          `json:"timestamp"`
	Category      string          `json:"category"`
	ExpectedUnits uint32          `json:"total_pus"`
	ReportedUnits uint32          `json:"results_uploaded"`
	Percent       float64         `json:"percentage"`
	Breakdown     json.RawMessage `json:"breakdown"`
}

func (a *App) handleTimeline(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.ListSyncLog(r.Context(), 300)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]timelineEntry, 0, len(rows))
	for _, row := range rows {
		breakdown := json.RawMessage(row.BreakdownJSON)
		if len(breakdown) == 0 {
			breakdown = json.RawMessage("{}")
		}
		out = append(out, timelineEntry{
			Timestamp:     row.Timestamp.UTC().Format("2006-01-02T15:04:05"),
			Category:      row.Category,
			ExpectedUnits: row.ExpectedUnits,
			ReportedUnits: row.ReportedUnits,
			Percent:       row.Percent,
			Breakdown:     breakdown,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func isWithdrawn(c db.CandidateRow) bool {
	return strings.Contains(strings.ToUpper(c.Status), "WITHDRAWN")
}

type partyBreakdown struct {
	PartyAbbrev string `json:"party_abbrev"`
	PartyFull   string `json:"party_full"`
	Count       int    `json:"count"`
	Female      int    `json:"female"`
	Male        int    `json:"male"`
	Withdrawn   int    `json:"withdrawn"`
}

type councilBreakdown struct {
	AreaCouncil string `json:"area_council"`
	Total       int    `json:"total"`
	Parties     int    `json:"parties"`
	Female      int    `json:"female"`
}

func (a *App) handlePartyAnalysis(w http.ResponseWriter, r *http.Request) {
	candidates, err := a.Store.ListCandidates(r.Context(), "", "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	byParty := map[string]*partyBreakdown{}
	type councilAcc struct {
		total, female int
		parties       map[string]struct{}
	}
	byCouncil := map[string]*councilAcc{}

	for _, c := range candidates {
		p, ok := byParty[c.PartyAbbrev]
		if !ok {
			p = &partyBreakdown{PartyAbbrev: c.PartyAbbrev, PartyFull: c.PartyFull}
			byParty[c.PartyAbbrev] = p
		}
		p.Count++
		switch c.Gender {
		case "F":
			p.Female++
		case "M":
			p.Male++
		}
		if isWithdrawn(c) {
			p.Withdrawn++
		}

		cc, ok := byCouncil[c.AreaCouncil]
		if !ok {
			cc = &councilAcc{parties: map[string]struct{}{}}
			byCouncil[c.AreaCouncil] = cc
		}
		cc.total++
		cc.parties[c.PartyAbbrev] = struct{}{}
		if c.Gender == "F" {
			cc.female++
		}
	}

	parties := make([]partyBreakdown, 0, len(byParty))
	for _, p := range byParty {
		parties = append(parties, *p)
	}
	sort.Slice(parties, func(i, j int) bool {
		if parties[i].Count != parties[j].Count {
			return parties[i].Count > parties[j].Count
		}
		return parties[i].PartyAbbrev < parties[j].PartyAbbrev
	})

	councils := make([]councilBreakdown, 0, len(byCouncil))
	for name, cc := range byCouncil {
		councils = append(councils, councilBreakdown{
			AreaCouncil: name,
			Total:       cc.total,
			Parties:     len(cc.parties),
			Female:      cc.female,
		})
	}
	sort.Slice(councils, func(i, j int) bool { return councils[i].AreaCouncil < councils[j].AreaCouncil })

	writeJSON(w, http.StatusOK, map[string]any{
		"by_party":   parties,
		"by_council": councils,
	})
}

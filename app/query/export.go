package query

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"

	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportFormat validates ?format= and reports whether the caller asked for a
// workbook instead of CSV.
func exportFormat(w http.ResponseWriter, r *http.Request) (xlsx, ok bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid format. Use 'csv' or 'xlsx'"})
		return false, false
	}
	return format == "xlsx", true
}

func (a *App) writeCSV(w http.ResponseWriter, name string, header []string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))
	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	_ = cw.WriteAll(rows)
	cw.Flush()
}

func (a *App) writeXLSX(w http.ResponseWriter, name, sheet string, header []string, rows [][]string) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	_ = f.SetSheetRow(sheet, "A1", &cells)
	for i, row := range rows {
		for j, v := range row {
			cells[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheet, cell, &cells)
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", name))
	if err := f.Write(w); err != nil {
		a.writeError(w, err)
	}
}

func (a *App) export(w http.ResponseWriter, xlsx bool, name, sheet string, header []string, rows [][]string) {
	if xlsx {
		a.writeXLSX(w, name, sheet, header, rows)
		return
	}
	a.writeCSV(w, name, header, rows)
}

func (a *App) handleExportElections(w http.ResponseWriter, r *http.Request) {
	xlsx, ok := exportFormat(w, r)
	if !ok {
		return
	}
	elections, err := a.Store.ListElections(r.Context(), "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	sort.Slice(elections, func(i, j int) bool {
		if elections[i].Category != elections[j].Category {
			return elections[i].Category < elections[j].Category
		}
		return elections[i].DomainName < elections[j].DomainName
	})

	header := []string{"area_council", "category", "total_pus", "total_results", "percentage", "election_date", "last_updated"}
	rows := make([][]string, 0, len(elections))
	for _, e := range elections {
		rows = append(rows, []string{
			e.DomainName,
			e.Category,
			fmt.Sprint(e.ExpectedUnits),
			fmt.Sprint(e.ReportedUnits),
			fmt.Sprintf("%.1f", e.PercentDone),
			e.ElectionDate,
			e.LastUpdated.UTC().Format("2006-01-02T15:04:05"),
		})
	}
	a.export(w, xlsx, "elections_export", "Elections", header, rows)
}

func (a *App) handleExportCandidates(w http.ResponseWriter, r *http.Request) {
	xlsx, ok := exportFormat(w, r)
	if !ok {
		return
	}
	candidates, err := a.Store.ListCandidates(r.Context(), "", "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	header := []string{"area_council", "candidate_name", "party_full", "party_abbrev", "status", "gender", "position_type"}
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []string{
			c.AreaCouncil, c.CandidateName, c.PartyFull, c.PartyAbbrev, c.Status, c.Gender, c.PositionType,
		})
	}
	a.export(w, xlsx, "candidates_export", "Candidates", header, rows)
}

func (a *App) handleExportAnalytics(w http.ResponseWriter, r *http.Request) {
	xlsx, ok := exportFormat(w, r)
	if !ok {
		return
	}
	logs, err := a.Store.ListSyncLog(r.Context(), 500)
	if err != nil {
		a.writeError(w, err)
		return
	}

	header := []string{"timestamp", "category", "total_pus", "results_uploaded", "percentage"}
	rows := make([][]string, 0, len(logs))
	for _, row := range logs {
		rows = append(rows, []string{
			row.Timestamp.UTC().Format("2006-01-02T15:04:05"),
			row.Category,
			fmt.Sprint(row.ExpectedUnits),
			fmt.Sprint(row.ReportedUnits),
			fmt.Sprintf("%.1f", row.Percent),
		})
	}
	a.export(w, xlsx, "analytics_export", "Analytics", header, rows)
}

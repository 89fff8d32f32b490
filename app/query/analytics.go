package query

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
)

type projection struct {
	Rate      float64 `json:"rate"`
	ETA       *string `json:"eta"`
	Remaining int64   `json:"remaining,omitempty"`
	Pct       float64 `json:"pct"`
}

type velocityPoint struct {
	Time     string  `json:"time"`
	Rate     float64 `json:"rate"`
	Category string  `json:"category"`
}

// handleTurnoutProjection estimates when each contest finishes uploading,
// from the audit-log upload velocity.
func (a *App) handleTurnoutProjection(w http.ResponseWriter, r *http.Request) {
	logs, err := a.Store.ListSyncLog(r.Context(), 100)
	if err != nil {
		a.writeError(w, err)
		return
	}
	// Oldest first.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}

	if len(logs) < 2 {
		writeJSON(w, http.StatusOK, map[string]any{
			"chairman":         projection{},
			"councillor":       projection{},
			"velocity_history": []velocityPoint{},
		})
		return
	}

	projections := map[string]projection{}
	for _, category := range irev.Categories() {
		var series []db.SyncLogRow
		for _, row := range logs {
			if row.Category == string(category) {
				series = append(series, row)
			}
		}
		if len(series) < 2 {
			projections[string(category)] = projection{}
			continue
		}

		recent := series[len(series)-1]
		older := series[len(series)-min(6, len(series))]
		elapsedMin := recent.Timestamp.Sub(older.Timestamp).Minutes()
		if elapsedMin < 1 {
			elapsedMin = 1
		}

		gained := int64(recent.ReportedUnits) - int64(older.ReportedUnits)
		rate := float64(gained) / elapsedMin
		remaining := int64(recent.ExpectedUnits) - int64(recent.ReportedUnits)

		var eta *string
		if rate > 0 {
			etaMin := float64(remaining) / rate
			s := time.Now().Add(time.Duration(etaMin * float64(time.Minute))).Format("15:04")
			eta = &s
		}
		projections[string(category)] = projection{
			Rate:      math.Round(rate*100) / 100,
			ETA:       eta,
			Remaining: remaining,
			Pct:       recent.Percent,
		}
	}

	var velocity []velocityPoint
	for i := 1; i < len(logs); i++ {
		prev, curr := logs[i-1], logs[i]
		elapsed := curr.Timestamp.Sub(prev.Timestamp).Minutes()
		if elapsed < 0.1 {
			elapsed = 0.1
		}
		rate := (float64(curr.ReportedUnits) - float64(prev.ReportedUnits)) / elapsed
		if rate < 0 {
			rate = 0
		}
		velocity = append(velocity, velocityPoint{
			Time:     curr.Timestamp.UTC().Format("2006-01-02T15:04:05"),
			Rate:     math.Round(rate*100) / 100,
			Category: curr.Category,
		})
	}
	if len(velocity) > 50 {
		velocity = velocity[len(velocity)-50:]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chairman":         projections[string(irev.Chairman)],
		"councillor":       projections[string(irev.Councillor)],
		"velocity_history": velocity,
	})
}

type hourlyRate struct {
	Hour     string  `json:"hour"`
	Category string  `json:"category"`
	Uploads  uint32  `json:"uploads"`
	Pct      float64 `json:"pct"`
}

// handleTrends reports hourly upload rates, relative momentum, and the
// per-area completion ranking.
func (a *App) handleTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logs, err := a.Store.ListSyncLog(ctx, 0)
	if err != nil {
		a.writeError(w, err)
		return
	}
	// Oldest first so the latest snapshot wins each hourly bucket.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}

	type bucketKey struct{ hour, category string }
	type bucket struct {
		reported uint32
		pct      float64
	}
	hourly := map[bucketKey]bucket{}
	for _, row := range logs {
		key := bucketKey{row.Timestamp.UTC().Format("2006-01-02T15") + ":00", row.Category}
		hourly[key] = bucket{reported: row.ReportedUnits, pct: row.Percent}
	}

	keys := make([]bucketKey, 0, len(hourly))
	for k := range hourly {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].hour != keys[j].hour {
			return keys[i].hour < keys[j].hour
		}
		return keys[i].category < keys[j].category
	})

	var rates []hourlyRate
	prevByCategory := map[string]bucket{}
	for _, k := range keys {
		entry := hourly[k]
		if prev, ok := prevByCategory[k.category]; ok {
			var uploads uint32
			if entry.reported > prev.reported {
				uploads = entry.reported - prev.reported
			}
			rates = append(rates, hourlyRate{Hour: k.hour, Category: k.category, Uploads: uploads, Pct: entry.pct})
		}
		prevByCategory[k.category] = entry
	}

	momentum := "steady"
	if len(rates) >= 4 {
		recentAvg := float64(rates[len(rates)-1].Uploads+rates[len(rates)-2].Uploads+rates[len(rates)-3].Uploads) / 3
		olderAvg := recentAvg
		if len(rates) >= 6 {
			olderAvg = float64(rates[len(rates)-4].Uploads+rates[len(rates)-5].Uploads+rates[len(rates)-6].Uploads) / 3
		}
		switch {
		case recentAvg > olderAvg*1.2:
			momentum = "accelerating"
		case recentAvg < olderAvg*0.8:
			momentum = "decelerating"
		}
	}

	chairman, err := a.Store.ListElections(ctx, string(irev.Chairman))
	if err != nil {
		a.writeError(w, err)
		return
	}
	type lgaPace struct {
		LGAName string  `json:"lga_name"`
		Pct     float64 `json:"pct"`
	}
	ranking := make([]lgaPace, 0, len(chairman))
	for _, e := range chairman {
		ranking = append(ranking, lgaPace{LGAName: e.DomainName, Pct: e.PercentDone})
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Pct > ranking[j].Pct })

	var fastest, slowest any
	if len(ranking) > 0 {
		fastest = ranking[0].LGAName
		slowest = ranking[len(ranking)-1].LGAName
	}

	if len(rates) > 48 {
		rates = rates[len(rates)-48:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hourly_rates": rates,
		"fastest_lga":  fastest,
		"slowest_lga":  slowest,
		"lga_ranking":  ranking,
		"momentum":     momentum,
	})
}

// handleHeatmap returns ward- and area-level completion percentages.
func (a *App) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wards, err := a.Store.ListAllWards(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	type heatCell struct {
		Name          string  `json:"name"`
		LGAName       string  `json:"lga_name"`
		ExpectedUnits uint32  `json:"total_pus"`
		ReportedUnits uint32  `json:"results_uploaded"`
		Pct           float64 `json:"pct"`
	}
	wardCells := make([]heatCell, 0, len(wards))
	for _, ward := range wards {
		wardCells = append(wardCells, heatCell{
			Name:          ward.Name,
			LGAName:       ward.LGAName,
			ExpectedUnits: ward.ExpectedUnits,
			ReportedUnits: ward.ReportedUnits,
			Pct:           percent(uint64(ward.ReportedUnits), uint64(ward.ExpectedUnits)),
		})
	}

	chairman, err := a.Store.ListElections(ctx, string(irev.Chairman))
	if err != nil {
		a.writeError(w, err)
		return
	}
	lgaCells := make([]heatCell, 0, len(chairman))
	for _, e := range chairman {
		lgaCells = append(lgaCells, heatCell{
			Name:          e.DomainName,
			LGAName:       e.DomainName,
			ExpectedUnits: e.ExpectedUnits,
			ReportedUnits: e.ReportedUnits,
			Pct:           e.PercentDone,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wards": wardCells,
		"lgas":  lgaCells,
	})
}

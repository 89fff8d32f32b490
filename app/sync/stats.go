package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"go.uber.org/zap"
)

// areaStanding is the per-election slice of a category's sync-log breakdown.
type areaStanding struct {
	Units   int     `json:"pus"`
	Results int     `json:"results"`
	Percent float64 `json:"pct"`
}

// SyncStats runs phase one: fetch the headline counters for every discovered
// election, persist them, and append one audit record per category.
func (e *Engine) SyncStats(ctx context.Context, elections map[irev.Category][]irev.Election) error {
	for _, category := range irev.Categories() {
		categoryExpected := 0
		categoryReported := 0
		breakdown := map[string]areaStanding{}

		for _, el := range elections[category] {
			name := el.Name()
			e.progress(fmt.Sprintf("Stats: %s", name))

			if err := e.store.UpsertElection(ctx, &db.ElectionRow{
				ID:           el.ID,
				FullName:     el.FullName,
				Category:     string(category),
				ElectionDate: el.ElectionDate,
				StateName:    e.stateName,
				DomainName:   el.Domain.Name,
				RawJSON:      string(el.Raw),
			}); err != nil {
				e.logger.Error("election upsert failed",
					zap.String("election", el.ID), zap.Error(err))
			}

			stats, err := e.api.ResultStats(ctx, el.ID)
			if err != nil {
				e.logger.Warn("result stats unavailable",
					zap.String("election", el.ID), zap.Error(err))
				e.sleep(500 * time.Millisecond)
				continue
			}

			expected := stats.ExpectedUnits()
			reported := stats.Documents
			pct := Percent(reported, expected)
			if err := e.store.UpdateElectionStats(ctx, el.ID,
				uint32(expected), uint32(reported), pct); err != nil {
				e.logger.Error("election stats update failed",
					zap.String("election", el.ID), zap.Error(err))
			}

			categoryExpected += expected
			categoryReported += reported
			breakdown[name] = areaStanding{Units: expected, Results: reported, Percent: pct}

			e.logger.Info("election stats",
				zap.String("category", string(category)),
				zap.String("election", name),
				zap.Int("reported", reported),
				zap.Int("expected", expected),
				zap.Float64("pct", pct))
			e.sleep(500 * time.Millisecond)
		}

		breakdownJSON, _ := json.Marshal(breakdown)
		if err := e.store.AppendSyncLog(ctx, &db.SyncLogRow{
			Timestamp:     time.Now().UTC(),
			Category:      string(category),
			ExpectedUnits: uint32(categoryExpected),
			ReportedUnits: uint32(categoryReported),
			Percent:       Percent(categoryReported, categoryExpected),
			BreakdownJSON: string(breakdownJSON),
		}); err != nil {
			e.logger.Error("sync log append failed",
				zap.String("category", string(category)), zap.Error(err))
		}
	}
	return nil
}

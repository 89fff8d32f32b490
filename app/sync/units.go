package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"go.uber.org/zap"
)

// SyncUnits runs phase three for one category: walk every stored ward of
// every election, refresh its polling units, and recompute the ward and area
// rollups from what was actually seen. A ward whose unit listing fails keeps
// its previous counters and is retried on the next cycle.
func (e *Engine) SyncUnits(ctx context.Context, category irev.Category, elections map[irev.Category][]irev.Election) error {
	for _, el := range elections[category] {
		wards, err := e.store.ListWards(ctx, el.ID)
		if err != nil {
			e.logger.Error("ward listing failed",
				zap.String("election", el.ID), zap.Error(err))
			continue
		}

		areaExpected := map[string]uint32{}
		areaReported := map[string]uint32{}
		areaOrder := []string{}

		for _, ward := range wards {
			e.progress(fmt.Sprintf("PUs: %s/%s [%s]", ward.LGAName, ward.Name, shortCategory(category)))

			units, err := e.api.PollingUnits(ctx, el.ID, ward.ID)
			if err != nil {
				e.logger.Warn("polling unit listing failed",
					zap.String("ward", ward.Name), zap.Error(err))
				e.sleep(time.Second)
				continue
			}

			var wardExpected, wardReported uint32
			for _, unit := range units {
				wardExpected++
				hasResult := unit.HasResult()
				if hasResult {
					wardReported++
				}
				row := &db.PollingUnitRow{
					ID:         unit.ID,
					ElectionID: el.ID,
					WardID:     ward.ID,
					LGAName:    ward.LGAName,
					WardName:   ward.Name,
					Name:       unit.Name,
					Code:       unit.PUCode,
					HasResult:  hasResult,
					RawJSON:    string(unit.Raw),
				}
				if unit.Document != nil {
					row.DocumentURL = unit.Document.URL
					row.DocumentSize = uint64(unit.Document.Size)
					row.ResultUploadedAt = unit.Document.UpdatedAt
				}
				if err := e.store.UpsertPollingUnit(ctx, row); err != nil {
					e.logger.Error("polling unit upsert failed",
						zap.String("unit", unit.ID), zap.Error(err))
				}
			}

			if err := e.store.UpdateWardRollup(ctx, ward.ID, el.ID, wardExpected, wardReported); err != nil {
				e.logger.Error("ward rollup update failed",
					zap.String("ward", ward.ID), zap.Error(err))
			}

			if _, seen := areaExpected[ward.LGAName]; !seen {
				areaOrder = append(areaOrder, ward.LGAName)
			}
			areaExpected[ward.LGAName] += wardExpected
			areaReported[ward.LGAName] += wardReported
			e.sleep(300 * time.Millisecond)
		}

		for _, lgaName := range areaOrder {
			if err := e.store.UpdateLGARollup(ctx, lgaName, el.ID,
				areaExpected[lgaName], areaReported[lgaName]); err != nil {
				e.logger.Error("lga rollup update failed",
					zap.String("lga", lgaName), zap.Error(err))
			}
		}
	}
	return nil
}

// shortCategory truncates a category name for compact status messages.
func shortCategory(category irev.Category) string {
	s := string(category)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

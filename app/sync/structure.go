package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"go.uber.org/zap"
)

// SyncStructure runs phase two: refresh the area/ward hierarchy beneath every
// election. Replacing an area or ward resets its rollup counters to zero;
// phase three recomputes them from the unit listings.
func (e *Engine) SyncStructure(ctx context.Context, elections map[irev.Category][]irev.Election) error {
	for _, category := range irev.Categories() {
		for _, el := range elections[category] {
			name := el.Name()
			e.progress(fmt.Sprintf("LGA detail: %s", name))

			entries, err := e.api.Hierarchy(ctx, el.ID, e.stateID)
			if err != nil {
				e.logger.Warn("hierarchy unavailable",
					zap.String("election", el.ID), zap.Error(err))
				e.sleep(time.Second)
				continue
			}

			for _, entry := range entries {
				lgaName := entry.LGA.Name
				if lgaName == "" {
					lgaName = name
				}
				if err := e.store.UpsertLGA(ctx, &db.LGARow{
					ID:         entry.ID,
					ElectionID: el.ID,
					Name:       lgaName,
					Code:       entry.LGA.Code,
					LGAID:      uint32(entry.LGA.LGAID),
					StateName:  e.stateName,
					TotalWards: uint32(len(entry.Wards)),
					RawJSON:    string(entry.Raw),
				}); err != nil {
					e.logger.Error("lga upsert failed",
						zap.String("lga", lgaName), zap.Error(err))
					continue
				}

				for _, ward := range entry.Wards {
					if err := e.store.UpsertWard(ctx, &db.WardRow{
						ID:         ward.ID,
						LGADbID:    entry.ID,
						ElectionID: el.ID,
						Name:       ward.Name,
						Code:       ward.Code,
						WardID:     uint32(ward.WardID),
						LGAName:    lgaName,
						RawJSON:    string(ward.Raw),
					}); err != nil {
						e.logger.Error("ward upsert failed",
							zap.String("ward", ward.Name), zap.Error(err))
					}
				}
			}
			e.sleep(time.Second)
		}
	}
	return nil
}

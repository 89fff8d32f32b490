package sync

import (
	"context"
	"strings"
	"time"

	"github.com/civichq/resultwatch/pkg/irev"
	"go.uber.org/zap"
)

// Discover lists elections for every category and filters them down to the
// configured state and election year. A short pause separates the category
// requests to keep the upstream happy.
func (e *Engine) Discover(ctx context.Context) (map[irev.Category][]irev.Election, error) {
	e.progress("Discovering elections...")
	out := make(map[irev.Category][]irev.Election, 2)
	for _, category := range irev.Categories() {
		elections, err := e.api.ListElections(ctx, category)
		if err != nil {
			e.logger.Warn("election discovery failed",
				zap.String("category", string(category)), zap.Error(err))
			e.sleep(time.Second)
			continue
		}
		kept := e.filterElections(elections)
		e.logger.Info("discovered elections",
			zap.String("category", string(category)),
			zap.Int("total", len(elections)),
			zap.Int("matched", len(kept)))
		out[category] = kept
		e.sleep(time.Second)
	}
	return out, nil
}

// filterElections keeps elections belonging to the configured state and year.
func (e *Engine) filterElections(elections []irev.Election) []irev.Election {
	kept := make([]irev.Election, 0, len(elections))
	for _, el := range elections {
		if el.State.StateID != e.stateID {
			continue
		}
		if e.targetYear != "" && !strings.Contains(el.ElectionDate, e.targetYear) {
			continue
		}
		kept = append(kept, el)
	}
	return kept
}

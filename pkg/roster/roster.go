// Package roster imports reference data from the published election
// workbook: area-council profiles and the chairmanship candidate list.
package roster

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	overviewSheet   = "Election Overview"
	candidatesSheet = "Chairmanship Candidates"

	positionChairmanship = "Chairmanship"
)

// Store is the persistence slice the importer writes through.
type Store interface {
	UpsertAreaCouncil(ctx context.Context, row *db.AreaCouncilRow) error
	ReplaceCandidates(ctx context.Context, positionType string, rows []db.CandidateRow) error
}

// Import loads the workbook at path into the store. The overview sheet
// carries one area council per row (rows 5-10, a TOTAL footer excluded); the
// candidates sheet carries one chairmanship candidate per row from row 4,
// keyed by a numeric serial in the first column.
func Import(ctx context.Context, path string, store Store, logger *zap.Logger) error {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	councils, err := readAreaCouncils(wb)
	if err != nil {
		return err
	}
	for i := range councils {
		if err := store.UpsertAreaCouncil(ctx, &councils[i]); err != nil {
			return fmt.Errorf("store area council %q: %w", councils[i].Name, err)
		}
	}

	candidates, err := readChairmanshipCandidates(wb)
	if err != nil {
		return err
	}
	if err := store.ReplaceCandidates(ctx, positionChairmanship, candidates); err != nil {
		return fmt.Errorf("store candidates: %w", err)
	}

	logger.Info("Workbook imported",
		zap.String("path", path),
		zap.Int("area_councils", len(councils)),
		zap.Int("candidates", len(candidates)))
	return nil
}

func readAreaCouncils(wb *excelize.File) ([]db.AreaCouncilRow, error) {
	rows, err := wb.GetRows(overviewSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", overviewSheet, err)
	}

	var out []db.AreaCouncilRow
	for i := 4; i < 10 && i < len(rows); i++ {
		row := rows[i]
		name := cell(row, 0)
		if name == "" || name == "TOTAL" {
			continue
		}
		voters := cell(row, 3)
		if voters == "" {
			voters = "N/A"
		}
		out = append(out, db.AreaCouncilRow{
			Name:                    name,
			TotalWards:              cellUint(row, 1),
			PollingUnits:            cellUint(row, 2),
			RegisteredVoters:        voters,
			ChairmanshipCandidates:  cellUint(row, 4),
			CouncillorshipPositions: cellUint(row, 5),
		})
	}
	return out, nil
}

func readChairmanshipCandidates(wb *excelize.File) ([]db.CandidateRow, error) {
	rows, err := wb.GetRows(candidatesSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", candidatesSheet, err)
	}

	var out []db.CandidateRow
	for i := 3; i < len(rows); i++ {
		row := rows[i]
		// Data rows carry a numeric serial; headers and blanks do not.
		if _, err := strconv.Atoi(cell(row, 0)); err != nil {
			continue
		}
		if cell(row, 2) == "" {
			continue
		}
		out = append(out, db.CandidateRow{
			AreaCouncil:   cell(row, 1),
			CandidateName: cell(row, 2),
			PartyFull:     cell(row, 3),
			PartyAbbrev:   cell(row, 4),
			Status:        cell(row, 5),
			Gender:        cell(row, 6),
			Notes:         cell(row, 7),
			PositionType:  positionChairmanship,
		})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellUint(row []string, i int) uint32 {
	n, err := strconv.Atoi(cell(row, i))
	if err != nil || n < 0 {
		return 0
	}
	return uint32(n)
}

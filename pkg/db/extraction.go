package db

import (
	"context"
	"fmt"
	"time"
)

const extractionCols = `unit_id, unit_code, unit_name, ward_name, lga_name, election_id,
	registered_voters, accredited_voters, total_valid_votes, total_rejected_votes,
	party_votes, confidence, raw_text, document_url, status, processed_at`

// UpsertExtraction replaces the extraction record for one polling unit.
func (s *Store) UpsertExtraction(ctx context.Context, row *ExtractionRow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, ExtractionsTable, extractionCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	partyVotes := row.PartyVotesJSON
	if partyVotes == "" {
		partyVotes = "{}"
	}
	if err := batch.Append(
		row.UnitID, row.UnitCode, row.UnitName, row.WardName, row.LGAName, row.ElectionID,
		row.RegisteredVoters, row.AccreditedVoters, row.TotalValidVotes, row.TotalRejectedVotes,
		partyVotes, row.Confidence, row.RawText, row.DocumentURL, row.Status, time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// ListExtractions returns extraction records, newest first.
func (s *Store) ListExtractions(ctx context.Context, limit int) ([]ExtractionRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		ORDER BY processed_at DESC
	`, extractionCols, s.Name, ExtractionsTable)
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExtractionRow
	for rows.Next() {
		var row ExtractionRow
		if err := rows.Scan(
			&row.UnitID, &row.UnitCode, &row.UnitName, &row.WardName, &row.LGAName, &row.ElectionID,
			&row.RegisteredVoters, &row.AccreditedVoters, &row.TotalValidVotes, &row.TotalRejectedVotes,
			&row.PartyVotesJSON, &row.Confidence, &row.RawText, &row.DocumentURL, &row.Status, &row.ProcessedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ExtractionStats summarizes extraction outcomes for the status endpoint.
type ExtractionStats struct {
	TotalProcessed uint64  `json:"total_processed"`
	Success        uint64  `json:"success"`
	LowConfidence  uint64  `json:"low_confidence"`
	Failed         uint64  `json:"failed"`
	Errored        uint64  `json:"error"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// GetExtractionStats returns status counts and the average confidence of
// successful extractions.
func (s *Store) GetExtractionStats(ctx context.Context) (ExtractionStats, error) {
	var stats ExtractionStats
	query := fmt.Sprintf(`
		SELECT
			COUNT(),
			countIf(status = 'success'),
			countIf(status = 'low_confidence'),
			countIf(status = 'failed'),
			countIf(status = 'error'),
			COALESCE(avgIf(confidence, status = 'success'), 0)
		FROM "%s"."%s" FINAL
	`, s.Name, ExtractionsTable)
	err := s.QueryRow(ctx, query).Scan(
		&stats.TotalProcessed, &stats.Success, &stats.LowConfidence,
		&stats.Failed, &stats.Errored, &stats.AvgConfidence,
	)
	return stats, err
}

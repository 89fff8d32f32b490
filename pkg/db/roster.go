package db

import (
	"context"
	"fmt"
)

// ReplaceCandidates swaps the candidate roster for one position type. The
// roster is reference data imported wholesale from the workbook, so the old
// rows for that position are dropped first.
func (s *Store) ReplaceCandidates(ctx context.Context, positionType string, rows []CandidateRow) error {
	del := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE position_type = ?`, s.Name, CandidatesTable)
	if err := s.Exec(ctx, del, positionType); err != nil {
		return fmt.Errorf("clear %s candidates: %w", positionType, err)
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s"
		(area_council, candidate_name, party_full, party_abbrev, status, gender, notes, position_type) VALUES`,
		s.Name, CandidatesTable)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := batch.Append(
			row.AreaCouncil, row.CandidateName, row.PartyFull, row.PartyAbbrev,
			row.Status, row.Gender, row.Notes, row.PositionType,
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// ListCandidates returns roster entries, optionally restricted to one area
// council and/or position type.
func (s *Store) ListCandidates(ctx context.Context, areaCouncil, positionType string) ([]CandidateRow, error) {
	query := fmt.Sprintf(`
		SELECT area_council, candidate_name, party_full, party_abbrev, status, gender, notes, position_type
		FROM "%s"."%s"
		WHERE 1 = 1
	`, s.Name, CandidatesTable)
	var args []any
	if areaCouncil != "" {
		query += ` AND area_council = ?`
		args = append(args, areaCouncil)
	}
	if positionType != "" {
		query += ` AND position_type = ?`
		args = append(args, positionType)
	}
	query += ` ORDER BY area_council, party_abbrev`

	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CandidateRow
	for rows.Next() {
		var row CandidateRow
		if err := rows.Scan(
			&row.AreaCouncil, &row.CandidateName, &row.PartyFull, &row.PartyAbbrev,
			&row.Status, &row.Gender, &row.Notes, &row.PositionType,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertAreaCouncil replaces one area-council reference row.
func (s *Store) UpsertAreaCouncil(ctx context.Context, row *AreaCouncilRow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s"
		(name, total_wards, polling_units, registered_voters, chairmanship_candidates, councillorship_positions) VALUES`,
		s.Name, AreaCouncilsTable)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(
		row.Name, row.TotalWards, row.PollingUnits, row.RegisteredVoters,
		row.ChairmanshipCandidates, row.CouncillorshipPositions,
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// ListAreaCouncils returns the area-council reference rows.
func (s *Store) ListAreaCouncils(ctx context.Context) ([]AreaCouncilRow, error) {
	query := fmt.Sprintf(`
		SELECT name, total_wards, polling_units, registered_voters, chairmanship_candidates, councillorship_positions
		FROM "%s"."%s" FINAL
		ORDER BY name
	`, s.Name, AreaCouncilsTable)
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AreaCouncilRow
	for rows.Next() {
		var row AreaCouncilRow
		if err := rows.Scan(
			&row.Name, &row.TotalWards, &row.PollingUnits, &row.RegisteredVoters,
			&row.ChairmanshipCandidates, &row.CouncillorshipPositions,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

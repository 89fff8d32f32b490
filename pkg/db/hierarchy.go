package db

import (
	"context"
	"fmt"
	"time"
)

const lgaCols = `id, election_id, name, code, lga_id, state_name, total_wards,
	expected_units, reported_units, raw_json, last_updated`

const wardCols = `id, lga_db_id, election_id, name, code, ward_id, lga_name,
	expected_units, reported_units, raw_json, last_updated`

// UpsertLGA replaces the administrative-area row. Structural syncs reset the
// rollup counters; the unit-detail phase overwrites them afterwards.
func (s *Store) UpsertLGA(ctx context.Context, row *LGARow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, LGAsTable, lgaCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(
		row.ID, row.ElectionID, row.Name, row.Code, row.LGAID, row.StateName, row.TotalWards,
		row.ExpectedUnits, row.ReportedUnits, row.RawJSON, time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// UpsertWard replaces the ward row.
func (s *Store) UpsertWard(ctx context.Context, row *WardRow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, WardsTable, wardCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(
		row.ID, row.LGADbID, row.ElectionID, row.Name, row.Code, row.WardID, row.LGAName,
		row.ExpectedUnits, row.ReportedUnits, row.RawJSON, time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// ListWards returns the wards of one election.
func (s *Store) ListWards(ctx context.Context, electionID string) ([]WardRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE election_id = ?
		ORDER BY lga_name, name
	`, wardCols, s.Name, WardsTable)
	rows, err := s.Query(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WardRow
	for rows.Next() {
		var row WardRow
		if err := rows.Scan(
			&row.ID, &row.LGADbID, &row.ElectionID, &row.Name, &row.Code, &row.WardID, &row.LGAName,
			&row.ExpectedUnits, &row.ReportedUnits, &row.RawJSON, &row.LastUpdated,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListWardsByLGAName returns the wards across all elections of one
// administrative area.
func (s *Store) ListWardsByLGAName(ctx context.Context, lgaName string) ([]WardRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE lga_name = ?
		ORDER BY name
	`, wardCols, s.Name, WardsTable)
	rows, err := s.Query(ctx, query, lgaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WardRow
	for rows.Next() {
		var row WardRow
		if err := rows.Scan(
			&row.ID, &row.LGADbID, &row.ElectionID, &row.Name, &row.Code, &row.WardID, &row.LGAName,
			&row.ExpectedUnits, &row.ReportedUnits, &row.RawJSON, &row.LastUpdated,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListAllWards returns every ward in the store, area then ward order.
func (s *Store) ListAllWards(ctx context.Context) ([]WardRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		ORDER BY lga_name, name
	`, wardCols, s.Name, WardsTable)
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WardRow
	for rows.Next() {
		var row WardRow
		if err := rows.Scan(
			&row.ID, &row.LGADbID, &row.ElectionID, &row.Name, &row.Code, &row.WardID, &row.LGAName,
			&row.ExpectedUnits, &row.ReportedUnits, &row.RawJSON, &row.LastUpdated,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetWard returns the latest row for one ward of one election.
func (s *Store) GetWard(ctx context.Context, id, electionID string) (*WardRow, error) {
	var row WardRow
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE id = ? AND election_id = ?
		LIMIT 1
	`, wardCols, s.Name, WardsTable)
	err := s.QueryRow(ctx, query, id, electionID).Scan(
		&row.ID, &row.LGADbID, &row.ElectionID, &row.Name, &row.Code, &row.WardID, &row.LGAName,
		&row.ExpectedUnits, &row.ReportedUnits, &row.RawJSON, &row.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateWardRollup overwrites one ward's unit counts after its units have
// been reconciled.
func (s *Store) UpdateWardRollup(ctx context.Context, id, electionID string, expected, reported uint32) error {
	row, err := s.GetWard(ctx, id, electionID)
	if err != nil {
		return fmt.Errorf("lookup ward %s: %w", id, err)
	}
	row.ExpectedUnits = expected
	row.ReportedUnits = reported
	return s.UpsertWard(ctx, row)
}

// GetLGAByName returns the area row matching a name within one election.
func (s *Store) GetLGAByName(ctx context.Context, lgaName, electionID string) (*LGARow, error) {
	var row LGARow
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE name = ? AND election_id = ?
		LIMIT 1
	`, lgaCols, s.Name, LGAsTable)
	err := s.QueryRow(ctx, query, lgaName, electionID).Scan(
		&row.ID, &row.ElectionID, &row.Name, &row.Code, &row.LGAID, &row.StateName, &row.TotalWards,
		&row.ExpectedUnits, &row.ReportedUnits, &row.RawJSON, &row.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateLGARollup overwrites one area's unit counts after all its wards have
// been reconciled.
func (s *Store) UpdateLGARollup(ctx context.Context, lgaName, electionID string, expected, reported uint32) error {
	row, err := s.GetLGAByName(ctx, lgaName, electionID)
	if err != nil {
		return fmt.Errorf("lookup lga %s: %w", lgaName, err)
	}
	row.ExpectedUnits = expected
	row.ReportedUnits = reported
	return s.UpsertLGA(ctx, row)
}

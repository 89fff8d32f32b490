package db

import (
	"context"
	"fmt"
	"time"
)

const electionCols = `id, full_name, category, election_date, state_name, domain_name,
	expected_units, reported_units, percent_complete, raw_json, first_seen, last_updated`

// UpsertElection writes the election metadata row. The first write fixes
// first_seen; later writes carry it forward so only last_updated moves.
func (s *Store) UpsertElection(ctx context.Context, row *ElectionRow) error {
	now := time.Now().UTC()
	existing, err := s.GetElection(ctx, row.ID)
	if err != nil && !IsNoRows(err) {
		return fmt.Errorf("lookup election %s: %w", row.ID, err)
	}
	firstSeen := now
	if existing != nil {
		firstSeen = existing.FirstSeen
		// Metadata refreshes must not clobber rollups written by a
		// previous stats pass.
		if row.ExpectedUnits == 0 && row.ReportedUnits == 0 {
			row.ExpectedUnits = existing.ExpectedUnits
			row.ReportedUnits = existing.ReportedUnits
			row.PercentDone = existing.PercentDone
		}
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, ElectionsTable, electionCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(
		row.ID, row.FullName, row.Category, row.ElectionDate, row.StateName, row.DomainName,
		row.ExpectedUnits, row.ReportedUnits, row.PercentDone, row.RawJSON, firstSeen, now,
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// UpdateElectionStats writes the rollup counters for one election, keeping
// every other column from the stored row.
func (s *Store) UpdateElectionStats(ctx context.Context, id string, expected, reported uint32, pct float64) error {
	row, err := s.GetElection(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup election %s: %w", id, err)
	}
	row.ExpectedUnits = expected
	row.ReportedUnits = reported
	row.PercentDone = pct

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, ElectionsTable, electionCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(
		row.ID, row.FullName, row.Category, row.ElectionDate, row.StateName, row.DomainName,
		row.ExpectedUnits, row.ReportedUnits, row.PercentDone, row.RawJSON, row.FirstSeen, time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// GetElection returns the latest (deduped) row for the given id.
func (s *Store) GetElection(ctx context.Context, id string) (*ElectionRow, error) {
	var row ElectionRow
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE id = ?
		LIMIT 1
	`, electionCols, s.Name, ElectionsTable)
	err := s.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.FullName, &row.Category, &row.ElectionDate, &row.StateName, &row.DomainName,
		&row.ExpectedUnits, &row.ReportedUnits, &row.PercentDone, &row.RawJSON, &row.FirstSeen, &row.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListElections returns all elections, optionally filtered by category,
// ordered by category then jurisdiction name.
func (s *Store) ListElections(ctx context.Context, category string) ([]ElectionRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
	`, electionCols, s.Name, ElectionsTable)
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, domain_name`

	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ElectionRow
	for rows.Next() {
		var row ElectionRow
		if err := rows.Scan(
			&row.ID, &row.FullName, &row.Category, &row.ElectionDate, &row.StateName, &row.DomainName,
			&row.ExpectedUnits, &row.ReportedUnits, &row.PercentDone, &row.RawJSON, &row.FirstSeen, &row.LastUpdated,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CategoryTotals sums the rollup counters across one category's elections.
func (s *Store) CategoryTotals(ctx context.Context, category string) (expected, reported uint64, err error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(expected_units), 0), COALESCE(SUM(reported_units), 0)
		FROM "%s"."%s" FINAL
		WHERE category = ?
	`, s.Name, ElectionsTable)
	err = s.QueryRow(ctx, query, category).Scan(&expected, &reported)
	return expected, reported, err
}

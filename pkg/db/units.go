package db

import (
	"context"
	"fmt"
	"time"
)

const unitCols = `id, election_id, ward_id, lga_name, ward_name, name, code,
	has_result, document_url, document_size, result_uploaded_at, raw_json, last_updated`

// UpsertPollingUnit replaces the polling-unit row. has_result must already be
// derived from document presence by the caller; an empty document URL with
// has_result set would break the §3 invariant and is rejected here.
func (s *Store) UpsertPollingUnit(ctx context.Context, row *PollingUnitRow) error {
	if row.HasResult && row.DocumentURL == "" {
		return fmt.Errorf("polling unit %s: has_result without document URL", row.ID)
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, s.Name, PollingUnitsTable, unitCols)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	hasResult := uint8(0)
	if row.HasResult {
		hasResult = 1
	}
	if err := batch.Append(
		row.ID, row.ElectionID, row.WardID, row.LGAName, row.WardName, row.Name, row.Code,
		hasResult, row.DocumentURL, row.DocumentSize, row.ResultUploadedAt, row.RawJSON, time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

func scanUnit(scan func(dest ...any) error) (PollingUnitRow, error) {
	var row PollingUnitRow
	var hasResult uint8
	err := scan(
		&row.ID, &row.ElectionID, &row.WardID, &row.LGAName, &row.WardName, &row.Name, &row.Code,
		&hasResult, &row.DocumentURL, &row.DocumentSize, &row.ResultUploadedAt, &row.RawJSON, &row.LastUpdated,
	)
	row.HasResult = hasResult == 1
	return row, err
}

// ListUnitsWithResults returns units that have uploaded a result document,
// optionally restricted to one category, newest uploads first.
func (s *Store) ListUnitsWithResults(ctx context.Context, category string, limit int) ([]PollingUnitRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE has_result = 1
	`, unitCols, s.Name, PollingUnitsTable)
	var args []any
	if category != "" {
		query += fmt.Sprintf(` AND election_id IN (
			SELECT id FROM "%s"."%s" FINAL WHERE category = ?
		)`, s.Name, ElectionsTable)
		args = append(args, category)
	}
	query += ` ORDER BY result_uploaded_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PollingUnitRow
	for rows.Next() {
		row, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UnitCounts returns total units and units with results across the store.
func (s *Store) UnitCounts(ctx context.Context) (total, withResults uint64, err error) {
	query := fmt.Sprintf(`
		SELECT COUNT(), countIf(has_result = 1)
		FROM "%s"."%s" FINAL
	`, s.Name, PollingUnitsTable)
	err = s.QueryRow(ctx, query).Scan(&total, &withResults)
	return total, withResults, err
}

// PendingExtractions returns up to limit units that have a result document
// but no extraction record yet, newest uploads first. A persisted failed or
// error record counts as attempted and keeps the unit out of this list.
func (s *Store) PendingExtractions(ctx context.Context, limit int) ([]PendingUnit, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.code, p.name, p.ward_name, p.lga_name, p.election_id, p.document_url
		FROM "%s"."%s" FINAL AS p
		LEFT ANTI JOIN "%s"."%s" AS o ON p.id = o.unit_id
		WHERE p.has_result = 1 AND p.document_url != ''
		ORDER BY p.result_uploaded_at DESC
		LIMIT %d
	`, s.Name, PollingUnitsTable, s.Name, ExtractionsTable, limit)

	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingUnit
	for rows.Next() {
		var u PendingUnit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.WardName, &u.LGAName, &u.ElectionID, &u.DocumentURL); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PendingExtractionCount counts units awaiting a first extraction attempt.
func (s *Store) PendingExtractionCount(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT()
		FROM "%s"."%s" FINAL AS p
		LEFT ANTI JOIN "%s"."%s" AS o ON p.id = o.unit_id
		WHERE p.has_result = 1 AND p.document_url != ''
	`, s.Name, PollingUnitsTable, s.Name, ExtractionsTable)
	var count uint64
	err := s.QueryRow(ctx, query).Scan(&count)
	return count, err
}

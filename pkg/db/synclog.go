package db

import (
	"context"
	"fmt"
	"time"
)

// AppendSyncLog appends one audit record. Sync-log rows are never mutated.
func (s *Store) AppendSyncLog(ctx context.Context, row *SyncLogRow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s"
		(timestamp, category, expected_units, reported_units, percent, breakdown) VALUES`,
		s.Name, SyncLogTable)
	batch, err := s.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	ts := row.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	breakdown := row.BreakdownJSON
	if breakdown == "" {
		breakdown = "{}"
	}
	if err := batch.Append(ts, row.Category, row.ExpectedUnits, row.ReportedUnits, row.Percent, breakdown); err != nil {
		_ = batch.Abort()
		return err
	}
	return batch.Send()
}

// ListSyncLog returns recent audit records, newest first.
func (s *Store) ListSyncLog(ctx context.Context, limit int) ([]SyncLogRow, error) {
	query := fmt.Sprintf(`
		SELECT timestamp, category, expected_units, reported_units, percent, breakdown
		FROM "%s"."%s"
		ORDER BY timestamp DESC
	`, s.Name, SyncLogTable)
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncLogRow
	for rows.Next() {
		var row SyncLogRow
		if err := rows.Scan(&row.Timestamp, &row.Category, &row.ExpectedUnits, &row.ReportedUnits, &row.Percent, &row.BreakdownJSON); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

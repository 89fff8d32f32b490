package db

import (
	"context"
	"fmt"

	"github.com/civichq/resultwatch/pkg/utils"
)

// Table names.
const (
	ElectionsTable    = "elections"
	LGAsTable         = "lgas"
	WardsTable        = "wards"
	PollingUnitsTable = "polling_units"
	ExtractionsTable  = "extraction_records"
	SyncLogTable      = "sync_log"
	CandidatesTable   = "candidates"
	AreaCouncilsTable = "area_councils"
)

// Store owns the reconciled election hierarchy, extraction results and the
// append-only sync log. Hierarchy tables use ReplacingMergeTree so re-running
// a sync phase with identical upstream data replaces rows instead of
// duplicating them.
type Store struct {
	Client
	Name string
}

// NewStore wraps an open client. The database name comes from RESULTWATCH_DB;
// callers run InitializeDB before first use.
func NewStore(client Client) *Store {
	return &Store{
		Client: client,
		Name:   SanitizeName(utils.Env("RESULTWATCH_DB", "resultwatch")),
	}
}

// InitializeDB creates the database and the six core tables plus the roster
// reference tables.
func (s *Store) InitializeDB(ctx context.Context) error {
	if err := s.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, s.Name)); err != nil {
		return fmt.Errorf("create database %s: %w", s.Name, err)
	}

	ddl := []struct {
		table string
		query string
	}{
		{ElectionsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				id String,
				full_name String,
				category LowCardinality(String),
				election_date String,
				state_name String,
				domain_name String,
				expected_units UInt32,
				reported_units UInt32,
				percent_complete Float64,
				raw_json String,
				first_seen DateTime,
				last_updated DateTime
			) ENGINE = %s(last_updated)
			ORDER BY (id)
		`, s.Name, ElectionsTable, ReplacingMergeTree)},
		{LGAsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				id String,
				election_id String,
				name String,
				code String,
				lga_id UInt32,
				state_name String,
				total_wards UInt32,
				expected_units UInt32,
				reported_units UInt32,
				raw_json String,
				last_updated DateTime
			) ENGINE = %s(last_updated)
			ORDER BY (id)
		`, s.Name, LGAsTable, ReplacingMergeTree)},
		{WardsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				id String,
				lga_db_id String,
				election_id String,
				name String,
				code String,
				ward_id UInt32,
				lga_name String,
				expected_units UInt32,
				reported_units UInt32,
				raw_json String,
				last_updated DateTime
			) ENGINE = %s(last_updated)
			ORDER BY (id, election_id)
		`, s.Name, WardsTable, ReplacingMergeTree)},
		{PollingUnitsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				id String,
				election_id String,
				ward_id String,
				lga_name String,
				ward_name String,
				name String,
				code String,
				has_result UInt8,
				document_url String,
				document_size UInt64,
				result_uploaded_at String,
				raw_json String,
				last_updated DateTime
			) ENGINE = %s(last_updated)
			ORDER BY (id)
		`, s.Name, PollingUnitsTable, ReplacingMergeTree)},
		{ExtractionsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				unit_id String,
				unit_code String,
				unit_name String,
				ward_name String,
				lga_name String,
				election_id String,
				registered_voters UInt32,
				accredited_voters UInt32,
				total_valid_votes UInt32,
				total_rejected_votes UInt32,
				party_votes String,
				confidence Float64,
				raw_text String,
				document_url String,
				status LowCardinality(String),
				processed_at DateTime
			) ENGINE = %s(processed_at)
			ORDER BY (unit_id)
		`, s.Name, ExtractionsTable, ReplacingMergeTree)},
		{SyncLogTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				timestamp DateTime,
				category LowCardinality(String),
				expected_units UInt32,
				reported_units UInt32,
				percent Float64,
				breakdown String
			) ENGINE = %s
			ORDER BY (timestamp, category)
		`, s.Name, SyncLogTable, MergeTree)},
		{CandidatesTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				area_council String,
				candidate_name String,
				party_full String,
				party_abbrev String,
				status String,
				gender String,
				notes String,
				position_type LowCardinality(String)
			) ENGINE = %s
			ORDER BY (area_council, party_abbrev)
		`, s.Name, CandidatesTable, MergeTree)},
		{AreaCouncilsTable, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				name String,
				total_wards UInt32,
				polling_units UInt32,
				registered_voters String,
				chairmanship_candidates UInt32,
				councillorship_positions UInt32
			) ENGINE = %s
			ORDER BY (name)
		`, s.Name, AreaCouncilsTable, ReplacingMergeTree)},
	}

	for _, d := range ddl {
		if err := s.Exec(ctx, d.query); err != nil {
			return fmt.Errorf("create %s: %w", d.table, err)
		}
	}
	return nil
}

package db

import "time"

// ElectionRow is one reconciled election with its rollup counters.
type ElectionRow struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Category      string    `json:"category"`
	ElectionDate  string    `json:"election_date"`
	StateName     string    `json:"state_name"`
	DomainName    string    `json:"domain_name"`
	ExpectedUnits uint32    `json:"expected_units"`
	ReportedUnits uint32    `json:"reported_units"`
	PercentDone   float64   `json:"percent_complete"`
	RawJSON       string    `json:"-"`
	FirstSeen     time.Time `json:"first_seen"`
	LastUpdated   time.Time `json:"last_updated"`
}

// LGARow is one administrative area ("LGA") owned by an election.
type LGARow struct {
	ID            string    `json:"id"`
	ElectionID    string    `json:"election_id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	LGAID         uint32    `json:"lga_id"`
	StateName     string    `json:"state_name"`
	TotalWards    uint32    `json:"total_wards"`
	ExpectedUnits uint32    `json:"expected_units"`
	ReportedUnits uint32    `json:"reported_units"`
	RawJSON       string    `json:"-"`
	LastUpdated   time.Time `json:"last_updated"`
}

// WardRow is one ward inside an administrative area.
type WardRow struct {
	ID            string    `json:"id"`
	LGADbID       string    `json:"lga_db_id"`
	ElectionID    string    `json:"election_id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	WardID        uint32    `json:"ward_id"`
	LGAName       string    `json:"lga_name"`
	ExpectedUnits uint32    `json:"expected_units"`
	ReportedUnits uint32    `json:"reported_units"`
	RawJSON       string    `json:"-"`
	LastUpdated   time.Time `json:"last_updated"`
}

// PollingUnitRow is one polling unit with its result-document reference.
type PollingUnitRow struct {
	ID               string    `json:"id"`
	ElectionID       string    `json:"election_id"`
	WardID           string    `json:"ward_id"`
	LGAName          string    `json:"lga_name"`
	WardName         string    `json:"ward_name"`
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	HasResult        bool      `json:"has_result"`
	DocumentURL      string    `json:"document_url"`
	DocumentSize     uint64    `json:"document_size"`
	ResultUploadedAt string    `json:"result_uploaded_at"`
	RawJSON          string    `json:"-"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Extraction statuses.
const (
	ExtractionPending       = "pending"
	ExtractionSuccess       = "success"
	ExtractionLowConfidence = "low_confidence"
	ExtractionFailed        = "failed"
	ExtractionError         = "error"
)

// ExtractionRow is the recognized-but-unverified vote data for one polling
// unit, one row per unit.
type ExtractionRow struct {
	UnitID             string    `json:"unit_id"`
	UnitCode           string    `json:"unit_code"`
	UnitName           string    `json:"unit_name"`
	WardName           string    `json:"ward_name"`
	LGAName            string    `json:"lga_name"`
	ElectionID         string    `json:"election_id"`
	RegisteredVoters   uint32    `json:"registered_voters"`
	AccreditedVoters   uint32    `json:"accredited_voters"`
	TotalValidVotes    uint32    `json:"total_valid_votes"`
	TotalRejectedVotes uint32    `json:"total_rejected_votes"`
	PartyVotesJSON     string    `json:"party_votes"`
	Confidence         float64   `json:"confidence"`
	RawText            string    `json:"raw_text"`
	DocumentURL        string    `json:"document_url"`
	Status             string    `json:"status"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// SyncLogRow is one append-only audit record per category per cycle.
type SyncLogRow struct {
	Timestamp     time.Time `json:"timestamp"`
	Category      string    `json:"category"`
	ExpectedUnits uint32    `json:"expected_units"`
	ReportedUnits uint32    `json:"reported_units"`
	Percent       float64   `json:"percent"`
	BreakdownJSON string    `json:"breakdown"`
}

// CandidateRow is one roster entry imported from the election workbook.
type CandidateRow struct {
	AreaCouncil   string `json:"area_council"`
	CandidateName string `json:"candidate_name"`
	PartyFull     string `json:"party_full"`
	PartyAbbrev   string `json:"party_abbrev"`
	Status        string `json:"status"`
	Gender        string `json:"gender"`
	Notes         string `json:"notes"`
	PositionType  string `json:"position_type"`
}

// AreaCouncilRow is static reference data about one area council.
type AreaCouncilRow struct {
	Name                    string `json:"name"`
	TotalWards              uint32 `json:"total_wards"`
	PollingUnits            uint32 `json:"polling_units"`
	RegisteredVoters        string `json:"registered_voters"`
	ChairmanshipCandidates  uint32 `json:"chairmanship_candidates"`
	CouncillorshipPositions uint32 `json:"councillorship_positions"`
}

// PendingUnit is one polling unit awaiting extraction.
type PendingUnit struct {
	ID          string
	Code        string
	Name        string
	WardName    string
	LGAName     string
	ElectionID  string
	DocumentURL string
}

package irev

import "encoding/json"

// Category is one of the two fixed contest types tracked independently.
type Category string

const (
	Chairman   Category = "CHAIRMAN"
	Councillor Category = "COUNCILLOR"
)

// Categories lists both contest types in sync order.
func Categories() []Category { return []Category{Chairman, Councillor} }

// envelope is the common {data: ...} wrapper on upstream responses.
type envelope[T any] struct {
	Data T `json:"data"`
}

// Election is one contest as listed by the upstream elections endpoint.
type Election struct {
	ID           string          `json:"_id"`
	FullName     string          `json:"full_name"`
	ElectionDate string          `json:"election_date"`
	Domain       Domain          `json:"domain"`
	State        State           `json:"state"`
	Raw          json.RawMessage `json:"-"`
}

type Domain struct {
	Name string `json:"name"`
}

type State struct {
	StateID int `json:"state_id"`
}

// Name prefers the jurisdiction domain name over the verbose full name.
func (e Election) Name() string {
	if e.Domain.Name != "" {
		return e.Domain.Name
	}
	return e.FullName
}

// ResultStats is the aggregate progress snapshot for one election.
type ResultStats struct {
	Expected  int `json:"expected"`
	PUs       int `json:"pus"`
	Documents int `json:"documents"`
}

// ExpectedUnits falls back to the pus field when expected is absent.
func (s ResultStats) ExpectedUnits() int {
	if s.Expected > 0 {
		return s.Expected
	}
	return s.PUs
}

// LGAEntry is one administrative area with its embedded ward list.
type LGAEntry struct {
	ID    string          `json:"_id"`
	LGA   LGA             `json:"lga"`
	Wards []Ward          `json:"wards"`
	Raw   json.RawMessage `json:"-"`
}

type LGA struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	LGAID int    `json:"lga_id"`
}

type Ward struct {
	ID     string          `json:"_id"`
	Name   string          `json:"name"`
	Code   string          `json:"code"`
	WardID int             `json:"ward_id"`
	Raw    json.RawMessage `json:"-"`
}

// Document is the scanned result-sheet reference carried by a polling unit.
type Document struct {
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

// PollingUnit is one unit as returned by the per-ward listing. The raw
// payload is preserved verbatim because it may carry structured vote data
// (total_registered, total_accredited, valid_votes, invalid_votes, votes).
type PollingUnit struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	PUCode   string          `json:"pu_code"`
	Document *Document       `json:"document"`
	Raw      json.RawMessage `json:"-"`
}

// HasResult reports whether the unit's source payload carries a non-empty
// document URL. This is the only way has_result is ever derived.
func (p PollingUnit) HasResult() bool {
	return p.Document != nil && p.Document.URL != ""
}

// StructuredResult is the optional vote payload embedded in a polling unit's
// raw JSON.
type StructuredResult struct {
	TotalRegistered int             `json:"total_registered"`
	TotalAccredited int             `json:"total_accredited"`
	ValidVotes      int             `json:"valid_votes"`
	InvalidVotes    int             `json:"invalid_votes"`
	Votes           json.RawMessage `json:"votes"`
}

// PartyVote is one row of the structured votes list.
type PartyVote struct {
	PartyCode string `json:"party_code"`
	Vote      int    `json:"vote"`
}

// VoteList decodes the votes payload, which upstream serves either as a JSON
// array or as a JSON-encoded string containing one.
func (r StructuredResult) VoteList() []PartyVote {
	if len(r.Votes) == 0 {
		return nil
	}
	var list []PartyVote
	if err := json.Unmarshal(r.Votes, &list); err == nil {
		return list
	}
	var nested string
	if err := json.Unmarshal(r.Votes, &nested); err == nil {
		if err := json.Unmarshal([]byte(nested), &list); err == nil {
			return list
		}
	}
	return nil
}

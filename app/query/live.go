package query

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
)

const maxUnitDetailRows = 200

type unitResult struct {
	Code          string         `json:"pu_code"`
	Name          string         `json:"pu_name"`
	WardName      string         `json:"ward_name"`
	LGAName       string         `json:"lga_name"`
	Category      string         `json:"category"`
	DomainName    string         `json:"domain_name"`
	Registered    int            `json:"registered_voters"`
	Accredited    int            `json:"accredited_voters"`
	ValidVotes    int            `json:"total_valid_votes"`
	RejectedVotes int            `json:"total_rejected_votes"`
	PartyVotes    map[string]int `json:"party_votes"`
}

type partyStanding struct {
	Party string `json:"party"`
	Votes int    `json:"votes"`
}

type areaResult struct {
	Name       string         `json:"name"`
	LGAName    string         `json:"lga_name"`
	UnitCount  int            `json:"pu_count"`
	Registered int            `json:"total_registered"`
	Accredited int            `json:"total_accredited"`
	ValidVotes int            `json:"total_valid"`
	PartyVotes map[string]int `json:"party_votes"`

	LeadingParty string          `json:"leading_party"`
	LeadingVotes int             `json:"leading_votes"`
	TurnoutPct   float64         `json:"turnout_pct"`
	Top3         []partyStanding `json:"top3,omitempty"`
}

// partyVotes extracts positive per-party counts from a unit's structured
// result, keyed by upper-cased party code.
func partyVotes(sr irev.StructuredResult) map[string]int {
	out := map[string]int{}
	for _, v := range sr.VoteList() {
		code := strings.ToUpper(v.PartyCode)
		if code != "" && v.Vote > 0 {
			out[code] = v.Vote
		}
	}
	return out
}

func leadingOf(votes map[string]int) (string, int) {
	party, best := "N/A", 0
	for p, v := range votes {
		if v > best || (v == best && best > 0 && p < party) {
			party, best = p, v
		}
	}
	return party, best
}

func sortedStandings(totals map[string]int) []partyStanding {
	out := make([]partyStanding, 0, len(totals))
	for p, v := range totals {
		if v > 0 {
			out = append(out, partyStanding{Party: p, Votes: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].Party < out[j].Party
	})
	return out
}

// handleLiveResults reports vote counts taken straight from the structured
// upstream payloads, aggregated at unit, ward and area level. Supports
// ?type=CHAIRMAN|COUNCILLOR; anything else means both contests.
func (a *App) handleLiveResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := strings.ToUpper(r.URL.Query().Get("type"))
	if filter != string(irev.Chairman) && filter != string(irev.Councillor) {
		filter = ""
	}

	elections, err := a.Store.ListElections(ctx, "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	electionByID := make(map[string]db.ElectionRow, len(elections))
	for _, e := range elections {
		electionByID[e.ID] = e
	}

	units, err := a.Store.ListUnitsWithResults(ctx, filter, 0)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var (
		results                         []unitResult
		partyTotals                     = map[string]int{}
		registered, accredited          int
		valid, rejected, unitsWithVotes int
	)
	for _, u := range units {
		var sr irev.StructuredResult
		if u.RawJSON == "" || json.Unmarshal([]byte(u.RawJSON), &sr) != nil {
			continue
		}
		votes := partyVotes(sr)
		if len(votes) > 0 || sr.ValidVotes > 0 {
			unitsWithVotes++
		}
		registered += sr.TotalRegistered
		accredited += sr.TotalAccredited
		valid += sr.ValidVotes
		rejected += sr.InvalidVotes
		for p, v := range votes {
			partyTotals[p] += v
		}

		el := electionByID[u.ElectionID]
		category := el.Category
		if category == "" {
			category = string(irev.Chairman)
		}
		results = append(results, unitResult{
			Code:          u.Code,
			Name:          u.Name,
			WardName:      u.WardName,
			LGAName:       u.LGAName,
			Category:      category,
			DomainName:    el.DomainName,
			Registered:    sr.TotalRegistered,
			Accredited:    sr.TotalAccredited,
			ValidVotes:    sr.ValidVotes,
			RejectedVotes: sr.InvalidVotes,
			PartyVotes:    votes,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].LGAName != results[j].LGAName {
			return results[i].LGAName < results[j].LGAName
		}
		if results[i].WardName != results[j].WardName {
			return results[i].WardName < results[j].WardName
		}
		return results[i].Code < results[j].Code
	})

	wardResults := aggregateAreas(results, func(u unitResult) (string, string) {
		return u.LGAName + "|" + u.WardName, u.WardName
	}, false)
	lgaResults := aggregateAreas(results, func(u unitResult) (string, string) {
		return u.LGAName, u.LGAName
	}, true)

	totalUnits, withResults, err := a.Store.UnitCounts(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}

	detail := results
	if len(detail) > maxUnitDetailRows {
		detail = detail[:maxUnitDetailRows]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pu_results":      detail,
		"party_standings": sortedStandings(partyTotals),
		"ward_results":    wardResults,
		"lga_results":     lgaResults,
		"summary": map[string]any{
			"total_registered": registered,
			"total_accredited": accredited,
			"total_valid":      valid,
			"total_rejected":   rejected,
			"pus_with_votes":   unitsWithVotes,
			"pus_with_results": withResults,
			"total_pus":        totalUnits,
			"coverage_pct":     percent(withResults, totalUnits),
			"data_source":      "structured upstream payloads",
		},
	})
}

// aggregateAreas rolls unit results up by the given key, attaching the
// leading party and turnout, plus the top-3 standings when asked.
func aggregateAreas(results []unitResult, key func(unitResult) (id, name string), top3 bool) []areaResult {
	agg := map[string]*areaResult{}
	var order []string
	for _, u := range results {
		id, name := key(u)
		area, ok := agg[id]
		if !ok {
			area = &areaResult{Name: name, LGAName: u.LGAName, PartyVotes: map[string]int{}}
			agg[id] = area
			order = append(order, id)
		}
		area.UnitCount++
		area.Registered += u.Registered
		area.Accredited += u.Accredited
		area.ValidVotes += u.ValidVotes
		for p, v := range u.PartyVotes {
			area.PartyVotes[p] += v
		}
	}

	out := make([]areaResult, 0, len(order))
	for _, id := range order {
		area := agg[id]
		area.LeadingParty, area.LeadingVotes = leadingOf(area.PartyVotes)
		if area.Registered > 0 {
			area.TurnoutPct = percent(uint64(area.Accredited), uint64(area.Registered))
		}
		if top3 {
			standings := sortedStandings(area.PartyVotes)
			if len(standings) > 3 {
				standings = standings[:3]
			}
			area.Top3 = standings
		}
		out = append(out, *area)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LGAName != out[j].LGAName {
			return out[i].LGAName < out[j].LGAName
		}
		return out[i].Name < out[j].Name
	})
	return out
}

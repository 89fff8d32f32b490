package query

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/civichq/resultwatch/pkg/irev"
)

// Area council names in canonical display order, and the mapping between the
// upstream administrative-area spelling and the council name used in the
// candidate roster.
var (
	councilOrder = []string{"AMAC", "Abaji", "Bwari", "Gwagwalada", "Kuje", "Kwali"}

	lgaToCouncil = map[string]string{
		"MUNICIPAL":  "AMAC",
		"ABAJI":      "Abaji",
		"BWARI":      "Bwari",
		"GWAGWALADA": "Gwagwalada",
		"KUJE":       "Kuje",
		"KWALI":      "Kwali",
	}

	councilToLGA = func() map[string]string {
		m := make(map[string]string, len(lgaToCouncil))
		for lga, council := range lgaToCouncil {
			m[strings.ToUpper(council)] = lga
		}
		return m
	}()
)

func councilName(lgaName string) string {
	if council, ok := lgaToCouncil[lgaName]; ok {
		return council
	}
	return lgaName
}

type lgaTally struct {
	units      int
	registered int
	accredited int
	valid      int
	rejected   int
	votes      map[string]int
}

func newLGATally() *lgaTally { return &lgaTally{votes: map[string]int{}} }

func (t *lgaTally) add(sr irev.StructuredResult) {
	t.units++
	t.registered += sr.TotalRegistered
	t.accredited += sr.TotalAccredited
	t.valid += sr.ValidVotes
	t.rejected += sr.InvalidVotes
	for p, v := range partyVotes(sr) {
		t.votes[p] += v
	}
}

type candidateResult struct {
	CandidateName string  `json:"candidate_name"`
	Party         string  `json:"party"`
	PartyFull     string  `json:"party_full"`
	Votes         int     `json:"votes"`
	VotePct       float64 `json:"vote_pct"`
	Status        string  `json:"status"`
	Gender        string  `json:"gender"`
	Notes         string  `json:"notes"`
}

// handleChairmanshipRace maps aggregated per-area vote counts onto the
// chairmanship roster, one race per area council.
func (a *App) handleChairmanshipRace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidates, err := a.Store.ListCandidates(ctx, "", "Chairmanship")
	if err != nil {
		a.writeError(w, err)
		return
	}
	units, err := a.Store.ListUnitsWithResults(ctx, "", 0)
	if err != nil {
		a.writeError(w, err)
		return
	}

	tallies := map[string]*lgaTally{}
	for _, u := range units {
		var sr irev.StructuredResult
		if u.RawJSON == "" || json.Unmarshal([]byte(u.RawJSON), &sr) != nil {
			continue
		}
		t, ok := tallies[u.LGAName]
		if !ok {
			t = newLGATally()
			tallies[u.LGAName] = t
		}
		t.add(sr)
	}

	races := make([]map[string]any, 0, len(councilOrder))
	councilsWithData := 0
	for _, council := range councilOrder {
		lgaKey, ok := councilToLGA[strings.ToUpper(council)]
		if !ok {
			lgaKey = strings.ToUpper(council)
		}
		t := tallies[lgaKey]
		if t == nil {
			t = newLGATally()
		}

		var results []candidateResult
		for _, c := range candidates {
			if !strings.EqualFold(c.AreaCouncil, council) {
				continue
			}
			party := strings.ToUpper(c.PartyAbbrev)
			votes := t.votes[party]
			var pct float64
			if t.valid > 0 {
				pct = percent(uint64(votes), uint64(t.valid))
			}
			results = append(results, candidateResult{
				CandidateName: c.CandidateName,
				Party:         party,
				PartyFull:     c.PartyFull,
				Votes:         votes,
				VotePct:       pct,
				Status:        c.Status,
				Gender:        c.Gender,
				Notes:         c.Notes,
			})
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].Votes > results[j].Votes })

		margin := 0
		if len(results) >= 2 && results[0].Votes > 0 {
			margin = results[0].Votes - results[1].Votes
		}
		var winner any
		if len(results) > 0 && results[0].Votes > 0 {
			winner = results[0]
		}
		var turnout float64
		if t.registered > 0 {
			turnout = percent(uint64(t.accredited), uint64(t.registered))
		}
		if t.valid > 0 {
			councilsWithData++
		}

		races = append(races, map[string]any{
			"area_council":      council,
			"candidates":        results,
			"total_pus_counted": t.units,
			"total_valid_votes": t.valid,
			"total_registered":  t.registered,
			"total_accredited":  t.accredited,
			"turnout_pct":       turnout,
			"margin":            margin,
			"winner":            winner,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"races":              races,
		"total_councils":     len(races),
		"councils_with_data": councilsWithData,
	})
}

type wardRace struct {
	WardName      string        `json:"ward_name"`
	LGAName       string        `json:"lga_name"`
	AreaCouncil   string        `json:"area_council"`
	Candidates    []partyResult `json:"candidates"`
	ExpectedUnits uint32        `json:"total_pus_in_ward"`
	UnitsCounted  int           `json:"pus_counted"`
	CoveragePct   float64       `json:"coverage_pct"`
	ValidVotes    int           `json:"total_valid_votes"`
	Registered    int           `json:"total_registered"`
	Accredited    int           `json:"total_accredited"`
	Rejected      int           `json:"total_rejected"`
	TurnoutPct    float64       `json:"turnout_pct"`
	Margin        int           `json:"margin"`
	LeadingParty  *string       `json:"leading_party"`
}

type partyResult struct {
	Party   string  `json:"party"`
	Votes   int     `json:"votes"`
	VotePct float64 `json:"vote_pct"`
}

type councilSummary struct {
	AreaCouncil   string         `json:"area_council"`
	TotalWards    int            `json:"total_wards"`
	WardsWithData int            `json:"wards_with_data"`
	TotalValid    int            `json:"total_valid"`
	ExpectedUnits uint64         `json:"total_pus"`
	UnitsCounted  int            `json:"pus_counted"`
	PartyLeads    map[string]int `json:"party_leads"`
}

// handleCouncillorshipRace reports ward-level standings. Each councillorship
// election covers exactly one ward, so races are keyed by election.
func (a *App) handleCouncillorshipRace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	elections, err := a.Store.ListElections(ctx, string(irev.Councillor))
	if err != nil {
		a.writeError(w, err)
		return
	}
	units, err := a.Store.ListUnitsWithResults(ctx, string(irev.Councillor), 0)
	if err != nil {
		a.writeError(w, err)
		return
	}

	expectedByElection := map[string]uint32{}
	domainByElection := map[string]string{}
	for _, e := range elections {
		expectedByElection[e.ID] = e.ExpectedUnits
		domainByElection[e.ID] = e.DomainName
	}

	type wardAcc struct {
		tally    lgaTally
		wardName string
		lgaName  string
	}
	wards := map[string]*wardAcc{}
	for _, u := range units {
		var sr irev.StructuredResult
		if u.RawJSON == "" || json.Unmarshal([]byte(u.RawJSON), &sr) != nil {
			continue
		}
		acc, ok := wards[u.ElectionID]
		if !ok {
			name := domainByElection[u.ElectionID]
			if name == "" {
				name = u.WardName
			}
			acc = &wardAcc{wardName: name, lgaName: u.LGAName}
			acc.tally.votes = map[string]int{}
			wards[u.ElectionID] = acc
		}
		acc.tally.add(sr)
	}

	var races []wardRace
	partyTotals := map[string]int{}
	for electionID, acc := range wards {
		standings := sortedStandings(acc.tally.votes)
		candidates := make([]partyResult, 0, len(standings))
		for _, s := range standings {
			var pct float64
			if acc.tally.valid > 0 {
				pct = percent(uint64(s.Votes), uint64(acc.tally.valid))
			}
			candidates = append(candidates, partyResult{Party: s.Party, Votes: s.Votes, VotePct: pct})
			partyTotals[s.Party] += s.Votes
		}
		if len(candidates) > 10 {
			candidates = candidates[:10]
		}

		margin := 0
		if len(candidates) >= 2 && candidates[0].Votes > 0 {
			margin = candidates[0].Votes - candidates[1].Votes
		}
		var leading *string
		if len(candidates) > 0 && candidates[0].Votes > 0 {
			leading = &candidates[0].Party
		}
		expected := expectedByElection[electionID]
		var coverage, turnout float64
		if expected > 0 {
			coverage = percent(uint64(acc.tally.units), uint64(expected))
		}
		if acc.tally.registered > 0 {
			turnout = percent(uint64(acc.tally.accredited), uint64(acc.tally.registered))
		}

		races = append(races, wardRace{
			WardName:      acc.wardName,
			LGAName:       acc.lgaName,
			AreaCouncil:   councilName(acc.lgaName),
			Candidates:    candidates,
			ExpectedUnits: expected,
			UnitsCounted:  acc.tally.units,
			CoveragePct:   coverage,
			ValidVotes:    acc.tally.valid,
			Registered:    acc.tally.registered,
			Accredited:    acc.tally.accredited,
			Rejected:      acc.tally.rejected,
			TurnoutPct:    turnout,
			Margin:        margin,
			LeadingParty:  leading,
		})
	}

	// Wards without any reported unit still appear as empty races.
	summaries := map[string]*councilSummary{}
	for _, race := range races {
		cs := summaryFor(summaries, race.AreaCouncil)
		cs.TotalWards++
		if race.ValidVotes > 0 {
			cs.WardsWithData++
		}
		cs.TotalValid += race.ValidVotes
		cs.ExpectedUnits += uint64(race.ExpectedUnits)
		cs.UnitsCounted += race.UnitsCounted
		if race.LeadingParty != nil {
			cs.PartyLeads[*race.LeadingParty]++
		}
	}
	for _, e := range elections {
		if _, ok := wards[e.ID]; ok {
			continue
		}
		lgaName := ""
		if wardRows, err := a.Store.ListWards(ctx, e.ID); err == nil && len(wardRows) > 0 {
			lgaName = wardRows[0].LGAName
		}
		council := councilName(lgaName)
		races = append(races, wardRace{
			WardName:      e.DomainName,
			LGAName:       lgaName,
			AreaCouncil:   council,
			Candidates:    []partyResult{},
			ExpectedUnits: e.ExpectedUnits,
		})
		if council != "" {
			cs := summaryFor(summaries, council)
			cs.TotalWards++
			cs.ExpectedUnits += uint64(e.ExpectedUnits)
		}
	}

	sort.Slice(races, func(i, j int) bool {
		if races[i].AreaCouncil != races[j].AreaCouncil {
			return races[i].AreaCouncil < races[j].AreaCouncil
		}
		return races[i].WardName < races[j].WardName
	})

	type overallStanding struct {
		Party        string `json:"party"`
		Votes        int    `json:"votes"`
		WardsLeading int    `json:"wards_leading"`
	}
	standings := make([]overallStanding, 0, len(partyTotals))
	for _, s := range sortedStandings(partyTotals) {
		standings = append(standings, overallStanding{Party: s.Party, Votes: s.Votes})
	}
	for _, race := range races {
		if race.LeadingParty == nil {
			continue
		}
		for i := range standings {
			if standings[i].Party == *race.LeadingParty {
				standings[i].WardsLeading++
				break
			}
		}
	}

	summaryList := make([]councilSummary, 0, len(summaries))
	for _, cs := range summaries {
		summaryList = append(summaryList, *cs)
	}
	sort.Slice(summaryList, func(i, j int) bool { return summaryList[i].AreaCouncil < summaryList[j].AreaCouncil })

	wardsWithData := 0
	for _, race := range races {
		if race.ValidVotes > 0 {
			wardsWithData++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"races":                      races,
		"party_standings":            standings,
		"council_summary":            summaryList,
		"total_wards":                len(races),
		"wards_with_data":            wardsWithData,
		"total_councillor_elections": len(elections),
	})
}

func summaryFor(summaries map[string]*councilSummary, council string) *councilSummary {
	cs, ok := summaries[council]
	if !ok {
		cs = &councilSummary{AreaCouncil: council, PartyLeads: map[string]int{}}
		summaries[council] = cs
	}
	return cs
}

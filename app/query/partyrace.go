package query

import (
	"net/http"
	"sort"

	"github.com/civichq/resultwatch/pkg/db"
)

var majorParties = map[string]struct{}{
	"APC": {}, "PDP": {}, "LP": {}, "NNPP": {}, "SDP": {}, "ADC": {},
}

type rosterCandidate struct {
	CandidateName string `json:"candidate_name"`
	Party         string `json:"party"`
	PartyFull     string `json:"party_full"`
	Gender        string `json:"gender"`
}

type partyStrength struct {
	Party           string  `json:"party"`
	PartyFull       string  `json:"party_full"`
	TotalCandidates int     `json:"total_candidates"`
	Chairmanship    int     `json:"chairmanship"`
	Councillorship  int     `json:"councillorship"`
	CouncilsPresent int     `json:"councils_present"`
	CouncilsTotal   int     `json:"councils_total"`
	CoveragePct     float64 `json:"coverage_pct"`
	Female          int     `json:"female"`
	Male            int     `json:"male"`
	StrengthIndex   int     `json:"strength_index"`
}

type genderSplit struct {
	Female int `json:"female"`
	Male   int `json:"male"`
	Total  int `json:"total"`
}

// handlePartyRace reports roster-level race analytics: party strength across
// councils, competitiveness per chairmanship race, and gender balance.
func (a *App) handlePartyRace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidates, err := a.Store.ListCandidates(ctx, "", "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	var active, chairmanship, councillorship []db.CandidateRow
	withdrawn := 0
	for _, c := range candidates {
		if isWithdrawn(c) {
			withdrawn++
			continue
		}
		active = append(active, c)
		if c.PositionType == "Chairmanship" {
			chairmanship = append(chairmanship, c)
		} else {
			councillorship = append(councillorship, c)
		}
	}

	chairByCouncil := map[string][]rosterCandidate{}
	for _, c := range chairmanship {
		chairByCouncil[c.AreaCouncil] = append(chairByCouncil[c.AreaCouncil], rosterCandidate{
			CandidateName: c.CandidateName,
			Party:         c.PartyAbbrev,
			PartyFull:     c.PartyFull,
			Gender:        c.Gender,
		})
	}

	type strengthAcc struct {
		partyStrength
		councils map[string]struct{}
	}
	byParty := map[string]*strengthAcc{}
	for _, c := range active {
		acc, ok := byParty[c.PartyAbbrev]
		if !ok {
			acc = &strengthAcc{
				partyStrength: partyStrength{Party: c.PartyAbbrev, PartyFull: c.PartyFull, CouncilsTotal: len(councilOrder)},
				councils:      map[string]struct{}{},
			}
			byParty[c.PartyAbbrev] = acc
		}
		acc.TotalCandidates++
		if c.PositionType == "Chairmanship" {
			acc.Chairmanship++
		} else {
			acc.Councillorship++
		}
		acc.councils[c.AreaCouncil] = struct{}{}
		if c.Gender == "F" {
			acc.Female++
		} else {
			acc.Male++
		}
	}

	standings := make([]partyStrength, 0, len(byParty))
	for _, acc := range byParty {
		acc.CouncilsPresent = len(acc.councils)
		acc.CoveragePct = percent(uint64(acc.CouncilsPresent), uint64(len(councilOrder)))
		// Chairman seats weigh more than councillor seats; spread across
		// councils earns a coverage bonus.
		acc.StrengthIndex = acc.Chairmanship*3 + acc.Councillorship + acc.CouncilsPresent*2
		standings = append(standings, acc.partyStrength)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].StrengthIndex != standings[j].StrengthIndex {
			return standings[i].StrengthIndex > standings[j].StrengthIndex
		}
		return standings[i].Party < standings[j].Party
	})

	type councilRace struct {
		AreaCouncil     string            `json:"area_council"`
		TotalCandidates int               `json:"total_candidates"`
		Candidates      []rosterCandidate `json:"candidates"`
		MajorParties    int               `json:"major_parties"`
		IsCompetitive   bool              `json:"is_competitive"`
		Parties         []string          `json:"parties"`
	}
	races := make([]councilRace, 0, len(chairByCouncil))
	for council, cands := range chairByCouncil {
		race := councilRace{AreaCouncil: council, TotalCandidates: len(cands), Candidates: cands}
		for _, c := range cands {
			race.Parties = append(race.Parties, c.Party)
			if _, ok := majorParties[c.Party]; ok {
				race.MajorParties++
			}
		}
		race.IsCompetitive = race.MajorParties >= 3
		races = append(races, race)
	}
	sort.Slice(races, func(i, j int) bool {
		if races[i].TotalCandidates != races[j].TotalCandidates {
			return races[i].TotalCandidates > races[j].TotalCandidates
		}
		return races[i].AreaCouncil < races[j].AreaCouncil
	})

	councillorByParty := map[string]int{}
	for _, c := range councillorship {
		councillorByParty[c.PartyAbbrev]++
	}
	type spread struct {
		Party string `json:"party"`
		Count int    `json:"count"`
	}
	councillorSpread := make([]spread, 0, len(councillorByParty))
	for p, n := range councillorByParty {
		councillorSpread = append(councillorSpread, spread{Party: p, Count: n})
	}
	sort.Slice(councillorSpread, func(i, j int) bool {
		if councillorSpread[i].Count != councillorSpread[j].Count {
			return councillorSpread[i].Count > councillorSpread[j].Count
		}
		return councillorSpread[i].Party < councillorSpread[j].Party
	})

	type matchup struct {
		AreaCouncil string            `json:"area_council"`
		Contenders  []rosterCandidate `json:"contenders"`
		TotalInRace int               `json:"total_in_race"`
	}
	var matchups []matchup
	for _, race := range races {
		var contenders []rosterCandidate
		for _, c := range race.Candidates {
			if _, ok := majorParties[c.Party]; ok {
				contenders = append(contenders, c)
			}
		}
		if len(contenders) >= 2 {
			if len(contenders) > 4 {
				contenders = contenders[:4]
			}
			matchups = append(matchups, matchup{
				AreaCouncil: race.AreaCouncil,
				Contenders:  contenders,
				TotalInRace: race.TotalCandidates,
			})
		}
	}

	countGender := func(rows []db.CandidateRow) genderSplit {
		var split genderSplit
		split.Total = len(rows)
		for _, c := range rows {
			switch c.Gender {
			case "F":
				split.Female++
			case "M":
				split.Male++
			}
		}
		return split
	}
	overall := countGender(active)
	var femalePct float64
	if overall.Total > 0 {
		femalePct = percent(uint64(overall.Female), uint64(overall.Total))
	}

	elections, err := a.Store.ListElections(ctx, "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"party_standings":    standings,
		"chairmanship_races": races,
		"councillor_spread":  councillorSpread,
		"head_to_head":       matchups,
		"gender_scorecard": map[string]any{
			"total_active": overall.Total,
			"female":       overall.Female,
			"male":         overall.Male,
			"female_pct":   femalePct,
			"by_position": map[string]genderSplit{
				"chairmanship":   countGender(chairmanship),
				"councillorship": countGender(councillorship),
			},
		},
		"withdrawn_count":   withdrawn,
		"total_candidates":  len(candidates),
		"active_candidates": len(active),
		"election_progress": elections,
	})
}

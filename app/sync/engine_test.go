package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	elections map[irev.Category][]irev.Election
	stats     map[string]irev.ResultStats
	statsErr  map[string]error
	hierarchy map[string][]irev.LGAEntry
	units     map[string][]irev.PollingUnit
	unitsErr  map[string]error
}

func (f *fakeAPI) ListElections(_ context.Context, c irev.Category) ([]irev.Election, error) {
	return f.elections[c], nil
}

func (f *fakeAPI) ResultStats(_ context.Context, id string) (irev.ResultStats, error) {
	if err := f.statsErr[id]; err != nil {
		return irev.ResultStats{}, err
	}
	return f.stats[id], nil
}

func (f *fakeAPI) Hierarchy(_ context.Context, id string, _ int) ([]irev.LGAEntry, error) {
	return f.hierarchy[id], nil
}

func (f *fakeAPI) PollingUnits(_ context.Context, _ string, wardID string) ([]irev.PollingUnit, error) {
	if err := f.unitsErr[wardID]; err != nil {
		return nil, err
	}
	return f.units[wardID], nil
}

type fakeStore struct {
	elections   map[string]*db.ElectionRow
	stats       map[string][3]any
	syncLog     []*db.SyncLogRow
	lgas        map[string]*db.LGARow
	wards       map[string]*db.WardRow
	units       map[string]*db.PollingUnitRow
	wardRollups map[string][2]uint32
	lgaRollups  map[string][2]uint32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		elections:   map[string]*db.ElectionRow{},
		stats:       map[string][3]any{},
		lgas:        map[string]*db.LGARow{},
		wards:       map[string]*db.WardRow{},
		units:       map[string]*db.PollingUnitRow{},
		wardRollups: map[string][2]uint32{},
		lgaRollups:  map[string][2]uint32{},
	}
}

func (s *fakeStore) UpsertElection(_ context.Context, row *db.ElectionRow) error {
	s.elections[row.ID] = row
	return nil
}

func (s *fakeStore) UpdateElectionStats(_ context.Context, id string, expected, reported uint32, pct float64) error {
	s.stats[id] = [3]any{expected, reported, pct}
	return nil
}

func (s *fakeStore) AppendSyncLog(_ context.Context, row *db.SyncLogRow) error {
	s.syncLog = append(s.syncLog, row)
	return nil
}

func (s *fakeStore) UpsertLGA(_ context.Context, row *db.LGARow) error {
	s.lgas[row.ID] = row
	return nil
}

func (s *fakeStore) UpsertWard(_ context.Context, row *db.WardRow) error {
	s.wards[row.ID] = row
	return nil
}

func (s *fakeStore) ListWards(_ context.Context, electionID string) ([]db.WardRow, error) {
	out := []db.WardRow{}
	for _, w := range s.wards {
		if w.ElectionID == electionID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertPollingUnit(_ context.Context, row *db.PollingUnitRow) error {
	if row.HasResult && row.DocumentURL == "" {
		return errors.New("has_result without document_url")
	}
	s.units[row.ID] = row
	return nil
}

func (s *fakeStore) UpdateWardRollup(_ context.Context, id, _ string, expected, reported uint32) error {
	s.wardRollups[id] = [2]uint32{expected, reported}
	return nil
}

func (s *fakeStore) UpdateLGARollup(_ context.Context, lgaName, _ string, expected, reported uint32) error {
	s.lgaRollups[lgaName] = [2]uint32{expected, reported}
	return nil
}

func testEngine(t *testing.T, api API, store Store) *Engine {
	t.Helper()
	return New(Opts{
		API:        api,
		Store:      store,
		StateID:    37,
		StateName:  "FCT",
		TargetYear: "2026",
		Logger:     zaptest.NewLogger(t),
		Sleep:      func(time.Duration) {},
	})
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(5, 0))
	assert.Equal(t, 25.0, Percent(250, 1000))
	assert.Equal(t, 33.3, Percent(1, 3))
	assert.Equal(t, 66.7, Percent(2, 3))
	assert.Equal(t, 100.0, Percent(10, 10))
}

func TestDiscoverFiltersStateAndYear(t *testing.T) {
	api := &fakeAPI{elections: map[irev.Category][]irev.Election{
		irev.Chairman: {
			{ID: "a", ElectionDate: "2026-02-21", State: irev.State{StateID: 37}},
			{ID: "b", ElectionDate: "2026-02-21", State: irev.State{StateID: 24}},
			{ID: "c", ElectionDate: "2023-03-18", State: irev.State{StateID: 37}},
		},
	}}
	eng := testEngine(t, api, newFakeStore())

	got, err := eng.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got[irev.Chairman], 1)
	assert.Equal(t, "a", got[irev.Chairman][0].ID)
	assert.Empty(t, got[irev.Councillor])
}

func TestSyncStatsWritesRowsAndAuditLog(t *testing.T) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {
			{ID: "e1", FullName: "Abuja Municipal Chairmanship", ElectionDate: "2026-02-21",
				Domain: irev.Domain{Name: "AMAC"}, State: irev.State{StateID: 37}},
			{ID: "e2", FullName: "Bwari Chairmanship", ElectionDate: "2026-02-21",
				Domain: irev.Domain{Name: "Bwari"}, State: irev.State{StateID: 37}},
		},
	}
	api := &fakeAPI{
		stats: map[string]irev.ResultStats{
			"e1": {Expected: 1000, Documents: 250},
			"e2": {PUs: 400, Documents: 100},
		},
		statsErr: map[string]error{},
	}
	store := newFakeStore()
	eng := testEngine(t, api, store)

	require.NoError(t, eng.SyncStats(context.Background(), elections))

	require.Contains(t, store.elections, "e1")
	assert.Equal(t, "CHAIRMAN", store.elections["e1"].Category)
	assert.Equal(t, [3]any{uint32(1000), uint32(250), 25.0}, store.stats["e1"])
	// pus stands in when expected is absent.
	assert.Equal(t, [3]any{uint32(400), uint32(100), 25.0}, store.stats["e2"])

	require.Len(t, store.syncLog, 2)
	chairman := store.syncLog[0]
	assert.Equal(t, "CHAIRMAN", chairman.Category)
	assert.Equal(t, uint32(1400), chairman.ExpectedUnits)
	assert.Equal(t, uint32(350), chairman.ReportedUnits)
	assert.Equal(t, 25.0, chairman.Percent)

	var breakdown map[string]areaStanding
	require.NoError(t, json.Unmarshal([]byte(chairman.BreakdownJSON), &breakdown))
	assert.Equal(t, areaStanding{Units: 1000, Results: 250, Percent: 25.0}, breakdown["AMAC"])
}

func TestSyncStatsSkipsElectionOnStatsError(t *testing.T) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {{ID: "e1", FullName: "AMAC", State: irev.State{StateID: 37}}},
	}
	api := &fakeAPI{
		stats:    map[string]irev.ResultStats{},
		statsErr: map[string]error{"e1": errors.New("boom")},
	}
	store := newFakeStore()
	eng := testEngine(t, api, store)

	require.NoError(t, eng.SyncStats(context.Background(), elections))

	// The metadata row is still written; the counters are not.
	assert.Contains(t, store.elections, "e1")
	assert.NotContains(t, store.stats, "e1")
	require.Len(t, store.syncLog, 2)
	assert.Equal(t, uint32(0), store.syncLog[0].ExpectedUnits)
}

func TestSyncStructureResetsRollups(t *testing.T) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {{ID: "e1", Domain: irev.Domain{Name: "AMAC"}}},
	}
	api := &fakeAPI{hierarchy: map[string][]irev.LGAEntry{
		"e1": {{
			ID:  "lga-1",
			LGA: irev.LGA{Name: "AMAC", Code: "01", LGAID: 1},
			Wards: []irev.Ward{
				{ID: "w1", Name: "City Centre", Code: "01", WardID: 1},
				{ID: "w2", Name: "Garki", Code: "02", WardID: 2},
			},
		}},
	}}
	store := newFakeStore()
	eng := testEngine(t, api, store)

	require.NoError(t, eng.SyncStructure(context.Background(), elections))

	require.Contains(t, store.lgas, "lga-1")
	lga := store.lgas["lga-1"]
	assert.Equal(t, uint32(2), lga.TotalWards)
	assert.Zero(t, lga.ExpectedUnits)
	assert.Zero(t, lga.ReportedUnits)

	require.Contains(t, store.wards, "w1")
	assert.Equal(t, "AMAC", store.wards["w1"].LGAName)
	assert.Zero(t, store.wards["w1"].ExpectedUnits)
}

func TestSyncUnitsRollsUpWardsAndAreas(t *testing.T) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {{ID: "e1", Domain: irev.Domain{Name: "AMAC"}}},
	}
	doc := &irev.Document{URL: "https://cdn.example.com/sheet.jpg", Size: 2048}
	api := &fakeAPI{
		units: map[string][]irev.PollingUnit{
			"w1": {
				{ID: "p1", Name: "PU 001", PUCode: "01-01-01-001", Document: doc},
				{ID: "p2", Name: "PU 002", PUCode: "01-01-01-002"},
				{ID: "p3", Name: "PU 003", PUCode: "01-01-01-003", Document: doc},
			},
			"w2": {
				{ID: "p4", Name: "PU 004", PUCode: "01-01-02-001"},
			},
		},
		unitsErr: map[string]error{},
	}
	store := newFakeStore()
	store.wards["w1"] = &db.WardRow{ID: "w1", ElectionID: "e1", Name: "City Centre", LGAName: "AMAC"}
	store.wards["w2"] = &db.WardRow{ID: "w2", ElectionID: "e1", Name: "Garki", LGAName: "AMAC"}
	eng := testEngine(t, api, store)

	require.NoError(t, eng.SyncUnits(context.Background(), irev.Chairman, elections))

	assert.Equal(t, [2]uint32{3, 2}, store.wardRollups["w1"])
	assert.Equal(t, [2]uint32{1, 0}, store.wardRollups["w2"])
	assert.Equal(t, [2]uint32{4, 2}, store.lgaRollups["AMAC"])

	require.Contains(t, store.units, "p1")
	assert.True(t, store.units["p1"].HasResult)
	assert.Equal(t, "https://cdn.example.com/sheet.jpg", store.units["p1"].DocumentURL)
	assert.False(t, store.units["p2"].HasResult)
}

func TestSyncUnitsKeepsPreviousRollupOnWardError(t *testing.T) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {{ID: "e1"}},
	}
	api := &fakeAPI{
		units: map[string][]irev.PollingUnit{
			"w2": {{ID: "p1", Name: "PU 001", PUCode: "01"}},
		},
		unitsErr: map[string]error{"w1": errors.New("gateway timeout")},
	}
	store := newFakeStore()
	store.wards["w1"] = &db.WardRow{ID: "w1", ElectionID: "e1", Name: "City Centre", LGAName: "AMAC"}
	store.wards["w2"] = &db.WardRow{ID: "w2", ElectionID: "e1", Name: "Garki", LGAName: "AMAC"}
	eng := testEngine(t, api, store)

	require.NoError(t, eng.SyncUnits(context.Background(), irev.Chairman, elections))

	// Failed ward left untouched, the healthy ward still rolled up.
	assert.NotContains(t, store.wardRollups, "w1")
	assert.Equal(t, [2]uint32{1, 0}, store.wardRollups["w2"])
	assert.Equal(t, [2]uint32{1, 0}, store.lgaRollups["AMAC"])
}

// genUnits builds total polling units for a ward, the first withDocs of them
// carrying an uploaded result sheet.
func genUnits(wardCode string, total, withDocs int) []irev.PollingUnit {
	doc := &irev.Document{URL: "https://cdn.example.com/sheet.jpg", Size: 1024}
	units := make([]irev.PollingUnit, 0, total)
	for i := 0; i < total; i++ {
		u := irev.PollingUnit{
			ID:     fmt.Sprintf("%s-p%04d", wardCode, i+1),
			Name:   fmt.Sprintf("PU %04d", i+1),
			PUCode: fmt.Sprintf("01-01-%s-%04d", wardCode, i+1),
		}
		if i < withDocs {
			u.Document = doc
		}
		units = append(units, u)
	}
	return units
}

func fullCouncilFixture() (*fakeAPI, map[irev.Category][]irev.Election) {
	elections := map[irev.Category][]irev.Election{
		irev.Chairman: {{ID: "e1", FullName: "AMAC Chairmanship", ElectionDate: "2026-02-21",
			Domain: irev.Domain{Name: "AMAC"}, State: irev.State{StateID: 37}}},
	}
	api := &fakeAPI{
		stats:    map[string]irev.ResultStats{"e1": {Expected: 1000, Documents: 250}},
		statsErr: map[string]error{},
		hierarchy: map[string][]irev.LGAEntry{"e1": {{
			ID:  "lga-1",
			LGA: irev.LGA{Name: "AMAC", Code: "01", LGAID: 1},
			Wards: []irev.Ward{
				{ID: "w1", Name: "City Centre", Code: "01", WardID: 1},
				{ID: "w2", Name: "Garki", Code: "02", WardID: 2},
				{ID: "w3", Name: "Wuse", Code: "03", WardID: 3},
			},
		}}},
		units: map[string][]irev.PollingUnit{
			"w1": genUnits("w1", 400, 100),
			"w2": genUnits("w2", 350, 100),
			"w3": genUnits("w3", 250, 50),
		},
		unitsErr: map[string]error{},
	}
	return api, elections
}

func TestSyncFullCouncilScenario(t *testing.T) {
	api, elections := fullCouncilFixture()
	store := newFakeStore()
	eng := testEngine(t, api, store)
	ctx := context.Background()

	require.NoError(t, eng.SyncStats(ctx, elections))
	require.NoError(t, eng.SyncStructure(ctx, elections))
	require.NoError(t, eng.SyncUnits(ctx, irev.Chairman, elections))

	assert.Equal(t, [3]any{uint32(1000), uint32(250), 25.0}, store.stats["e1"])
	require.Len(t, store.syncLog, 2)
	assert.Equal(t, 25.0, store.syncLog[0].Percent)

	assert.Equal(t, [2]uint32{400, 100}, store.wardRollups["w1"])
	assert.Equal(t, [2]uint32{350, 100}, store.wardRollups["w2"])
	assert.Equal(t, [2]uint32{250, 50}, store.wardRollups["w3"])

	// Ward rollups account for every unit and result in the council.
	var expected, reported uint32
	for _, r := range store.wardRollups {
		expected += r[0]
		reported += r[1]
	}
	assert.Equal(t, uint32(1000), expected)
	assert.Equal(t, uint32(250), reported)
	assert.Equal(t, [2]uint32{1000, 250}, store.lgaRollups["AMAC"])
	assert.Equal(t, 25.0, Percent(int(reported), int(expected)))
	assert.Len(t, store.units, 1000)
}

func TestSyncPhasesRepeatWithoutDrift(t *testing.T) {
	runAll := func(store *fakeStore, times int) {
		api, elections := fullCouncilFixture()
		eng := testEngine(t, api, store)
		ctx := context.Background()
		for i := 0; i < times; i++ {
			require.NoError(t, eng.SyncStats(ctx, elections))
			require.NoError(t, eng.SyncStructure(ctx, elections))
			require.NoError(t, eng.SyncUnits(ctx, irev.Chairman, elections))
		}
	}

	once := newFakeStore()
	twice := newFakeStore()
	runAll(once, 1)
	runAll(twice, 2)

	// Replace-on-conflict upserts: a repeat run leaves identical state.
	assert.Equal(t, once.elections, twice.elections)
	assert.Equal(t, once.stats, twice.stats)
	assert.Equal(t, once.lgas, twice.lgas)
	assert.Equal(t, once.wards, twice.wards)
	assert.Equal(t, once.units, twice.units)
	assert.Equal(t, once.wardRollups, twice.wardRollups)
	assert.Equal(t, once.lgaRollups, twice.lgaRollups)

	// Only the audit log appends, one row per category per run.
	require.Len(t, once.syncLog, 2)
	assert.Len(t, twice.syncLog, 4)
}

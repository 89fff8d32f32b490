package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	enginesync "github.com/civichq/resultwatch/app/sync"
	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/events"
	"github.com/civichq/resultwatch/pkg/extract"
	"github.com/civichq/resultwatch/pkg/irev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAPI struct{}

func (stubAPI) ListElections(context.Context, irev.Category) ([]irev.Election, error) {
	return nil, nil
}

func (stubAPI) ResultStats(context.Context, string) (irev.ResultStats, error) {
	return irev.ResultStats{}, nil
}

func (stubAPI) Hierarchy(context.Context, string, int) ([]irev.LGAEntry, error) {
	return nil, nil
}

func (stubAPI) PollingUnits(context.Context, string, string) ([]irev.PollingUnit, error) {
	return nil, nil
}

type stubSyncStore struct{}

func (stubSyncStore) UpsertElection(context.Context, *db.ElectionRow) error { return nil }

func (stubSyncStore) UpdateElectionStats(_ context.Context, _ string, _, _ uint32, _ float64) error {
	return nil
}

func (stubSyncStore) AppendSyncLog(context.Context, *db.SyncLogRow) error { return nil }

func (stubSyncStore) UpsertLGA(context.Context, *db.LGARow) error { return nil }

func (stubSyncStore) UpsertWard(context.Context, *db.WardRow) error { return nil }

func (stubSyncStore) ListWards(context.Context, string) ([]db.WardRow, error) { return nil, nil }

func (stubSyncStore) UpsertPollingUnit(context.Context, *db.PollingUnitRow) error { return nil }

func (stubSyncStore) UpdateWardRollup(_ context.Context, _, _ string, _, _ uint32) error {
	return nil
}

func (stubSyncStore) UpdateLGARollup(_ context.Context, _, _ string, _, _ uint32) error {
	return nil
}

type stubExtractStore struct{}

func (stubExtractStore) PendingExtractions(context.Context, int) ([]db.PendingUnit, error) {
	return nil, nil
}

func (stubExtractStore) UpsertExtraction(context.Context, *db.ExtractionRow) error { return nil }

func newTestApp(t *testing.T) *App {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := db.NewStore(db.Client{Logger: logger})
	return &App{
		Config:   Config{Addr: ":0", SyncInterval: time.Hour},
		Logger:   logger,
		DBClient: store.Client,
		Store:    store,
		Hub:      events.NewHub(logger, nil),
		Engine: enginesync.New(enginesync.Opts{
			API:    stubAPI{},
			Store:  stubSyncStore{},
			Logger: logger,
			Sleep:  func(time.Duration) {},
		}),
		Pipeline: extract.NewPipeline(extract.Opts{
			Store:  stubExtractStore{},
			Logger: logger,
			Sleep:  func(time.Duration) {},
		}),
		Status: NewStatus(),
	}
}

func TestAdminServerWiring(t *testing.T) {
	a := newTestApp(t)
	a.SetupServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, StateIdle, snap.State)
}

func TestStartCronRunsFirstCycleImmediately(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.SetupScheduler(context.Background()))
	a.StartCron(context.Background())
	defer a.StopCron()

	// The interval is an hour, so only the immediate kick can finish a cycle
	// within the test window.
	assert.Eventually(t, func() bool {
		return a.Status.Snapshot().CycleCount == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateIdle, a.Status.Snapshot().State)
}

package sync

import (
	"context"
	"math"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/irev"
	"go.uber.org/zap"
)

// Store is the slice of the persistence layer the engine writes through.
type Store interface {
	UpsertElection(ctx context.Context, row *db.ElectionRow) error
	UpdateElectionStats(ctx context.Context, id string, expected, reported uint32, pct float64) error
	AppendSyncLog(ctx context.Context, row *db.SyncLogRow) error
	UpsertLGA(ctx context.Context, row *db.LGARow) error
	UpsertWard(ctx context.Context, row *db.WardRow) error
	ListWards(ctx context.Context, electionID string) ([]db.WardRow, error)
	UpsertPollingUnit(ctx context.Context, row *db.PollingUnitRow) error
	UpdateWardRollup(ctx context.Context, id, electionID string, expected, reported uint32) error
	UpdateLGARollup(ctx context.Context, lgaName, electionID string, expected, reported uint32) error
}

// API is the upstream dependency, satisfied by *irev.Client.
type API interface {
	ListElections(ctx context.Context, category irev.Category) ([]irev.Election, error)
	ResultStats(ctx context.Context, electionID string) (irev.ResultStats, error)
	Hierarchy(ctx context.Context, electionID string, stateID int) ([]irev.LGAEntry, error)
	PollingUnits(ctx context.Context, electionID, wardID string) ([]irev.PollingUnit, error)
}

// Opts configures an Engine.
type Opts struct {
	API        API
	Store      Store
	StateID    int
	StateName  string
	TargetYear string
	Logger     *zap.Logger
	// Progress receives human-readable phase messages for the status
	// record. Optional.
	Progress func(msg string)
	// Sleep is swapped out in tests.
	Sleep func(time.Duration)
}

// Engine reconciles the upstream election hierarchy into the local store in
// three idempotent phases.
type Engine struct {
	api        API
	store      Store
	stateID    int
	stateName  string
	targetYear string
	logger     *zap.Logger
	progress   func(string)
	sleep      func(time.Duration)
}

// New builds an Engine.
func New(o Opts) *Engine {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Progress == nil {
		o.Progress = func(string) {}
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return &Engine{
		api:        o.API,
		store:      o.Store,
		stateID:    o.StateID,
		stateName:  o.StateName,
		targetYear: o.TargetYear,
		logger:     o.Logger,
		progress:   o.Progress,
		sleep:      o.Sleep,
	}
}

// Percent computes reported/expected as a percentage rounded to one decimal,
// 0 when expected is 0.
func Percent(reported, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Round(float64(reported)/float64(expected)*1000) / 10
}

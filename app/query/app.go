package query

import (
	"context"
	"net/http"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/events"
	"github.com/civichq/resultwatch/pkg/logging"
	"github.com/civichq/resultwatch/pkg/redis"
	"github.com/civichq/resultwatch/pkg/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Store is the read surface the handlers consume.
type Store interface {
	ListAreaCouncils(ctx context.Context) ([]db.AreaCouncilRow, error)
	ListElections(ctx context.Context, category string) ([]db.ElectionRow, error)
	CategoryTotals(ctx context.Context, category string) (expected, reported uint64, err error)
	ListWards(ctx context.Context, electionID string) ([]db.WardRow, error)
	ListWardsByLGAName(ctx context.Context, lgaName string) ([]db.WardRow, error)
	ListAllWards(ctx context.Context) ([]db.WardRow, error)
	ListCandidates(ctx context.Context, areaCouncil, positionType string) ([]db.CandidateRow, error)
	ListUnitsWithResults(ctx context.Context, category string, limit int) ([]db.PollingUnitRow, error)
	UnitCounts(ctx context.Context) (total, withResults uint64, err error)
	ListSyncLog(ctx context.Context, limit int) ([]db.SyncLogRow, error)
	ListExtractions(ctx context.Context, limit int) ([]db.ExtractionRow, error)
	GetExtractionStats(ctx context.Context) (db.ExtractionStats, error)
	PendingExtractionCount(ctx context.Context) (uint64, error)
}

// App serves the read-only reporting API over the store, plus the live event
// stream relayed from the scraper process through redis.
type App struct {
	Logger   *zap.Logger
	DBClient db.Client
	Store    Store
	Redis    *redis.Client
	Hub      *events.Hub
	Server   *http.Server

	cancelRelay context.CancelFunc
}

// Initialize wires the query service.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	dbClient, err := db.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to ClickHouse", zap.Error(err))
	}
	store := db.NewStore(dbClient)
	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize database", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to Redis", zap.Error(err))
	}

	app := &App{
		Logger:   logger,
		DBClient: dbClient,
		Store:    store,
		Redis:    redisClient,
		Hub:      events.NewHub(logger, nil),
	}

	relayCtx, cancel := context.WithCancel(ctx)
	app.cancelRelay = cancel
	go app.relayEvents(relayCtx)

	return app, nil
}

// SetupServer builds the HTTP surface.
func (a *App) SetupServer() {
	addr := utils.Env("ADDR", ":8080")
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	r.HandleFunc("/api/overview", a.handleOverview).Methods("GET")
	r.HandleFunc("/api/elections-detail", a.handleElectionsDetail).Methods("GET")
	r.HandleFunc("/api/lga-breakdown", a.handleLGABreakdown).Methods("GET")
	r.HandleFunc("/api/ward-breakdown/{lga}", a.handleWardBreakdown).Methods("GET")
	r.HandleFunc("/api/councillorship", a.handleCouncillorship).Methods("GET")

	r.HandleFunc("/api/candidates", a.handleCandidates).Methods("GET")
	r.HandleFunc("/api/candidates/{council}", a.handleCandidates).Methods("GET")
	r.HandleFunc("/api/party-analysis", a.handlePartyAnalysis).Methods("GET")
	r.HandleFunc("/api/analytics/party-race", a.handlePartyRace).Methods("GET")

	r.HandleFunc("/api/live-results", a.handleLiveResults).Methods("GET")
	r.HandleFunc("/api/recent-results", a.handleRecentResults).Methods("GET")
	r.HandleFunc("/api/chairmanship-race", a.handleChairmanshipRace).Methods("GET")
	r.HandleFunc("/api/councillorship-race", a.handleCouncillorshipRace).Methods("GET")

	r.HandleFunc("/api/timeline", a.handleTimeline).Methods("GET")
	r.HandleFunc("/api/analytics/turnout-projection", a.handleTurnoutProjection).Methods("GET")
	r.HandleFunc("/api/analytics/trends", a.handleTrends).Methods("GET")
	r.HandleFunc("/api/analytics/heatmap", a.handleHeatmap).Methods("GET")

	r.HandleFunc("/api/extractions", a.handleExtractions).Methods("GET")
	r.HandleFunc("/api/extractions/status", a.handleExtractionStatus).Methods("GET")

	r.HandleFunc("/api/export/elections", a.handleExportElections).Methods("GET")
	r.HandleFunc("/api/export/candidates", a.handleExportCandidates).Methods("GET")
	r.HandleFunc("/api/export/analytics", a.handleExportAnalytics).Methods("GET")

	r.HandleFunc("/api/events", a.handleWebsocket).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// Start runs the HTTP server until it fails or is shut down.
func (a *App) Start() error {
	a.Logger.Info("Query API listening", zap.String("addr", a.Server.Addr))
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the service down.
func (a *App) Stop(ctx context.Context) {
	if a.cancelRelay != nil {
		a.cancelRelay()
	}
	if a.Server != nil {
		_ = a.Server.Shutdown(ctx)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DBClient.Db != nil {
		_ = a.DBClient.Close()
	}
	_ = a.Logger.Sync()
}

// relayEvents pumps scraper lifecycle events from redis into the local hub
// so websocket clients of this process see them.
func (a *App) relayEvents(ctx context.Context) {
	pubsub := a.Redis.SubscribeEvents(ctx)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev events.Event
			if err := ev.UnmarshalJSON([]byte(msg.Payload)); err != nil {
				a.Logger.Warn("Undecodable relay event", zap.Error(err))
				continue
			}
			a.Hub.Publish(ev)
		}
	}
}

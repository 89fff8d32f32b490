package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	enginesync "github.com/civichq/resultwatch/app/sync"
	"github.com/civichq/resultwatch/pkg/db"
	"github.com/civichq/resultwatch/pkg/events"
	"github.com/civichq/resultwatch/pkg/extract"
	"github.com/civichq/resultwatch/pkg/fetch"
	"github.com/civichq/resultwatch/pkg/irev"
	"github.com/civichq/resultwatch/pkg/logging"
	"github.com/civichq/resultwatch/pkg/redis"
	"github.com/civichq/resultwatch/pkg/roster"
	"github.com/civichq/resultwatch/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config is the scraper service configuration, collected from the
// environment at startup.
type Config struct {
	Addr            string
	APIBase         string
	APIKey          string
	StateID         int
	StateName       string
	TargetYear      string
	SyncInterval    time.Duration
	ExtractionBatch int
	RosterPath      string
}

// ConfigFromEnv reads the service configuration.
func ConfigFromEnv() Config {
	return Config{
		Addr:            utils.Env("ADDR", ":5050"),
		APIBase:         utils.Env("API_BASE", ""),
		APIKey:          utils.Env("API_KEY", ""),
		StateID:         utils.EnvInt("STATE_ID", 15),
		StateName:       utils.Env("STATE_NAME", "FCT"),
		TargetYear:      utils.Env("TARGET_YEAR", "2026"),
		SyncInterval:    utils.EnvDuration("SYNC_INTERVAL", 2*time.Minute),
		ExtractionBatch: utils.EnvInt("EXTRACTION_BATCH", extract.DefaultBatchSize),
		RosterPath:      utils.Env("ROSTER_PATH", ""),
	}
}

// App owns the sync/extraction scheduler and its admin HTTP surface.
type App struct {
	Config Config
	Logger *zap.Logger

	DBClient db.Client
	Store    *db.Store
	Redis    *redis.Client
	Hub      *events.Hub
	API      *irev.Client
	Engine   *enginesync.Engine
	Pipeline *extract.Pipeline
	Status   *Status

	SyncGuard    Guard
	ExtractGuard Guard

	Cron   *cron.Cron
	Server *http.Server

	cycle   atomic.Uint64
	cacheMu sync.Mutex
	cached  map[irev.Category][]irev.Election
}

// Initialize wires every dependency of the scraper service.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	cfg := ConfigFromEnv()
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("API_BASE is required")
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

	hub := events.NewHub(logger, func(ev events.Event) {
		redisClient.PublishEvent(context.Background(), ev)
	})

	fetcher := fetch.New(fetch.Opts{
		BaseURL: cfg.APIBase,
		APIKey:  cfg.APIKey,
		Logger:  logger,
	})
	api := irev.NewClient(fetcher, irev.CategoryIDs{
		irev.Chairman:   utils.Env("CHAIRMAN_TYPE_ID", "5f129a04df41d910dcdc1d55"),
		irev.Councillor: utils.Env("COUNCILLOR_TYPE_ID", "5f129a04df41d910dcdc1d56"),
	})

	status := NewStatus()
	engine := enginesync.New(enginesync.Opts{
		API:        api,
		Store:      store,
		StateID:    cfg.StateID,
		StateName:  cfg.StateName,
		TargetYear: cfg.TargetYear,
		Logger:     logger,
		Progress:   status.SetMessage,
	})
	pipeline := extract.NewPipeline(extract.Opts{
		Store:      store,
		Downloader: api,
		Recognizer: extract.NewTesseract(),
		BatchSize:  cfg.ExtractionBatch,
		Logger:     logger,
		Progress:   status.SetMessage,
	})

	app := &App{
		Config:   cfg,
		Logger:   logger,
		DBClient: dbClient,
		Store:    store,
		Redis:    redisClient,
		Hub:      hub,
		API:      api,
		Engine:   engine,
		Pipeline: pipeline,
		Status:   status,
	}

	if cfg.RosterPath != "" {
		if err := roster.Import(ctx, cfg.RosterPath, store, logger); err != nil {
			logger.Warn("Roster import failed", zap.String("path", cfg.RosterPath), zap.Error(err))
		}
	}

	return app, nil
}

// SetupScheduler registers the cycle job. A panicking cycle is recovered and
// logged; the loop keeps ticking.
func (a *App) SetupScheduler(ctx context.Context) error {
	a.Cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	spec := fmt.Sprintf("@every %s", a.Config.SyncInterval)
	if _, err := a.Cron.AddFunc(spec, func() { a.RunCycle(ctx) }); err != nil {
		return err
	}
	return nil
}

// StartCron starts the scheduler and kicks the first cycle right away; the
// @every schedule only fires once a full interval has elapsed.
func (a *App) StartCron(ctx context.Context) {
	a.Cron.Start()
	go a.RunCycle(ctx)
	a.Logger.Info("Scheduler started", zap.Duration("interval", a.Config.SyncInterval))
}

// StopCron stops the scheduler and waits for a running cycle job to return.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// elections returns the cached discovery result, refreshing it when forced
// or when no cache exists yet.
func (a *App) elections(ctx context.Context, refresh bool) (map[irev.Category][]irev.Election, error) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cached == nil || refresh {
		found, err := a.Engine.Discover(ctx)
		if err != nil {
			return nil, err
		}
		a.cached = found
		a.Logger.Info("Election cache refreshed",
			zap.Int("chairman", len(found[irev.Chairman])),
			zap.Int("councillor", len(found[irev.Councillor])))
	}
	return a.cached, nil
}

// RunCycle executes one scheduled cycle: the sync phases the cadence plan
// selects, then the extraction batch when due. Skips entirely when a manual
// sync holds the guard. Errors are absorbed here; the counter advances and
// the next tick proceeds regardless.
func (a *App) RunCycle(ctx context.Context) {
	if !a.SyncGuard.TryAcquire() {
		a.Logger.Info("Cycle skipped, sync already in progress")
		return
	}

	c := a.cycle.Load()
	plan := PlanCycle(c)
	a.Status.SetState(StateSyncing)
	a.Hub.Publish(events.New(events.SyncStart, map[string]any{"cycle": c}))
	a.Logger.Info("Cycle started", zap.Uint64("cycle", c))

	err := a.runPhases(ctx, plan)
	a.SyncGuard.Release()

	if err != nil {
		a.Status.SetError(err)
		a.Hub.Publish(events.New(events.SyncError, map[string]any{"error": err.Error()}))
		a.Logger.Error("Cycle failed", zap.Uint64("cycle", c), zap.Error(err))
	} else {
		if plan.Extraction {
			a.runExtraction(ctx)
		}
		count := a.Status.CycleDone(time.Now())
		a.Hub.Publish(events.New(events.SyncComplete, map[string]any{"sync_count": count}))
		a.Logger.Info("Cycle complete", zap.Uint64("cycle", c))
	}
	// Advances on error too. A failed cycle's plan is not retried; its
	// phases wait for their next cadence slot.
	a.cycle.Add(1)
}

func (a *App) runPhases(ctx context.Context, plan Plan) error {
	elections, err := a.elections(ctx, plan.Discover)
	if err != nil {
		return fmt.Errorf("discover elections: %w", err)
	}

	if plan.Stats {
		if err := a.Engine.SyncStats(ctx, elections); err != nil {
			return fmt.Errorf("sync stats: %w", err)
		}
	}
	if plan.Structure {
		if err := a.Engine.SyncStructure(ctx, elections); err != nil {
			return fmt.Errorf("sync structure: %w", err)
		}
	}
	if plan.ChairmanUnits {
		if err := a.Engine.SyncUnits(ctx, irev.Chairman, elections); err != nil {
			return fmt.Errorf("sync chairman units: %w", err)
		}
	}
	if plan.CouncillorUnits {
		if err := a.Engine.SyncUnits(ctx, irev.Councillor, elections); err != nil {
			return fmt.Errorf("sync councillor units: %w", err)
		}
	}
	return nil
}

// runExtraction processes one batch under the extraction guard. A concurrent
// manual batch simply wins the guard and the scheduled one is skipped.
func (a *App) runExtraction(ctx context.Context) {
	if !a.ExtractGuard.TryAcquire() {
		a.Logger.Info("Extraction skipped, batch already in progress")
		return
	}
	defer a.ExtractGuard.Release()

	a.Status.SetMessage("Extracting result sheets...")
	n, err := a.Pipeline.ProcessBatch(ctx)
	if err != nil {
		a.Logger.Error("Extraction batch failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.Hub.Publish(events.New(events.ExtractionComplete, map[string]any{"processed": n}))
	}
	a.Logger.Info("Extraction batch done", zap.Int("processed", n))
}

// ForceSync runs discovery, stats and structure out of band. Returns false
// without doing anything when a sync already holds the guard. The work
// detaches from the caller; it outlives the triggering request.
func (a *App) ForceSync() bool {
	if !a.SyncGuard.TryAcquire() {
		return false
	}
	go func() {
		defer a.SyncGuard.Release()
		ctx := context.Background()
		a.Status.SetState(StateSyncing)
		a.Hub.Publish(events.New(events.SyncStart, map[string]any{"message": "Sync triggered"}))

		elections, err := a.elections(ctx, true)
		if err == nil {
			if err = a.Engine.SyncStats(ctx, elections); err == nil {
				err = a.Engine.SyncStructure(ctx, elections)
			}
		}
		if err != nil {
			a.Status.SetError(err)
			a.Hub.Publish(events.New(events.SyncError, map[string]any{"error": err.Error()}))
			return
		}
		count := a.Status.CycleDone(time.Now())
		a.Hub.Publish(events.New(events.SyncComplete, map[string]any{"sync_count": count}))
	}()
	return true
}

// ForceExtraction runs one extraction batch inline and reports how many
// sheets it processed. ok is false when a batch is already running.
func (a *App) ForceExtraction(ctx context.Context) (processed int, ok bool, err error) {
	if !a.ExtractGuard.TryAcquire() {
		return 0, false, nil
	}
	defer a.ExtractGuard.Release()

	n, err := a.Pipeline.ProcessBatch(ctx)
	if err != nil {
		return 0, true, err
	}
	if n > 0 {
		a.Hub.Publish(events.New(events.ExtractionComplete, map[string]any{"processed": n}))
	}
	return n, true, nil
}

// Start runs the HTTP server until it fails or is shut down.
func (a *App) Start() error {
	a.Logger.Info("Scraper API listening", zap.String("addr", a.Config.Addr))
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts down the server, scheduler and connections.
func (a *App) Stop(ctx context.Context) {
	if a.Server != nil {
		_ = a.Server.Shutdown(ctx)
	}
	a.StopCron()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DBClient.Db != nil {
		_ = a.DBClient.Close()
	}
	_ = a.Logger.Sync()
}

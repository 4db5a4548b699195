// Package main is the entry point for the currency exchange bot.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fxbot/internal/config"
	"fxbot/internal/provider"
	"fxbot/internal/render"
	"fxbot/internal/repository"
	"fxbot/internal/scheduler"
	"fxbot/internal/service"
	"fxbot/internal/telegram"
	"fxbot/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg         *config.Config
	logger      *zap.SugaredLogger
	db          *sql.DB
	wal         *repository.WALSnapshotRepository
	store       repository.SnapshotRepository
	rdbCache    *redis.Client
	rdbAsynq    *redis.Client
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	monitor     *asynqmon.HTTPHandler
	httpServer  *http.Server
	bot         *telegram.Bot
	scheduler   *scheduler.Scheduler
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases database and Redis connections
func (app *App) close() error {
	var errs []error
	if app.monitor != nil {
		if err := app.monitor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynqmon close: %w", err))
		}
	}
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	if app.wal != nil {
		if err := app.wal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("wal close: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	if err := app.initSnapshotStore(); err != nil {
		return err
	}

	app.rdbCache = redis.NewClient(&redis.Options{
		Addr: app.cfg.Redis.CacheAddr,
	})
	if err := app.rdbCache.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to Redis (cache, %s): %w", app.cfg.Redis.CacheAddr, err)
	}
	app.logger.Infow("Connected to Redis cache", "addr", app.cfg.Redis.CacheAddr)

	return nil
}

func (app *App) initSnapshotStore() error {
	var dialect repository.Dialect

	switch app.cfg.Store.Driver {
	case config.StoreDriverWAL:
		wal, err := repository.NewWALSnapshotRepository(app.cfg.Store.WALDir)
		if err != nil {
			return fmt.Errorf("open snapshot WAL: %w", err)
		}
		app.wal = wal
		app.store = wal
		app.logger.Infow("Snapshot store ready", "driver", app.cfg.Store.Driver, "dir", app.cfg.Store.WALDir)
		return nil

	case config.StoreDriverSQLite:
		db, err := repository.NewSQLiteDB(app.cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("open SQLite: %w", err)
		}
		app.db = db
		dialect = repository.DialectSQLite

	default:
		db, err := repository.NewPostgresDB(&app.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to Postgres: %w", err)
		}
		app.db = db
		dialect = repository.DialectPostgres
	}

	if err := repository.RunMigrations(app.db, dialect, app.logger); err != nil {
		return fmt.Errorf("run DB migrations: %w", err)
	}

	store, err := repository.NewSQLSnapshotRepository(app.db, dialect)
	if err != nil {
		return err
	}
	app.store = store
	app.logger.Infow("Snapshot store ready", "driver", app.cfg.Store.Driver)
	return nil
}

func (app *App) initServices() error {
	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr}

	app.rdbAsynq = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.AsynqAddr})
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:              app.cfg.Worker.Concurrency,
			DelayedTaskCheckInterval: time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
			TaskCheckInterval:        time.Duration(app.cfg.Worker.CheckIntervalSec) * time.Second,
			Logger:                   app.logger.Named("asynq"),
		},
	)
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.AsynqAddr)

	ratesProvider := provider.NewOpenExchangeRatesProvider(
		app.cfg.Provider.BaseURL,
		app.cfg.Provider.AppID,
		app.cfg.Provider.TimeoutSec)

	chart, err := render.NewChartRenderer(app.cfg.Render.OutputDir, app.cfg.Render.WidthInch, app.cfg.Render.HeightInch)
	if err != nil {
		return err
	}
	renderPool := render.NewPool(
		chart,
		app.cfg.Render.Concurrency,
		time.Duration(app.cfg.Render.TimeoutSec)*time.Second,
		app.logger.Named("render"))

	artifacts := service.NewRedisArtifactRegistry(app.rdbCache)
	rateCache := service.NewRateCache(
		app.store,
		ratesProvider,
		app.rdbCache,
		time.Duration(app.cfg.Cache.FreshnessWindowSec)*time.Second,
		app.logger)
	historyBuilder := service.NewHistoryBuilder(ratesProvider, renderPool, artifacts, app.logger)
	asynqEnqueuer := worker.NewAsynqEnqueuer(
		app.asynqClient,
		app.cfg.Worker.MaxRetry,
		time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
	)
	rateService := service.NewRateService(rateCache, historyBuilder, artifacts, asynqEnqueuer, app.logger)

	// the bot is also the notifier that finishes queued history builds
	var notifier worker.HistoryNotifier
	if app.cfg.Telegram.Enabled {
		pollTimeout := time.Duration(app.cfg.Telegram.PollTimeoutSec) * time.Second
		client := telegram.NewClient(app.cfg.Telegram.APIURL, app.cfg.Telegram.BotToken, pollTimeout)
		app.bot = telegram.NewBot(client, rateService, pollTimeout, app.logger.Named("telegram"))
		notifier = app.bot
	}

	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(service.TaskTypeBuildHistory, worker.NewHistoryBuildHandler(rateService, notifier, app.logger))

	if app.cfg.Scheduler.WarmCron != "" {
		app.scheduler = scheduler.NewScheduler(
			rateCache,
			time.Duration(app.cfg.Provider.TimeoutSec)*2*time.Second,
			app.logger.Named("scheduler"))
		if err := app.scheduler.RegisterWarm(app.cfg.Scheduler.WarmCron); err != nil {
			return err
		}
	}

	app.initHTTP(rateService, redisOpt)
	return nil
}

// Run starts the HTTP server, Asynq worker, Telegram poller and scheduler, blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Infow("Starting Asynq worker server")
		if err := app.asynqServer.Start(app.asynqMux); err != nil {
			return fmt.Errorf("asynq worker failed to start: %w", err)
		}

		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if app.bot != nil {
		g.Go(func() error {
			return app.bot.Run(ctx)
		})
	}

	if app.scheduler != nil {
		app.scheduler.Start()
	}

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: scheduler -> HTTP server -> Asynq worker -> connections.
// This ensures in-flight tasks finish before the store and Redis connections close.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. Stop scheduling cache warms
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	// 2. Stop accepting new HTTP requests, drain in-flight
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// 3. Drain in-flight Asynq tasks
	app.asynqServer.Shutdown()

	// 4. Close connections (asynq client, Redis, snapshot store)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}

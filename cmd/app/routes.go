package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"

	"fxbot/internal/api"
	"fxbot/internal/api/middleware"
	"fxbot/internal/service"
)

func (app *App) initHTTP(rateService service.RateServiceInterface, redisOpt asynq.RedisClientOpt) {
	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/rates/latest", api.HandleGetLatestRates(rateService))
	r.Post("/commands/exchange", api.HandleExchange(rateService))
	r.Post("/commands/history", api.HandleHistory(rateService))
	r.Get("/artifacts/{token}", api.HandleGetArtifact(rateService))
	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.readinessChecks()...))

	if app.cfg.Server.ServeSwagger {
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
	}

	if app.cfg.Server.ServeAsynqmon {
		app.monitor = asynqmon.New(asynqmon.Options{
			RootPath:     "/monitoring",
			RedisConnOpt: redisOpt,
		})
		r.Handle(app.monitor.RootPath()+"/*", app.monitor)
	}

	// history builds block on the render, so the write timeout covers the worker budget
	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(app.cfg.Worker.TimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (app *App) readinessChecks() []api.Dependency {
	deps := []api.Dependency{
		{Name: "Cache", Ping: func(ctx context.Context) error { return app.rdbCache.Ping(ctx).Err() }},
		{Name: "Asynq Redis", Ping: func(ctx context.Context) error { return app.rdbAsynq.Ping(ctx).Err() }},
	}
	if app.db != nil {
		deps = append([]api.Dependency{{Name: "DB", Ping: app.db.PingContext}}, deps...)
	}
	return deps
}

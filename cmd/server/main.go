// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/api"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/api/handlers"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/service"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Configure(cfg.Log.Format, cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	baseline, err := cfg.Engine.NewForecaster()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid engine configuration")
	}

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Forecast cache unavailable, continuing without it")
		forecastCache = cache.NewNoopForecastCache()
	}
	backtestCache, err := cache.NewBacktestCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Backtest cache unavailable, continuing without it")
		backtestCache = cache.NewNoopBacktestCache()
	}

	// Initialize repositories and services
	demandRepo := postgres.NewDemandRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	decisionRepo := postgres.NewDecisionRepository(db)

	reorderService := service.NewReorderService(demandRepo, baseline, service.Options{
		Inventory:      inventoryRepo,
		Decisions:      decisionRepo,
		ForecastCache:  forecastCache,
		BacktestCache:  backtestCache,
		DefaultHorizon: cfg.Engine.DefaultHorizon,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pipeline.NewMetrics(registry)

	pipelineCfg := pipeline.DefaultPipelineConfig("server")
	pipelineCfg.LeadTimes = cfg.Engine.LeadTimes
	pipelineCfg.ServiceLevels = cfg.Engine.ServiceLevels
	pipelineCfg.DefaultHorizon = cfg.Engine.DefaultHorizon
	if cfg.Pipeline.Workers > 0 {
		pipelineCfg.WorkerCount = cfg.Pipeline.Workers
	}
	runner, err := pipeline.NewRunner(baseline, reorderService, pipelineCfg, metrics)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid pipeline configuration")
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		ReorderService: reorderService,
		Defaults: handlers.ScenarioDefaults{
			LeadTimes:     cfg.Engine.LeadTimes,
			ServiceLevels: cfg.Engine.ServiceLevels,
		},
		Runs:      pipeline.NewOrchestrator(runner, metrics, pipeline.RepositorySink{Repo: decisionRepo}),
		RunSource: pipeline.RepositorySource{Demand: demandRepo, Inventory: inventoryRepo},
		Gatherer:  registry,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

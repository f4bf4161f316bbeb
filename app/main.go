package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/argus/app/api"
	"github.com/lysyi3m/argus/app/cfg"
	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/enrichment"
	"github.com/lysyi3m/argus/app/feed"
	"github.com/lysyi3m/argus/app/ingest"
	"github.com/lysyi3m/argus/app/ioc"
	"github.com/lysyi3m/argus/app/logging"
	"github.com/lysyi3m/argus/app/pipeline"
	"github.com/lysyi3m/argus/app/tasks"
)

func main() {
	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logging.Setup(appCfg.Debug)
	slog.Info("Starting Argus server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed sources", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed sources loaded", "count", configCache.GetConfigCount())

	articleRepo := database.NewArticleRepository(db)

	fetcher := feed.NewFetcher(&http.Client{}, appCfg.UserAgent)
	collector := ingest.NewCollector(configCache, fetcher, articleRepo)

	capability := enrichment.NewCapability(enrichment.Config{
		APIKey:   appCfg.GroqAPIKey,
		Endpoint: appCfg.GroqBaseURL,
		Model:    appCfg.GroqModel,
		Timeout:  appCfg.EnrichmentTimeoutDuration(),
	})

	orchestrator := pipeline.NewOrchestrator(articleRepo, capability, ioc.NewExtractor(),
		pipeline.WithSummaryMaxLength(appCfg.SummaryMaxLength),
		pipeline.WithBatchWorkers(appCfg.BatchWorkers),
	)

	scheduler := tasks.NewScheduler(collector, configCache, orchestrator, tasks.SchedulerConfig{
		Interval:    appCfg.SchedulerIntervalDuration(),
		WorkerCount: appCfg.WorkerCount,
		AutoProcess: appCfg.AutoProcess,
	})
	scheduler.Start()

	handler := api.NewHandler(articleRepo, collector, orchestrator, configCache, scheduler, api.Options{
		BaseUrl:      appCfg.BaseUrl,
		Port:         appCfg.Port,
		APIAccessKey: appCfg.APIAccessKey,
		Version:      appCfg.Version,
		AutoProcess:  appCfg.AutoProcess,
	})

	httpServer := &http.Server{
		Addr:    ":" + appCfg.Port,
		Handler: api.NewServer(handler),
		// Batch runs and ingestion are served synchronously.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening",
			"port", appCfg.Port,
			"auth_required", appCfg.APIAccessKey != "",
			"ai_enabled", capability.Enabled(),
			"scheduler_interval", appCfg.SchedulerIntervalDuration())

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Argus server shutdown complete")
}

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

	"github.com/rankpulse/rankpulse/app/analytics"
	"github.com/rankpulse/rankpulse/app/api"
	"github.com/rankpulse/rankpulse/app/cfg"
	"github.com/rankpulse/rankpulse/app/config"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/metrics"
	"github.com/rankpulse/rankpulse/app/pipeline"
	"github.com/rankpulse/rankpulse/app/providers"
	"github.com/rankpulse/rankpulse/app/scheduler"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RankPulse", "version", appCfg.Version)

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

	configCache := config.NewConfigCache(appCfg.ProjectsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load project configurations", "dir", appCfg.ProjectsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Project configurations loaded", "count", configCache.GetConfigCount())

	projectRepo := database.NewProjectRepo(db)
	keywordRepo := database.NewKeywordRepo(db)
	serpRepo := database.NewSerpRepo(db)
	gscRepo := database.NewGSCRepo(db)
	ctrRepo := database.NewCTRRepo(db)
	pullRepo := database.NewPullRepo(db)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	ranking, err := providers.NewSpaceSERPClient(httpClient)
	if err != nil {
		slog.Error("Failed to configure ranking provider", "error", err)
		os.Exit(1)
	}

	volume, err := providers.NewVolumeProvider(httpClient)
	if err != nil {
		slog.Error("Failed to configure volume provider", "error", err)
		os.Exit(1)
	}
	slog.Info("Providers configured", "volume_provider", volume.Name())

	fetcher := providers.NewFetcher(appCfg.FetchConcurrency, appCfg.FetchMaxRetries,
		time.Duration(appCfg.FetchBaseDelayMS)*time.Millisecond)

	metrics.Init()

	p := pipeline.New(fetcher, ranking, volume, httpClient, projectRepo, keywordRepo, serpRepo, gscRepo)

	ctrModel := analytics.NewCTRModel(projectRepo, gscRepo, ctrRepo)
	impact := analytics.NewImpactEstimator(projectRepo, keywordRepo, serpRepo, ctrModel)
	sov := analytics.NewSOVAggregator(serpRepo)

	sched := scheduler.NewScheduler(configCache, p, projectRepo, keywordRepo, pullRepo)
	sched.Start()
	defer sched.Stop()

	apiHandler := api.NewHandler(configCache, projectRepo, keywordRepo, serpRepo, gscRepo,
		pullRepo, ctrModel, impact, sov, p, sched)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
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

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

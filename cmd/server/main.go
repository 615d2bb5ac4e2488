package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/flyaway/api"
	dbfs "github.com/garnizeh/flyaway/db"
	"github.com/garnizeh/flyaway/internal/achievement"
	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/internal/db"
	"github.com/garnizeh/flyaway/internal/funfact"
	"github.com/garnizeh/flyaway/internal/location"
	"github.com/garnizeh/flyaway/internal/metrics"
	"github.com/garnizeh/flyaway/internal/repository/sqlite"
	"github.com/garnizeh/flyaway/internal/species"
	"github.com/garnizeh/flyaway/internal/storage"
	"github.com/garnizeh/flyaway/internal/submission"
	"github.com/garnizeh/flyaway/pkg/classifier"
	"github.com/garnizeh/flyaway/pkg/ollama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	api.SetLogger(logger)
	classifier.SetLogger(logger)
	ollama.SetLogger(logger)

	logger.Info("starting flyaway server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx := context.Background()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("error closing DB", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			return err
		}
	}

	files, err := storage.NewLocal(cfg.Uploads.Dir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cls, err := classifier.NewDefaultClient(cfg.Classifier)
	if err != nil {
		return err
	}
	defer cls.Close()

	gen, closeGen, err := funfact.NewGenerator(cfg.FunFact)
	if err != nil {
		return err
	}
	defer closeGen()
	facts := funfact.NewService(gen, cfg.FunFact.Provider, cfg.FunFact, logger, m)

	repo := sqlite.New(database, logger)
	engine := achievement.NewEngine(logger, m)
	orch := submission.New(repo, cls, files, facts, species.NewResolver(logger, m), engine, submission.Options{
		Concurrency:   cfg.Classifier.Concurrency,
		MinConfidence: cfg.Classifier.MinConfidence,
		Logger:        logger,
		Metrics:       m,
	})

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Store:      repo,
		Submitter:  orch,
		Locations:  location.NewService(repo, files, logger),
		Engine:     engine,
		Files:      files,
		Classifier: cls,
		Gatherer:   reg,
	})

	// Create HTTP server. Submissions wait on the classifier, so writes get
	// the classifier timeout on top of the API timeout.
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout + cfg.Classifier.Timeout + cfg.FunFact.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

// Command doccmp runs the document comparison service: an HTTP API that
// accepts two documents, diffs them asynchronously and serves the result.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/doccmp/convert"
	"github.com/hazyhaar/doccmp/dbopen"
	"github.com/hazyhaar/doccmp/httpapi"
	"github.com/hazyhaar/doccmp/job"
)

func main() {
	cfg, err := LoadConfig(env("CONFIG_FILE", ""))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Job database.
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("job db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry, err := job.NewRegistry(db, job.RegistryConfig{
		Visibility: cfg.Worker.Visibility(),
		Logger:     logger,
	})
	if err != nil {
		slog.Error("job registry", "error", err)
		os.Exit(1)
	}

	converter := convert.New(convert.Config{
		MaxFileSize: cfg.MaxFileBytes(),
		MaxPages:    cfg.MaxPages,
		Logger:      logger,
	})

	runner := job.NewRunner(job.RunnerConfig{
		Registry:  registry,
		Converter: converter,
		Logger:    logger,
	})

	worker := job.NewWorker(registry, runner, job.WorkerConfig{
		PollInterval: cfg.Worker.PollInterval(),
		Concurrency:  cfg.Worker.Concurrency,
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryDelay:   cfg.Worker.RetryDelay(),
		JobTimeout:   cfg.Worker.JobTimeout(),
		Logger:       logger,
	})
	go func() {
		if err := worker.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker stopped", "error", err)
		}
	}()

	api := httpapi.NewServer(registry, converter, httpapi.Config{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: 2*cfg.MaxFileBytes() + 1024*1024,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

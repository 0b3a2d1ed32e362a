package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/app"
	"github.com/kailas-cloud/scisearch/internal/config"
	logpkg "github.com/kailas-cloud/scisearch/internal/logger"
	"github.com/kailas-cloud/scisearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/scisearch/internal/transport/chi"
	"github.com/kailas-cloud/scisearch/internal/version"
)

func main() {
	// Optional .env for local runs; real environment variables win.
	_ = godotenv.Load()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting scisearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("encoder", cfg.Encoder.Provider),
		zap.String("corpus_driver", cfg.Corpus.Driver),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(),
		time.Duration(cfg.Encoder.TimeoutSec+cfg.Cache.ReadinessTimeout)*time.Second)
	application, err := app.New(startupCtx, cfg, logger)
	cancelStartup()
	if err != nil {
		logger.Fatal("Startup failed", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("Error releasing resources", zap.Error(err))
		}
	}()

	server := chiTransport.NewServer(application.Search, application.Health, logger)
	router := chiTransport.NewRouter(server, chiTransport.RouterOptions{
		RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
		Logger:         logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		logger.Error("HTTP server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

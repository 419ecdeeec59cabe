package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blueprint-editor/infrastructure/config"
	"blueprint-editor/infrastructure/di"
	"blueprint-editor/interfaces/http/rest"

	"go.uber.org/zap"
)

const (
	sessionSweepInterval = time.Minute
	metricsFlushInterval = time.Minute
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, level, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.ConfigFile != "" {
		watcher, err := config.NewWatcher(cfg.ConfigFile, level, logger)
		if err != nil {
			logger.Warn("Config overlay will not be watched", zap.String("path", cfg.ConfigFile), zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize container", zap.Error(err))
	}
	defer cleanup()

	go container.Hub.Run(ctx)
	go container.Sessions.Run(ctx, sessionSweepInterval)
	go reportSessions(ctx, container)
	if container.CloudWatch != nil {
		go container.CloudWatch.Run(ctx, metricsFlushInterval)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           rest.NewRouter(container).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.StorageBackend),
			zap.String("blobs", cfg.BlobBackend),
			zap.String("events", cfg.EventBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Stops the hub, the session sweeper and the metrics flusher
	cancel()
	if container.CloudWatch != nil {
		if err := container.CloudWatch.Flush(shutdownCtx); err != nil {
			logger.Warn("Final metrics flush failed", zap.Error(err))
		}
	}

	logger.Info("Server stopped")
}

// reportSessions keeps the open session gauge current
func reportSessions(ctx context.Context, c *di.Container) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Metrics.SetSessions(c.Sessions.Count())
		}
	}
}

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

	"flowboard/infrastructure/config"
	"flowboard/infrastructure/di"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	// Only the autosave delay is applied live; other settings need a restart.
	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		logger.Warn("Configuration hot reloading disabled", zap.Error(err))
	} else {
		watcher.OnChange(func(next *config.Config) {
			container.Sessions.SetAutosaveDelay(next.AutosaveDelay)
		})
		defer watcher.Stop()
	}

	go container.Sessions.RunEviction(ctx)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
			zap.String("auth", cfg.AuthMode),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Pending autosaves are written before the store connections close.
	container.Sessions.CloseAll(shutdownCtx)

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
	log.Println("Server stopped")
}

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/api"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/config"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/logging"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

// jobCleanupInterval is how often finished jobs are pruned.
const jobCleanupInterval = 10 * time.Minute

// RunServe runs the API server with the background scheduler.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	// Set up logging
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logging.NewLoggerWithSystem(loggingCfg, "storage")))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := service.NewReconcileService(cfg, store, logging.NewLoggerWithSystem(loggingCfg, "reconcile"))
	defer func() { _ = svc.Close() }()

	svc.StartCleanup(jobCleanupInterval)
	defer svc.StopCleanup()

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(svc, store, cfg.Scheduler.Interval,
			logging.NewLoggerWithSystem(loggingCfg, "scheduler"))
		scheduler.Start()
	}

	// Create API config
	apiCfg := api.Config{
		Port:               cfg.Server.Port,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RateLimitPerSecond: cfg.Server.RateLimitPerSecond,
		RateBurst:          cfg.Server.RateBurst,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	// Create and start server
	server := api.NewServer(apiCfg, svc, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	if scheduler != nil {
		scheduler.Stop()
	}
	svc.WaitJobs()
	logger.Info("server stopped")
	return nil
}

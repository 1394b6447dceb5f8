package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"greenwave/api"
	"greenwave/config"
	"greenwave/log"
	"greenwave/models"
	"greenwave/overlay"
	"greenwave/services"
	"greenwave/storage"
)

func main() {
	// Initialize structured logger
	logger := log.GetInstance()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize timezone used for log entries and episode timestamps
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	time.Local = loc

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	firebaseService, err := services.NewFirebaseService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase service", zap.Error(err))
	}

	// Episode history: PostgreSQL when configured, in-memory otherwise
	var pool *pgxpool.Pool
	var repo storage.EpisodeRepository = storage.NewMockRepository()
	if cfg.DatabaseURL != "" {
		dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err = pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(dbCtx)
		}
		dbCancel()
		if err != nil {
			logger.Warn("Could not connect to database, keeping episodes in memory", zap.Error(err))
			if pool != nil {
				pool.Close()
				pool = nil
			}
		} else {
			repo = storage.NewPostgresRepository(pool)
			logger.Info("Connected to PostgreSQL")
		}
	}

	// Command bus is optional
	var commandBus *services.CommandBusService
	var events services.RouteEventPublisher
	if cfg.RabbitMQURL != "" {
		commandBus, err = services.NewCommandBusService(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize command bus", zap.Error(err))
		}
		events = commandBus
	}

	dispatch := services.NewDispatchService(cfg.RoutingOptions(), firebaseService, events, repo, logger)
	if cfg.SignalControllerURL != "" {
		dispatch.SetSignalActuator(services.NewSignalControllerService(logger, cfg.SignalControllerURL))
		logger.Info("Signal controller gateway enabled", zap.String("url", cfg.SignalControllerURL))
	}
	operations := services.NewOperationsService(firebaseService, dispatch, logger)
	deviceHealth := services.NewDeviceHealthService(cfg, firebaseService, logger)
	positionWriter := services.NewPositionWriterService(cfg, firebaseService, logger)

	// Telemetry is optional
	var telemetry *services.TelemetryService
	if cfg.MQTTBroker != "" {
		telemetry, err = services.NewTelemetryService(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize telemetry service", zap.Error(err))
		}
		dispatch.Surface().Subscribe(func(frame overlay.Frame) {
			if err := telemetry.PublishFrame(frame); err != nil {
				logger.Warn("Failed to publish overlay frame", zap.Uint64("generation", frame.Generation), zap.Error(err))
			}
		})
	}

	logger.Info("Greenwave dispatch service started",
		zap.Float64("on_route_threshold_km", cfg.OnRouteThresholdKm),
		zap.Float64("eta_minutes_per_km", cfg.ETAMinutesPerKm),
		zap.Bool("mqtt_enabled", telemetry != nil),
		zap.Bool("rabbitmq_enabled", commandBus != nil),
		zap.Bool("postgres_enabled", pool != nil),
	)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal when cleanup is complete
	cleanupDone := make(chan bool, 1)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping services")

		// Cancel context to stop all goroutines
		cancel()

		// Wait for cleanup to complete or timeout
		select {
		case <-cleanupDone:
			logger.Info("Cleanup completed successfully")
		case <-time.After(5 * time.Second):
			logger.Warn("Cleanup timeout, forcing exit")
		}

		logger.Info("Greenwave dispatch service stopped")
		os.Exit(0)
	}()

	// Redraw the overlay whenever state changes
	go dispatch.Surface().Run(ctx)

	// Subscribe to realtime database snapshots
	err = firebaseService.SubscribeToSnapshots(ctx, func(update models.SnapshotUpdate) {
		dispatch.ApplySnapshot(update)
		if update.Devices != nil {
			deviceHealth.Track(update.Devices)
		}
	})
	if err != nil {
		logger.Fatal("Failed to subscribe to snapshots", zap.Error(err))
	}

	// GPS fixes move ambulances locally and are batched back to the database
	fixes := make(chan models.PositionFix, cfg.PositionBatchSize)
	go positionWriter.Start(ctx, fixes)
	if telemetry != nil {
		go deviceHealth.Start(ctx, telemetry.Pings())
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case fix := <-telemetry.Positions():
					if !dispatch.ApplyPositionFix(fix) {
						continue
					}
					select {
					case fixes <- fix:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	} else {
		go deviceHealth.Start(ctx, nil)
	}

	if commandBus != nil {
		go func() {
			if err := commandBus.Consume(ctx, dispatch); err != nil {
				logger.Error("Command consumer stopped", zap.Error(err))
			}
		}()
	}

	// HTTP API
	app := api.NewApp(dispatch, operations, deviceHealth, repo, cfg.CORSOrigins)
	go func() {
		logger.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("Dispatch started, waiting for commands")

	// Wait for shutdown signal
	<-ctx.Done()

	// Perform cleanup
	logger.Info("Starting cleanup")

	if err := app.ShutdownWithTimeout(2 * time.Second); err != nil {
		logger.Warn("HTTP server forced to shutdown", zap.Error(err))
	}
	if !positionWriter.WaitForShutdown(3 * time.Second) {
		logger.Warn("Position writer did not finish its final flush")
	}
	if telemetry != nil {
		telemetry.Close()
	}
	if commandBus != nil {
		if err := commandBus.Close(); err != nil {
			logger.Error("Error closing command bus", zap.Error(err))
		}
	}
	if pool != nil {
		pool.Close()
	}

	// Close Firebase service
	if err := firebaseService.Close(); err != nil {
		logger.Error("Error closing Firebase service", zap.Error(err))
	} else {
		logger.Info("Firebase service closed")
	}

	// Signal cleanup completion
	cleanupDone <- true
}

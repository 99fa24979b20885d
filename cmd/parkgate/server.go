package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/parkgate/internal/anpr"
	"github.com/goodtune/parkgate/internal/config"
	"github.com/goodtune/parkgate/internal/engine"
	"github.com/goodtune/parkgate/internal/gate"
	"github.com/goodtune/parkgate/internal/hardware"
	"github.com/goodtune/parkgate/internal/metrics"
	"github.com/goodtune/parkgate/internal/snapshot"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/goodtune/parkgate/internal/storage/bolt"
	"github.com/goodtune/parkgate/internal/storage/redis"
	"github.com/goodtune/parkgate/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ParkGate engine",
	Long:  `Start the ParkGate engine: recognition control loop, gate controller, session storage and metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ParkGate")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize gate controller with lane actuators
	gates := gate.NewController(config.Duration(cfg.Gates.AutoCloseDelay, 5*time.Second), logger)
	if !cfg.Hardware.Simulated {
		// GPIO drivers plug in behind hardware.Actuator; none are compiled
		// into this build, so real mode falls back to simulation.
		logger.Warn().Msg("No hardware driver compiled in, using simulated actuators and sensors")
	}
	gates.Register(gate.Entrance, hardware.NewSimulatedActuator("entrance", logger))
	gates.Register(gate.Exit, hardware.NewSimulatedActuator("exit", logger))

	sensors := map[gate.ID]hardware.ProximitySensor{
		gate.Entrance: hardware.NewSimulatedSensor(),
		gate.Exit:     hardware.NewSimulatedSensor(),
	}

	// Initialize recognition pipeline
	capture := anpr.NewSimulatedCapture(cfg.Camera.FPS)
	pipeline := anpr.NewSimulatedPipeline()

	logger.Info().
		Int("camera_index", cfg.Camera.Index).
		Int("width", cfg.Camera.Width).
		Int("height", cfg.Camera.Height).
		Int("fps", cfg.Camera.FPS).
		Msg("Recognition pipeline initialized")

	// Initialize coordinator
	saver := snapshot.New(cfg.Images.Dir, cfg.Images.Save, logger)
	fees := storage.FeeSchedule{
		Tier1:           cfg.Fees.Tier1,
		Tier2:           cfg.Fees.Tier2,
		BoundaryMinutes: cfg.Fees.BoundaryMinutes,
		Currency:        cfg.Fees.Currency,
	}

	coordinator, err := engine.NewCoordinator(
		store,
		gates,
		saver,
		fees,
		config.Duration(cfg.Debounce.Window, 5*time.Second),
		cfg.Debounce.MaxEntries,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize coordinator: %w", err)
	}

	logger.Info().
		Float64("tier1", fees.Tier1).
		Float64("tier2", fees.Tier2).
		Int("boundary_minutes", fees.BoundaryMinutes).
		Str("currency", fees.Currency).
		Msg("Coordinator initialized")

	// Initialize control loop
	loop := engine.NewLoop(capture, pipeline, pipeline, sensors, coordinator, engine.LoopConfig{
		ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
		FrameTimeout:        config.Duration(cfg.Detection.FrameTimeout, 500*time.Millisecond),
		OpenDistanceCm:      cfg.Gates.OpenDistanceCm,
	}, logger)

	// Initialize retention sweeper
	sweeper, err := engine.NewRetentionSweeper(store.Events(), cfg.Events.RetentionDays, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize retention sweeper: %w", err)
	}
	sweeper.Start()

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	// Run the control loop until shutdown
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	logger.Info().Msg("ParkGate startup complete")
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop the loop first so no new writes start, then the rest
	cancel()
	if err := <-loopDone; err != nil {
		logger.Error().Err(err).Msg("Control loop exited with error")
	}

	sweeper.Stop()

	if err := capture.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing capture")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("ParkGate stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skypro1111/stt-stream-service/internal/config"
	"github.com/skypro1111/stt-stream-service/internal/metrics"
	"github.com/skypro1111/stt-stream-service/internal/server"
	"github.com/skypro1111/stt-stream-service/internal/storage"
	"github.com/skypro1111/stt-stream-service/internal/stream"
	"github.com/skypro1111/stt-stream-service/internal/transcription"
	"github.com/skypro1111/stt-stream-service/internal/worker"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "stt-stream-service"
	serviceVersion    = "1.0.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stt-server",
	Short: "Streaming speech-to-text service",
	Long: `Accepts float32 audio over a websocket, segments it on silence and
streams interim and final transcriptions back to the client. Also serves
batch WAV uploads and a monitoring API.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the service version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	// Configuration summary without secrets
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_concurrent_streams", cfg.Server.MaxConcurrentStreams),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("silence_threshold", cfg.VAD.SilenceThreshold),
		slog.Int("silence_chunks", cfg.VAD.SilenceChunks),
		slog.Int("interim_every", cfg.VAD.InterimEvery),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", slog.String("driver", cfg.Storage.Driver))

	// The backend is created on first use, not here
	engine := transcription.NewShared(
		transcription.NewFactory(cfg.Transcription, logger),
		cfg.Transcription.MaxConcurrent,
		logger,
		appMetrics,
	)

	pool, err := worker.NewPool(cfg.Transcription.Workers, cfg.Transcription.QueueSize, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	sessions, err := stream.NewManager(stream.ManagerConfig{
		Session: stream.SessionConfig{
			SampleRate:           cfg.Audio.SampleRate,
			SilenceThreshold:     cfg.VAD.SilenceThreshold,
			SilenceChunks:        cfg.VAD.SilenceChunks,
			InterimEvery:         cfg.VAD.InterimEvery,
			TranscriptionTimeout: cfg.Transcription.GetTimeoutDuration(),
		},
		MaxSessions: cfg.Server.MaxConcurrentStreams,
		IdleTimeout: cfg.Audio.GetStreamTimeoutDuration(),
	}, engine, pool, logger, appMetrics)
	if err != nil {
		pool.Stop()
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	logger.Info("Session manager initialized",
		slog.Duration("stream_timeout", cfg.Audio.GetStreamTimeoutDuration()),
		slog.Int("max_sessions", cfg.Server.MaxConcurrentStreams),
	)

	httpServer, err := server.NewHTTPServer(cfg, server.Dependencies{
		Sessions: sessions,
		Engine:   engine,
		Pool:     pool,
		Store:    store,
		Metrics:  appMetrics,
	}, logger)
	if err != nil {
		sessions.Stop()
		pool.Stop()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if err := httpServer.Start(); err != nil {
		sessions.Stop()
		pool.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop accepting new connections and uploads first
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Close live sessions and their websocket connections
	sessions.Stop()

	// Let in-flight transcriptions finish
	pool.Stop()

	poolStats := pool.GetStats()
	engineStats := engine.GetStats()
	logger.Info("Final service statistics",
		slog.Uint64("jobs_completed", poolStats.Completed),
		slog.Uint64("jobs_rejected", poolStats.Rejected),
		slog.Uint64("transcription_requests", engineStats.TotalRequests),
		slog.Uint64("transcription_failures", engineStats.FailedRequests),
	)

	logger.Info("Service stopped")
	return nil
}

// initLogger initializes structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Anything else is a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

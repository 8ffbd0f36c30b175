package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/inxilpro/chronicle/internal/audio"
	"github.com/inxilpro/chronicle/internal/capture"
	"github.com/inxilpro/chronicle/internal/config"
	"github.com/inxilpro/chronicle/internal/metrics"
	"github.com/inxilpro/chronicle/internal/model"
	"github.com/inxilpro/chronicle/internal/server"
	"github.com/inxilpro/chronicle/internal/session"
	"github.com/inxilpro/chronicle/internal/speech/whispercpp"
	"github.com/inxilpro/chronicle/internal/transcribe"
	"github.com/inxilpro/chronicle/internal/transcript"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "chronicle"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	device := flag.String("device", "", "Input device name (substring match, overrides config)")
	listDevices := flag.Bool("list-devices", false, "List input-capable audio devices and exit")
	flag.Parse()

	// Load configuration; a missing default config file falls back to
	// built-in defaults so the binary runs without any setup.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && *configPath == defaultConfigPath {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Capture.Device = *device
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	opener := capture.NewPortAudioOpener()
	defer opener.Terminate()

	queue := audio.NewChunkQueue()
	appMetrics := metrics.New()

	captureEngine := capture.NewEngine(capture.Config{
		BlockDuration: cfg.Capture.GetBlockDuration(),
		Policy: audio.ChunkPolicy{
			MinChunkDuration: cfg.Chunking.GetMinChunkDuration(),
			MaxChunkDuration: cfg.Chunking.GetMaxChunkDuration(),
			SilenceThreshold: cfg.Chunking.SilenceThreshold,
			SilenceDuration:  cfg.Chunking.GetSilenceDuration(),
		},
		DumpDir: cfg.Capture.DumpDir,
	}, opener, queue, logger, appMetrics)

	if *listDevices {
		devices, err := captureEngine.ListDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Printf("%3d  %-40s  %d ch  %.0f Hz\n", d.ID, d.Name, d.Channels, d.DefaultSampleRate)
		}
		return
	}

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.String("model_variant", cfg.Model.Variant),
		slog.String("language", cfg.Transcription.Language),
		slog.Float64("min_chunk_duration", cfg.Chunking.MinChunkDuration),
		slog.Float64("max_chunk_duration", cfg.Chunking.MaxChunkDuration),
		slog.Float64("silence_threshold", cfg.Chunking.SilenceThreshold),
		slog.String("transcript_output", cfg.Transcript.Output),
		slog.String("log_level", cfg.Logging.Level),
	)

	sink, err := transcript.NewFileSink(cfg.Transcript.Output)
	if err != nil {
		logger.Error("Failed to open transcript output", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sink.Close()

	// Progress reports cumulative bytes; feed the counter deltas.
	// Downloads are single-flight, so a plain closure variable is safe.
	var lastRead int64
	models := model.NewManager(model.ManagerConfig{
		Dir:     cfg.Model.Dir,
		Timeout: cfg.Model.GetDownloadTimeout(),
		Progress: func(variant string, read, total int64) {
			if read < lastRead {
				lastRead = 0
			}
			appMetrics.RecordDownloadBytes(read - lastRead)
			lastRead = read
		},
	}, logger)

	transcribeEngine := transcribe.NewEngine(transcribe.Config{
		Language:     cfg.Transcription.Language,
		PollInterval: cfg.Transcription.GetPollInterval(),
		Threads:      cfg.Transcription.Threads,
	}, whispercpp.New, queue, sink, logger, appMetrics)
	defer transcribeEngine.Close()

	controller := session.NewController(cfg.Model.Variant, models, captureEngine,
		transcribeEngine, logger, appMetrics)

	// Monitoring HTTP server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, controller,
			captureEngine, transcribeEngine, models, queue, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Resolve the model and start recording
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Start(ctx, cfg.Capture.Device); err != nil {
		logger.Error("Failed to start recording session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Recording, waiting for signals...",
		slog.String("device", cfg.Capture.Device),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop the session first: halts capture, drains every queued chunk.
	if err := controller.Stop(); err != nil {
		logger.Error("Error stopping recording session", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Final statistics
	captureStats := captureEngine.Stats()
	transcribeStats := transcribeEngine.Stats()
	queueStats := queue.Stats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("chunks_produced", captureStats.Chunker.ChunksEmitted),
		slog.Uint64("chunks_pushed", queueStats.Pushed),
		slog.Uint64("chunks_processed", transcribeStats.ChunksProcessed),
		slog.Uint64("chunks_failed", transcribeStats.ChunksFailed),
		slog.Uint64("segments_emitted", transcribeStats.SegmentsEmitted),
		slog.Uint64("segments_filtered", transcribeStats.SegmentsFiltered),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
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
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination; file paths get size-based rotation
	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inxilpro/chronicle/internal/audio"
	"github.com/inxilpro/chronicle/internal/capture"
	"github.com/inxilpro/chronicle/internal/config"
	"github.com/inxilpro/chronicle/internal/metrics"
	"github.com/inxilpro/chronicle/internal/model"
	"github.com/inxilpro/chronicle/internal/session"
	"github.com/inxilpro/chronicle/internal/transcribe"
)

// HTTPServer provides the monitoring HTTP API.
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics

	controller  *session.Controller
	capturer    *capture.Engine
	transcriber *transcribe.Engine
	models      *model.Manager
	queue       *audio.ChunkQueue

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates the monitoring API server.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	controller *session.Controller, capturer *capture.Engine, transcriber *transcribe.Engine,
	models *model.Manager, queue *audio.ChunkQueue, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		metrics:     m,
		controller:  controller,
		capturer:    capturer,
		transcriber: transcriber,
		models:      models,
		queue:       queue,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session and pipeline status
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Input device enumeration
	mux.HandleFunc("/devices", h.withMetrics("/devices", h.handleDevices))

	// Model catalogue
	mux.HandleFunc("/models", h.withMetrics("/models", h.handleModels))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Capture the status code for labeling
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting monitoring HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping monitoring HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "chronicle",
			"version": "1.0.0",
		},
		"session": map[string]interface{}{
			"state":      h.controller.State(),
			"last_error": h.controller.LastError(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"session": map[string]interface{}{
			"state":      h.controller.State(),
			"last_error": h.controller.LastError(),
		},
		"capture":       h.capturer.Stats(),
		"queue":         h.queue.Stats(),
		"transcription": h.transcriber.Stats(),
		"model":         h.models.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"capture": map[string]interface{}{
			"device":            h.config.Capture.Device,
			"block_duration_ms": h.config.Capture.BlockDurationMS,
			"dump_dir":          h.config.Capture.DumpDir,
		},
		"chunking": map[string]interface{}{
			"min_chunk_duration": h.config.Chunking.MinChunkDuration,
			"max_chunk_duration": h.config.Chunking.MaxChunkDuration,
			"silence_threshold":  h.config.Chunking.SilenceThreshold,
			"silence_duration":   h.config.Chunking.SilenceDuration,
		},
		"model": map[string]interface{}{
			"variant":          h.config.Model.Variant,
			"dir":              h.config.Model.Dir,
			"download_timeout": h.config.Model.DownloadTimeout,
		},
		"transcription": map[string]interface{}{
			"language":      h.config.Transcription.Language,
			"poll_interval": h.config.Transcription.PollInterval,
			"threads":       h.config.Transcription.Threads,
		},
		"transcript": map[string]interface{}{
			"output": h.config.Transcript.Output,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleDevices implements the /devices endpoint
func (h *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := h.capturer.ListDevices()
	if err != nil {
		h.logger.Error("Failed to enumerate devices", slog.String("error", err.Error()))
		http.Error(w, "Device enumeration failed", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_devices": len(devices),
		"timestamp":     time.Now().UTC(),
		"devices":       devices,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleModels implements the /models endpoint
func (h *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	descriptors := h.models.Catalogue()
	entries := make([]map[string]interface{}, 0, len(descriptors))
	for _, d := range descriptors {
		entries = append(entries, map[string]interface{}{
			"variant":       d.Variant,
			"file_name":     d.FileName,
			"expected_size": d.ExpectedSize,
			"description":   d.Description,
			"ready":         h.models.IsReady(d.Variant),
		})
	}

	response := map[string]interface{}{
		"total_models": len(entries),
		"timestamp":    time.Now().UTC(),
		"models":       entries,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Chronicle Transcription Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /status":  "Session state and pipeline statistics",
			"GET /config":  "Get service configuration",
			"GET /devices": "List input-capable audio devices",
			"GET /models":  "Model catalogue and readiness",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}

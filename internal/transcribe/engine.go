package transcribe

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inxilpro/chronicle/internal/audio"
	"github.com/inxilpro/chronicle/internal/metrics"
	"github.com/inxilpro/chronicle/internal/speech"
	"github.com/inxilpro/chronicle/internal/transcript"
)

// ErrNotInitialized means processing was requested before the model was
// loaded. The request is rejected; no state changes.
var ErrNotInitialized = errors.New("transcription engine not initialized")

// stopPollInterval and stopPollLimit bound the wait for an in-flight drain
// during shutdown. Worst case is roughly one chunk's inference time.
const (
	stopPollInterval = 50 * time.Millisecond
	stopPollLimit    = 10 * time.Second
)

// Config contains transcription engine parameters.
type Config struct {
	Language     string
	PollInterval time.Duration
	Threads      int
}

// Engine drains the chunk queue on a periodic schedule, runs each chunk
// through the speech engine, and emits filtered, timestamp-corrected
// segments to the transcript sink.
type Engine struct {
	cfg     Config
	factory speech.Factory
	queue   *audio.ChunkQueue
	sink    transcript.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	engineMu sync.Mutex
	engine   speech.Engine

	// processing guards the drain: a scheduled tick that fires while a
	// previous drain is still running is a no-op, relying on the next
	// tick to catch up.
	processing atomic.Bool

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	statsMu          sync.Mutex
	drains           uint64
	chunksProcessed  uint64
	chunksFailed     uint64
	segmentsEmitted  uint64
	segmentsFiltered uint64
}

// EngineStats is a snapshot of transcription activity for monitoring.
type EngineStats struct {
	Initialized      bool   `json:"initialized"`
	Running          bool   `json:"running"`
	Drains           uint64 `json:"drains"`
	ChunksProcessed  uint64 `json:"chunks_processed"`
	ChunksFailed     uint64 `json:"chunks_failed"`
	SegmentsEmitted  uint64 `json:"segments_emitted"`
	SegmentsFiltered uint64 `json:"segments_filtered"`
}

// NewEngine creates a transcription engine draining queue into sink. The
// speech engine itself is constructed lazily by Initialize via factory.
func NewEngine(cfg Config, factory speech.Factory, queue *audio.ChunkQueue,
	sink transcript.Sink, logger *slog.Logger, m *metrics.Metrics) *Engine {

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	return &Engine{
		cfg:     cfg,
		factory: factory,
		queue:   queue,
		sink:    sink,
		logger:  logger,
		metrics: m,
	}
}

// Initialize loads the inference context once. Calling it again while
// already initialized is a no-op that logs a warning.
func (e *Engine) Initialize(modelPath string) error {
	e.engineMu.Lock()
	defer e.engineMu.Unlock()

	if e.engine != nil {
		e.logger.Warn("Transcription engine already initialized, ignoring",
			slog.String("model_path", modelPath),
		)
		return nil
	}

	eng, err := e.factory(speech.Config{
		ModelPath: modelPath,
		Language:  e.cfg.Language,
		Threads:   e.cfg.Threads,
	})
	if err != nil {
		return fmt.Errorf("failed to load speech engine: %w", err)
	}

	e.engine = eng
	e.logger.Info("Transcription engine initialized",
		slog.String("model_path", modelPath),
		slog.String("language", e.cfg.Language),
	)
	return nil
}

// Initialized reports whether the inference context is loaded.
func (e *Engine) Initialized() bool {
	e.engineMu.Lock()
	defer e.engineMu.Unlock()
	return e.engine != nil
}

// StartProcessing schedules the periodic queue drain. It fails with
// ErrNotInitialized when the model is not loaded and does nothing if the
// scheduler is already running.
func (e *Engine) StartProcessing() error {
	if !e.Initialized() {
		return ErrNotInitialized
	}

	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("Transcription scheduler already running, ignoring start")
		return nil
	}

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.run()

	e.logger.Info("Transcription scheduler started",
		slog.Duration("poll_interval", e.cfg.PollInterval),
	)
	return nil
}

func (e *Engine) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Drain()
		}
	}
}

// StopProcessing cancels the periodic task, waits (bounded) for any
// in-flight drain to finish, then performs one final synchronous drain so
// no queued chunk is lost.
func (e *Engine) StopProcessing() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	close(e.stopCh)
	<-e.doneCh

	deadline := time.Now().Add(stopPollLimit)
	for e.processing.Load() && time.Now().Before(deadline) {
		time.Sleep(stopPollInterval)
	}

	e.Drain()
	e.logger.Info("Transcription scheduler stopped")
}

// Drain pops and processes queued chunks until the queue is empty. At most
// one drain runs at a time; overlapping calls return immediately.
func (e *Engine) Drain() {
	if !e.processing.CompareAndSwap(false, true) {
		return
	}
	defer e.processing.Store(false)

	e.engineMu.Lock()
	eng := e.engine
	e.engineMu.Unlock()
	if eng == nil {
		return
	}

	e.statsMu.Lock()
	e.drains++
	e.statsMu.Unlock()
	e.metrics.RecordDrain()

	for {
		chunk, ok := e.queue.Pop()
		if !ok {
			break
		}
		e.metrics.SetQueueDepth(e.queue.Len())

		// A single bad chunk must never abort the drain loop.
		if err := e.processChunk(eng, chunk); err != nil {
			e.logger.Error("Failed to process chunk, discarding",
				slog.String("chunk_id", chunk.ID),
				slog.Duration("chunk_duration", chunk.Duration),
				slog.String("error", err.Error()),
			)
			e.metrics.RecordChunkFailure()
			e.statsMu.Lock()
			e.chunksFailed++
			e.statsMu.Unlock()
		}
	}
}

// processChunk converts, pads, transcribes, and emits one chunk.
func (e *Engine) processChunk(eng speech.Engine, chunk *audio.Chunk) error {
	samples := audio.BytesToFloat32(chunk.Data)
	if len(samples) == 0 {
		e.logger.Debug("Skipping chunk with no decodable samples",
			slog.String("chunk_id", chunk.ID),
		)
		return nil
	}

	// The model needs at least a second of context to run at all.
	if len(samples) < speech.MinSamples {
		samples = append(samples, make([]float32, speech.MinSamples-len(samples))...)
	}

	start := time.Now()
	segments, err := eng.Transcribe(samples)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	e.metrics.RecordChunkTranscribed(time.Since(start).Seconds())

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if IsNonSpeech(text) {
			e.metrics.RecordSegment(true)
			e.statsMu.Lock()
			e.segmentsFiltered++
			e.statsMu.Unlock()
			continue
		}

		event := transcript.Event{
			Type:       transcript.EventTranscription,
			Timestamp:  chunk.CapturedAt.Add(time.Duration(seg.Start) * speech.TickDuration),
			DurationMS: (time.Duration(seg.End-seg.Start) * speech.TickDuration).Milliseconds(),
			Text:       text,
			Language:   e.cfg.Language,
			Confidence: seg.Confidence,
			ChunkID:    chunk.ID,
		}

		// Backfilled: the segment was spoken earlier than it is logged.
		if err := e.sink.Log(event, true); err != nil {
			e.logger.Warn("Failed to log transcript event",
				slog.String("chunk_id", chunk.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		e.metrics.RecordSegment(false)
		e.statsMu.Lock()
		e.segmentsEmitted++
		e.statsMu.Unlock()
	}

	e.statsMu.Lock()
	e.chunksProcessed++
	e.statsMu.Unlock()
	return nil
}

// Close stops the scheduler if running and releases the inference context.
func (e *Engine) Close() error {
	e.StopProcessing()

	e.engineMu.Lock()
	defer e.engineMu.Unlock()

	if e.engine == nil {
		return nil
	}
	err := e.engine.Close()
	e.engine = nil
	return err
}

// Stats returns a snapshot of transcription activity.
func (e *Engine) Stats() EngineStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	return EngineStats{
		Initialized:      e.Initialized(),
		Running:          e.running.Load(),
		Drains:           e.drains,
		ChunksProcessed:  e.chunksProcessed,
		ChunksFailed:     e.chunksFailed,
		SegmentsEmitted:  e.segmentsEmitted,
		SegmentsFiltered: e.segmentsFiltered,
	}
}

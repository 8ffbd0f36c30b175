package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inxilpro/chronicle/internal/audio"
	"github.com/inxilpro/chronicle/internal/metrics"
)

var (
	// ErrDeviceUnavailable means the capture line could not be opened.
	// Fatal to starting a session; state is left unchanged.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")
	// ErrAlreadyRecording means a capture loop is already running. Two
	// overlapping capture engines are never allowed.
	ErrAlreadyRecording = errors.New("capture already running")
)

// joinTimeout bounds the wait for the capture loop to exit on stop.
const joinTimeout = 2 * time.Second

// Device describes one input-capable audio device.
type Device struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	Channels          int     `json:"channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// Line is an open capture line. Read fills dst with the next block of
// samples, blocking until enough audio is available.
type Line interface {
	Read(dst []int16) error
	Close() error
}

// Opener opens capture lines and enumerates input devices.
type Opener interface {
	// Open opens a 16 kHz mono line on the named device; an empty or
	// unresolvable name selects the default input device.
	Open(device string, sampleRate, blockFrames int) (Line, error)
	Devices() ([]Device, error)
}

// Config contains capture engine parameters.
type Config struct {
	BlockDuration time.Duration
	Policy        audio.ChunkPolicy
	DumpDir       string // write each chunk as a WAV file when set
}

// Engine owns the capture line and its dedicated loop.
type Engine struct {
	cfg     Config
	opener  Opener
	queue   *audio.ChunkQueue
	logger  *slog.Logger
	metrics *metrics.Metrics

	recording atomic.Bool

	mu      sync.Mutex
	line    Line
	chunker *audio.Chunker
	stopCh  chan struct{}
	doneCh  chan struct{}

	blocksRead uint64
	readErrors uint64
}

// EngineStats is a snapshot of capture activity for monitoring.
type EngineStats struct {
	Recording  bool               `json:"recording"`
	BlocksRead uint64             `json:"blocks_read"`
	ReadErrors uint64             `json:"read_errors"`
	Chunker    audio.ChunkerStats `json:"chunker"`
}

// NewEngine creates a capture engine pushing into queue.
func NewEngine(cfg Config, opener Opener, queue *audio.ChunkQueue,
	logger *slog.Logger, m *metrics.Metrics) *Engine {

	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 100 * time.Millisecond
	}

	return &Engine{
		cfg:     cfg,
		opener:  opener,
		queue:   queue,
		logger:  logger,
		metrics: m,
	}
}

// Start opens the capture line and spawns the capture loop. The line is
// opened at 16 kHz mono; device selects by name with the default input as
// fallback.
func (e *Engine) Start(device string) error {
	if !e.recording.CompareAndSwap(false, true) {
		return ErrAlreadyRecording
	}

	frames := int(audio.SampleRate * e.cfg.BlockDuration / time.Second)
	line, err := e.opener.Open(device, audio.SampleRate, frames)
	if err != nil {
		e.recording.Store(false)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	e.mu.Lock()
	e.line = line
	e.chunker = audio.NewChunker(e.cfg.Policy)
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.loop(line, frames)

	e.logger.Info("Capture started",
		slog.String("device", device),
		slog.Int("block_frames", frames),
	)
	return nil
}

// loop is the dedicated capture loop: blocking reads from the line,
// RMS-driven chunking, non-blocking pushes onto the queue. Exit is
// signaled cooperatively via stopCh and checked every iteration.
func (e *Engine) loop(line Line, frames int) {
	defer close(e.doneCh)

	samples := make([]int16, frames)
	block := make([]byte, frames*audio.BytesPerSample)

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		if err := line.Read(samples); err != nil {
			select {
			case <-e.stopCh:
				return
			default:
			}
			e.mu.Lock()
			e.readErrors++
			e.mu.Unlock()
			e.logger.Warn("Capture read failed", slog.String("error", err.Error()))
			time.Sleep(e.cfg.BlockDuration)
			continue
		}

		for i, s := range samples {
			binary.LittleEndian.PutUint16(block[i*audio.BytesPerSample:], uint16(s))
		}

		e.mu.Lock()
		e.blocksRead++
		chunker := e.chunker
		e.mu.Unlock()

		if chunk := chunker.Feed(block, time.Now()); chunk != nil {
			e.emit(chunk)
		}
	}
}

// Stop signals the loop to exit, joins it with a bounded timeout, closes
// the line, and flushes any partially filled buffer as a final chunk even
// if shorter than the minimum chunk duration.
func (e *Engine) Stop() error {
	if !e.recording.CompareAndSwap(true, false) {
		return nil
	}

	e.mu.Lock()
	stopCh, doneCh := e.stopCh, e.doneCh
	line, chunker := e.line, e.chunker
	e.line = nil
	e.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(joinTimeout):
		e.logger.Warn("Capture loop did not exit within timeout, closing line anyway")
	}

	if err := line.Close(); err != nil {
		e.logger.Warn("Failed to close capture line", slog.String("error", err.Error()))
	}

	if chunk := chunker.Flush(time.Now()); chunk != nil {
		e.emit(chunk)
	}

	e.logger.Info("Capture stopped")
	return nil
}

// Recording reports whether the capture loop is active.
func (e *Engine) Recording() bool {
	return e.recording.Load()
}

// emit pushes a finished chunk and optionally dumps it as a WAV file.
func (e *Engine) emit(chunk *audio.Chunk) {
	e.queue.Push(chunk)
	e.metrics.RecordChunkProduced(chunk.Duration.Seconds(), len(chunk.Data))
	e.metrics.SetQueueDepth(e.queue.Len())

	e.logger.Debug("Chunk emitted",
		slog.String("chunk_id", chunk.ID),
		slog.Duration("duration", chunk.Duration),
		slog.Int("bytes", len(chunk.Data)),
	)

	if e.cfg.DumpDir != "" {
		e.dumpChunk(chunk)
	}
}

// dumpChunk writes the chunk as a WAV file for troubleshooting. Failures
// are logged and ignored; dumps never affect the pipeline.
func (e *Engine) dumpChunk(chunk *audio.Chunk) {
	wav, err := audio.EncodeWAV(chunk.Data, audio.SampleRate)
	if err != nil {
		e.logger.Warn("Failed to encode chunk dump", slog.String("error", err.Error()))
		return
	}

	name := fmt.Sprintf("%s_%s.wav", chunk.CapturedAt.Format("20060102T150405"), chunk.ID)
	path := filepath.Join(e.cfg.DumpDir, name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		e.logger.Warn("Failed to write chunk dump",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// ListDevices enumerates input-capable devices without opening them.
func (e *Engine) ListDevices() ([]Device, error) {
	return e.opener.Devices()
}

// Stats returns a snapshot of capture activity.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := EngineStats{
		Recording:  e.recording.Load(),
		BlocksRead: e.blocksRead,
		ReadErrors: e.readErrors,
	}
	if e.chunker != nil {
		stats.Chunker = e.chunker.Stats()
	}
	return stats
}

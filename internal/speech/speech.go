package speech

import "time"

// TickDuration is the resolution of segment offsets: the model reports
// segment boundaries in ten-millisecond units relative to the start of the
// processed buffer.
const TickDuration = 10 * time.Millisecond

// MinSamples is the smallest input buffer the model accepts: one second of
// audio at 16 kHz, with a small safety margin. Shorter buffers must be
// zero-padded up to this length before inference.
const MinSamples = 16100

// Segment is one span of transcribed text as reported by the engine.
// Start and End are offsets from the beginning of the processed buffer in
// TickDuration units.
type Segment struct {
	Text       string
	Start      int64
	End        int64
	Confidence float32
}

// Config contains engine construction parameters. Language is pinned;
// auto-detection and translation are not used by the pipeline.
type Config struct {
	ModelPath string
	Language  string
	Threads   int // 0 uses the engine default
}

// Engine runs batch inference over normalized float32 samples and returns
// segment-level output. Implementations need not be safe for concurrent
// Transcribe calls; the transcription engine serializes its drains.
type Engine interface {
	Transcribe(samples []float32) ([]Segment, error)
	Close() error
}

// Factory constructs an Engine from configuration. The session controller
// is wired with the whispercpp factory in production and a fake in tests.
type Factory func(cfg Config) (Engine, error)

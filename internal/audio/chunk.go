package audio

import (
	"bytes"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// Audio format used throughout the pipeline: 16 kHz mono PCM16LE.
const (
	SampleRate     = 16000
	Channels       = 1
	BitDepth       = 16
	BytesPerSample = 2
)

// Chunk is an immutable segment of captured raw audio bounded by the
// silence/duration policy. It is created by the capture loop, owned by the
// queue while pending, and consumed exactly once by the transcription
// engine. The data buffer must never be mutated after creation.
type Chunk struct {
	ID         string        `json:"chunk_id"`
	Data       []byte        `json:"-"` // PCM16LE, 16 kHz mono
	CapturedAt time.Time     `json:"captured_at"`
	Duration   time.Duration `json:"duration"`
}

// NewChunk builds a chunk from raw PCM16LE bytes. The buffer is copied so
// the caller may reuse its accumulation buffer. Duration is derived from
// the sample count, which matches elapsed capture time for a healthy line.
func NewChunk(data []byte, capturedAt time.Time) *Chunk {
	buf := make([]byte, len(data))
	copy(buf, data)

	samples := len(buf) / BytesPerSample
	return &Chunk{
		ID:         uuid.NewString(),
		Data:       buf,
		CapturedAt: capturedAt,
		Duration:   time.Duration(samples) * time.Second / SampleRate,
	}
}

// Samples returns the number of complete 16-bit samples in the chunk.
func (c *Chunk) Samples() int {
	return len(c.Data) / BytesPerSample
}

// Equal compares chunks by capture instant and buffer contents, not by
// identity or ID, so independently constructed chunks with identical audio
// compare equal.
func (c *Chunk) Equal(other *Chunk) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.CapturedAt.Equal(other.CapturedAt) && bytes.Equal(c.Data, other.Data)
}

// Fingerprint hashes the buffer contents. Two chunks with equal audio data
// have equal fingerprints regardless of when or where they were created.
func (c *Chunk) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write(c.Data)
	return h.Sum64()
}

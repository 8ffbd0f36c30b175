package audio

import (
	"sync"
	"time"
)

// ChunkPolicy contains the silence/duration chunking parameters.
type ChunkPolicy struct {
	MinChunkDuration time.Duration // no silence split before this much audio
	MaxChunkDuration time.Duration // hard boundary regardless of silence
	SilenceThreshold float64       // normalized RMS below which a block is silent
	SilenceDuration  time.Duration // continuous silence required for a split
}

// DefaultChunkPolicy returns the production chunking parameters.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{
		MinChunkDuration: 30 * time.Second,
		MaxChunkDuration: 5 * time.Minute,
		SilenceThreshold: 0.015,
		SilenceDuration:  1500 * time.Millisecond,
	}
}

// Chunker accumulates fixed-size PCM blocks and decides chunk boundaries.
// A boundary is emitted when either the minimum chunk duration has elapsed
// and continuous silence has lasted at least the silence duration, or the
// maximum chunk duration is reached regardless of silence. Timestamps are
// passed in by the caller, which keeps the policy deterministic under test.
type Chunker struct {
	policy ChunkPolicy

	buf          []byte
	chunkStart   time.Time
	silenceStart time.Time // zero while the current block run is loud

	chunksEmitted uint64
	totalDuration time.Duration

	mu sync.Mutex
}

// ChunkerStats is a snapshot of chunker activity for monitoring.
type ChunkerStats struct {
	ChunksEmitted   uint64        `json:"chunks_emitted"`
	TotalDuration   time.Duration `json:"total_duration"`
	PendingBytes    int           `json:"pending_bytes"`
	AvgChunkSeconds float64       `json:"avg_chunk_seconds"`
}

// NewChunker creates a chunker with the given policy.
func NewChunker(policy ChunkPolicy) *Chunker {
	return &Chunker{policy: policy}
}

// Feed appends one captured block and returns a finished chunk if this
// block completed a boundary, nil otherwise. now is the wall-clock instant
// the block was read.
func (c *Chunker) Feed(block []byte, now time.Time) *Chunk {
	if len(block) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buf) == 0 {
		c.chunkStart = now
	}
	c.buf = append(c.buf, block...)

	if RMS(block) < c.policy.SilenceThreshold {
		if c.silenceStart.IsZero() {
			c.silenceStart = now
		}
	} else {
		c.silenceStart = time.Time{}
	}

	elapsed := now.Sub(c.chunkStart)
	if elapsed >= c.policy.MaxChunkDuration {
		return c.emit(now)
	}
	if elapsed >= c.policy.MinChunkDuration &&
		!c.silenceStart.IsZero() &&
		now.Sub(c.silenceStart) >= c.policy.SilenceDuration {
		return c.emit(now)
	}

	return nil
}

// Flush returns any partially accumulated audio as a final chunk, even if
// shorter than the minimum chunk duration. Returns nil when the buffer is
// empty. Called when capture stops so trailing audio is not lost.
func (c *Chunker) Flush(now time.Time) *Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buf) == 0 {
		return nil
	}
	return c.emit(now)
}

// emit finalizes the accumulated buffer as a chunk and resets state for the
// next one. Caller must hold c.mu.
func (c *Chunker) emit(now time.Time) *Chunk {
	chunk := NewChunk(c.buf, c.chunkStart)

	c.buf = c.buf[:0]
	c.chunkStart = now
	c.silenceStart = time.Time{}

	c.chunksEmitted++
	c.totalDuration += chunk.Duration

	return chunk
}

// Stats returns a snapshot of chunker activity.
func (c *Chunker) Stats() ChunkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	avg := float64(0)
	if c.chunksEmitted > 0 {
		avg = c.totalDuration.Seconds() / float64(c.chunksEmitted)
	}

	return ChunkerStats{
		ChunksEmitted:   c.chunksEmitted,
		TotalDuration:   c.totalDuration,
		PendingBytes:    len(c.buf),
		AvgChunkSeconds: avg,
	}
}

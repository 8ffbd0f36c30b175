package audio

import (
	"testing"
	"time"
)

// blockDuration is the synthetic capture block size used by these tests.
const blockDuration = 100 * time.Millisecond

func loudBlock() []byte {
	samples := make([]int16, SampleRate/10) // 100ms
	for i := range samples {
		samples[i] = 8000
	}
	return Int16ToBytes(samples)
}

func silentBlock() []byte {
	return make([]byte, SampleRate/10*BytesPerSample)
}

// feedFor feeds consecutive blocks covering the given span, returning any
// chunks emitted and the advanced clock.
func feedFor(c *Chunker, block []byte, start time.Time, span time.Duration) ([]*Chunk, time.Time) {
	var chunks []*Chunk
	now := start
	for elapsed := time.Duration(0); elapsed < span; elapsed += blockDuration {
		now = now.Add(blockDuration)
		if chunk := c.Feed(block, now); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, now
}

func TestChunkerSilenceBoundary(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// 31s of speech, then 1.6s of silence: one boundary at the pause,
	// well before the 5 minute maximum.
	chunks, now := feedFor(chunker, loudBlock(), start, 31*time.Second)
	if len(chunks) != 0 {
		t.Fatalf("boundary emitted during continuous speech after %d chunks", len(chunks))
	}

	chunks, _ = feedFor(chunker, silentBlock(), now, 1600*time.Millisecond)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks after 1.6s silence, want exactly 1", len(chunks))
	}

	chunk := chunks[0]
	if !chunk.CapturedAt.Equal(start.Add(blockDuration)) {
		t.Errorf("chunk captured at %v, want %v", chunk.CapturedAt, start.Add(blockDuration))
	}
	wantDur := 32600 * time.Millisecond
	if chunk.Duration != wantDur {
		t.Errorf("chunk duration = %v, want %v", chunk.Duration, wantDur)
	}
}

func TestChunkerSilenceBeforeMinimumDoesNotSplit(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// A long pause 10s in must not split: minimum chunk duration not met.
	_, now := feedFor(chunker, loudBlock(), start, 10*time.Second)
	chunks, _ := feedFor(chunker, silentBlock(), now, 5*time.Second)
	if len(chunks) != 0 {
		t.Errorf("got %d chunks before minimum duration, want 0", len(chunks))
	}
}

func TestChunkerMaxDurationBoundary(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Continuous speech for 5m1s with no pause: exactly one boundary at
	// the 5 minute mark.
	chunks, _ := feedFor(chunker, loudBlock(), start, 5*time.Minute+time.Second)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks from continuous speech, want 1 at max duration", len(chunks))
	}
	if d := chunks[0].Duration; d < 5*time.Minute || d > 5*time.Minute+2*blockDuration {
		t.Errorf("chunk duration = %v, want ~%v", d, 5*time.Minute)
	}
}

func TestChunkerBriefSilenceDoesNotSplit(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// A pause shorter than the silence threshold must not split even after
	// the minimum duration.
	_, now := feedFor(chunker, loudBlock(), start, 31*time.Second)
	chunks, now := feedFor(chunker, silentBlock(), now, 1*time.Second)
	if len(chunks) != 0 {
		t.Fatalf("split on %v of silence, below the 1.5s threshold", time.Second)
	}

	// Speech resumes, clearing the silence timer; another short pause
	// later still must not split.
	_, now = feedFor(chunker, loudBlock(), now, 2*time.Second)
	chunks, _ = feedFor(chunker, silentBlock(), now, 1*time.Second)
	if len(chunks) != 0 {
		t.Error("silence timer not cleared when speech resumed")
	}
}

func TestChunkerFlush(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Flush returns the partial buffer even though it is far below the
	// minimum chunk duration.
	_, now := feedFor(chunker, loudBlock(), start, 3*time.Second)
	chunk := chunker.Flush(now)
	if chunk == nil {
		t.Fatal("Flush returned nil with buffered audio")
	}
	if chunk.Duration != 3*time.Second {
		t.Errorf("flushed chunk duration = %v, want 3s", chunk.Duration)
	}

	// A second flush with nothing buffered returns nil.
	if chunk := chunker.Flush(now); chunk != nil {
		t.Errorf("Flush of empty buffer returned chunk of %d bytes", len(chunk.Data))
	}
}

func TestChunkerStats(t *testing.T) {
	chunker := NewChunker(DefaultChunkPolicy())
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, now := feedFor(chunker, loudBlock(), start, 5*time.Minute+time.Second)
	chunker.Flush(now)

	stats := chunker.Stats()
	if stats.ChunksEmitted != 2 {
		t.Errorf("ChunksEmitted = %d, want 2", stats.ChunksEmitted)
	}
	if stats.PendingBytes != 0 {
		t.Errorf("PendingBytes = %d after flush, want 0", stats.PendingBytes)
	}
}

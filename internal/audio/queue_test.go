package audio

import (
	"sync"
	"testing"
	"time"
)

func TestChunkQueueFIFO(t *testing.T) {
	q := NewChunkQueue()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	var pushed []*Chunk
	for i := 0; i < 5; i++ {
		chunk := NewChunk([]byte{byte(i), 0}, base.Add(time.Duration(i)*time.Second))
		pushed = append(pushed, chunk)
		q.Push(chunk)
	}

	for i, want := range pushed {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("queue empty after %d pops, want %d items", i, len(pushed))
		}
		if !got.Equal(want) {
			t.Errorf("pop %d returned chunk captured at %v, want %v", i, got.CapturedAt, want.CapturedAt)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop on drained queue returned a chunk")
	}
}

func TestChunkQueueNilPush(t *testing.T) {
	q := NewChunkQueue()
	q.Push(nil)
	if q.Len() != 0 {
		t.Errorf("queue length after nil push = %d, want 0", q.Len())
	}
}

func TestChunkQueueConcurrent(t *testing.T) {
	q := NewChunkQueue()
	const producers = 4
	const perProducer = 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(NewChunk([]byte{0, 0}, time.Now()))
			}
		}()
	}

	done := make(chan struct{})
	var drained int
	go func() {
		defer close(done)
		for drained < producers*perProducer {
			if _, ok := q.Pop(); ok {
				drained++
			}
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("drained only %d of %d chunks", drained, producers*perProducer)
	}

	stats := q.Stats()
	if stats.Pushed != producers*perProducer {
		t.Errorf("Pushed = %d, want %d", stats.Pushed, producers*perProducer)
	}
	if stats.Popped != stats.Pushed {
		t.Errorf("Popped = %d, want %d (no loss, no duplication)", stats.Popped, stats.Pushed)
	}
	if stats.Depth != 0 {
		t.Errorf("Depth = %d after full drain, want 0", stats.Depth)
	}
}

func TestChunkEquality(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	data := []byte{1, 2, 3, 4}

	a := NewChunk(data, base)
	b := NewChunk(data, base)
	c := NewChunk([]byte{9, 9, 9, 9}, base)

	if !a.Equal(b) {
		t.Error("chunks with identical contents and capture time compare unequal")
	}
	if a.ID == b.ID {
		t.Error("independently created chunks share an ID")
	}
	if a.Equal(c) {
		t.Error("chunks with different audio compare equal")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ for identical audio data")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprints collide for different audio data")
	}
}

func TestChunkDerivedFields(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pcm := make([]byte, SampleRate*BytesPerSample) // exactly one second

	chunk := NewChunk(pcm, base)
	if chunk.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", chunk.Duration)
	}
	if chunk.Samples() != SampleRate {
		t.Errorf("Samples = %d, want %d", chunk.Samples(), SampleRate)
	}

	// The chunk owns a copy: mutating the source must not change it.
	pcm[0] = 0xff
	if chunk.Data[0] == 0xff {
		t.Error("chunk aliases the caller's buffer")
	}
}

package audio

import "sync"

// ChunkQueue is a thread-safe unbounded FIFO of chunks pending
// transcription. Pushes never block, so the capture loop is never stalled
// by a slow consumer. A chunk that was successfully pushed is held until
// popped; the queue itself never drops.
type ChunkQueue struct {
	mu     sync.Mutex
	items  []*Chunk
	pushed uint64
	popped uint64
}

// QueueStats is a snapshot of queue activity for monitoring.
type QueueStats struct {
	Pushed uint64 `json:"pushed"`
	Popped uint64 `json:"popped"`
	Depth  int    `json:"depth"`
}

// NewChunkQueue creates an empty queue.
func NewChunkQueue() *ChunkQueue {
	return &ChunkQueue{}
}

// Push appends a chunk to the tail of the queue.
func (q *ChunkQueue) Push(chunk *Chunk) {
	if chunk == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, chunk)
	q.pushed++
}

// Pop removes and returns the oldest chunk. The boolean is false when the
// queue is empty.
func (q *ChunkQueue) Pop() (*Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	chunk := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.popped++
	return chunk, true
}

// Len returns the number of chunks currently pending.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue activity.
func (q *ChunkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Pushed: q.pushed,
		Popped: q.popped,
		Depth:  len(q.items),
	}
}

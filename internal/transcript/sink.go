package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one timestamped transcript record. Timestamp is the wall-clock
// instant the underlying audio was spoken, not when the event was logged.
type Event struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`
	Text       string    `json:"text"`
	Language   string    `json:"language,omitempty"`
	Confidence float32   `json:"confidence,omitempty"`
	ChunkID    string    `json:"chunk_id,omitempty"`
	OutOfBand  bool      `json:"out_of_band,omitempty"`
}

// EventTranscription marks events produced by the transcription engine.
const EventTranscription = "transcription"

// Sink accepts timestamped event records. allowBackfill marks events whose
// timestamp precedes the moment they are logged; sinks must honor it even
// when the recording session has already stopped, since drained segments
// can arrive after stop.
type Sink interface {
	Log(event Event, allowBackfill bool) error
}

// FileSink appends events to a JSONL file, one JSON object per line.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	events uint64
}

// NewFileSink opens (or creates) the event log at path for appending.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file %s: %w", path, err)
	}
	return &FileSink{file: file}, nil
}

// Log writes the event as one JSON line.
func (s *FileSink) Log(event Event, allowBackfill bool) error {
	event.OutOfBand = allowBackfill

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode transcript event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript event: %w", err)
	}
	s.events++
	return nil
}

// Events returns the number of events written so far.
func (s *FileSink) Events() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

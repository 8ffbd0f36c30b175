// Package whispercpp binds the speech.Engine interface to the whisper.cpp
// inference library via its Go bindings. This is the only package in the
// module that imports the native binding.
package whispercpp

import (
	"fmt"
	"io"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/inxilpro/chronicle/internal/speech"
)

// Engine wraps one loaded whisper model and its inference context. The
// context is created once and reused across Transcribe calls; whisper.cpp
// contexts are not safe for concurrent use, so calls are serialized.
type Engine struct {
	model whisper.Model
	ctx   whisper.Context
	mu    sync.Mutex
}

// New loads the model file and prepares an inference context with the
// language pinned and translation disabled.
func New(cfg speech.Config) (speech.Engine, error) {
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model %s: %w", cfg.ModelPath, err)
	}

	ctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := ctx.SetLanguage(cfg.Language); err != nil {
		model.Close()
		return nil, fmt.Errorf("failed to set language %q: %w", cfg.Language, err)
	}
	ctx.SetTranslate(false)
	if cfg.Threads > 0 {
		ctx.SetThreads(uint(cfg.Threads))
	}

	return &Engine{model: model, ctx: ctx}, nil
}

// Transcribe runs inference over the full buffer and collects segment-level
// output. Progress and realtime segment callbacks are disabled; segments
// are read back after processing completes.
func (e *Engine) Transcribe(samples []float32) ([]speech.Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ctx.Process(samples, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process failed: %w", err)
	}

	var segments []speech.Segment
	for {
		seg, err := e.ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read segment: %w", err)
		}

		segments = append(segments, speech.Segment{
			Text:       seg.Text,
			Start:      int64(seg.Start / speech.TickDuration),
			End:        int64(seg.End / speech.TickDuration),
			Confidence: meanTokenProbability(seg.Tokens),
		})
	}

	return segments, nil
}

// Close releases the model and its context.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Close()
}

// meanTokenProbability averages per-token probabilities into a segment
// confidence score.
func meanTokenProbability(tokens []whisper.Token) float32 {
	if len(tokens) == 0 {
		return 0
	}

	var sum float32
	for _, tok := range tokens {
		sum += tok.P
	}
	return sum / float32(len(tokens))
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inxilpro/chronicle/internal/metrics"
)

// State is the recording session state. Exactly one state is current at
// any time.
type State int

const (
	Stopped State = iota
	Initializing
	Recording
	Processing
	Errored
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Initializing:
		return "initializing"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Errored:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText makes State render as its name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ModelResolver yields a ready model file path, downloading if necessary.
type ModelResolver interface {
	Resolve(ctx context.Context, variant string) (string, error)
}

// Capturer starts and stops the audio capture loop.
type Capturer interface {
	Start(device string) error
	Stop() error
}

// Transcriber loads the inference context and runs the periodic drain.
type Transcriber interface {
	Initialize(modelPath string) error
	StartProcessing() error
	StopProcessing()
}

// Observer receives state change notifications. Called synchronously
// under the controller's lock; observers must not call back into the
// controller.
type Observer func(old, new State)

// Controller is the recording session state machine.
type Controller struct {
	variant     string
	resolver    ModelResolver
	capturer    Capturer
	transcriber Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu          sync.Mutex
	state       State
	lastError   string
	initialized bool
	observers   []Observer
}

// NewController creates a controller in the Stopped state.
func NewController(variant string, resolver ModelResolver, capturer Capturer,
	transcriber Transcriber, logger *slog.Logger, m *metrics.Metrics) *Controller {

	return &Controller{
		variant:     variant,
		resolver:    resolver,
		capturer:    capturer,
		transcriber: transcriber,
		logger:      logger,
		metrics:     m,
		state:       Stopped,
	}
}

// Subscribe registers an observer for state transitions. Notifications
// fire exactly once per actual transition; no-op calls emit nothing.
func (c *Controller) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent failure message. Persisted until
// overwritten by a later failure.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// transition must be called with c.mu held.
func (c *Controller) transition(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to

	c.logger.Info("Session state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	c.metrics.RecordStateTransition(to.String())

	for _, obs := range c.observers {
		obs(from, to)
	}
}

// fail must be called with c.mu held.
func (c *Controller) fail(err error) {
	c.lastError = err.Error()
	c.logger.Error("Session error", slog.String("error", err.Error()))
	c.transition(Errored)
}

// Initialize resolves the configured model variant and loads the
// inference context, then settles back to Stopped ready for Start. On
// failure the session moves to Errored with the reason recorded; a later
// Initialize or Start may recover.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Controller) initializeLocked(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	c.transition(Initializing)

	path, err := c.resolver.Resolve(ctx, c.variant)
	if err != nil {
		c.fail(fmt.Errorf("resolve model %q: %w", c.variant, err))
		return err
	}
	if err := c.transcriber.Initialize(path); err != nil {
		c.fail(fmt.Errorf("load model %q: %w", path, err))
		return err
	}

	c.initialized = true
	c.transition(Stopped)
	return nil
}

// Start begins a recording session on the named device (empty selects
// the default input). Runs Initialize first when the model has not been
// loaded yet. Calling Start while already Recording is a logged no-op.
func (c *Controller) Start(ctx context.Context, device string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Recording {
		c.logger.Warn("Start requested while already recording, ignoring")
		return nil
	}

	if !c.initialized {
		if err := c.initializeLocked(ctx); err != nil {
			return err
		}
	}

	if err := c.capturer.Start(device); err != nil {
		c.fail(fmt.Errorf("start capture: %w", err))
		return err
	}
	if err := c.transcriber.StartProcessing(); err != nil {
		// Capture must not keep running without a consumer.
		if stopErr := c.capturer.Stop(); stopErr != nil {
			c.logger.Warn("Failed to stop capture during rollback",
				slog.String("error", stopErr.Error()))
		}
		c.fail(fmt.Errorf("start transcription: %w", err))
		return err
	}

	c.transition(Recording)
	return nil
}

// Stop halts capture, flushes the partial chunk, then synchronously waits
// for the final drain before settling in Stopped. Stopping an already
// stopped session is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording {
		c.logger.Warn("Stop requested while not recording, ignoring",
			slog.String("state", c.state.String()))
		return nil
	}

	c.transition(Processing)

	if err := c.capturer.Stop(); err != nil {
		c.fail(fmt.Errorf("stop capture: %w", err))
		return err
	}

	// Blocks on any in-flight drain, then runs one more to catch the
	// flushed chunk.
	c.transcriber.StopProcessing()

	c.transition(Stopped)
	return nil
}

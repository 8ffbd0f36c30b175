// Package session coordinates model resolution, audio capture, and
// transcription behind a small state machine. The controller owns the
// ordering guarantees: a model is resolved before capture starts, and a
// stop request drains every queued chunk before the session settles back
// to Stopped. Observers subscribe to state changes and are notified
// exactly once per actual transition.
package session

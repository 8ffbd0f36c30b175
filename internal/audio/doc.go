// Package audio provides the capture-side audio primitives: the immutable
// PCM chunk record, RMS-based loudness measurement, the silence/duration
// chunking policy, and the thread-safe queue that hands finished chunks
// from the capture loop to the transcription engine.
package audio

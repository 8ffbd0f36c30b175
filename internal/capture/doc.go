// Package capture owns the microphone line and the dedicated capture loop.
// The loop reads fixed-size PCM blocks, applies the silence/duration
// chunking policy, and pushes finished chunks onto the queue without ever
// blocking on the consumer. The audio backend is reached through the
// Opener/Line interfaces; the portaudio implementation lives alongside so
// tests can substitute a fake line.
package capture

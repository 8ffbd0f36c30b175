// Package transcript defines the event log boundary the pipeline emits
// into: a timestamped event record, the Sink interface, and a JSONL
// file-backed sink. Transcription segments arrive as backfilled events
// because transcription lags capture by design.
package transcript

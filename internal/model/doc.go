// Package model manages the whisper model catalogue and the lifecycle of
// model files on disk: readiness checks against expected sizes, and
// single-flight downloads with redirect handling, progress reporting, and
// partial-file cleanup.
package model

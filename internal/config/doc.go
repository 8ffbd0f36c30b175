// Package config provides configuration loading and validation for the
// capture and transcription pipeline. It handles YAML-based configuration
// with per-section validation and stated defaults for every recognized
// option.
package config

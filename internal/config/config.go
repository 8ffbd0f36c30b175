package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Capture       CaptureConfig       `yaml:"capture"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Model         ModelConfig         `yaml:"model"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters.
type CaptureConfig struct {
	Device          string `yaml:"device"`            // substring match; empty selects the default input
	BlockDurationMS int    `yaml:"block_duration_ms"` // capture read block size
	DumpDir         string `yaml:"dump_dir"`          // write each chunk as WAV when set
}

// ChunkingConfig contains the silence/duration chunking policy.
type ChunkingConfig struct {
	MinChunkDuration float64 `yaml:"min_chunk_duration"` // seconds
	MaxChunkDuration float64 `yaml:"max_chunk_duration"` // seconds
	SilenceThreshold float64 `yaml:"silence_threshold"`  // normalized RMS
	SilenceDuration  float64 `yaml:"silence_duration"`   // seconds
}

// ModelConfig contains whisper model selection and storage.
type ModelConfig struct {
	Variant         string `yaml:"variant"`
	Dir             string `yaml:"dir"`              // model storage directory
	DownloadTimeout int    `yaml:"download_timeout"` // seconds
}

// TranscriptionConfig contains the batch transcription scheduler parameters.
type TranscriptionConfig struct {
	Language     string  `yaml:"language"`
	PollInterval float64 `yaml:"poll_interval"` // seconds between queue drains
	Threads      int     `yaml:"threads"`       // 0 uses the runtime default
}

// TranscriptConfig contains transcript output settings.
type TranscriptConfig struct {
	Output string `yaml:"output"` // JSONL event log path
}

// HTTPConfig contains the monitoring HTTP server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration. When Output is a file path
// the log is size-rotated.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration with every option at its stated default.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			BlockDurationMS: 100,
		},
		Chunking: ChunkingConfig{
			MinChunkDuration: 30.0,
			MaxChunkDuration: 300.0,
			SilenceThreshold: 0.015,
			SilenceDuration:  1.5,
		},
		Model: ModelConfig{
			Variant:         "base",
			Dir:             "models",
			DownloadTimeout: 600,
		},
		Transcription: TranscriptionConfig{
			Language:     "en",
			PollInterval: 2.0,
		},
		Transcript: TranscriptConfig{
			Output: "transcript.jsonl",
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads and parses the configuration file. Options absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the complete configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Transcript.Validate(); err != nil {
		return fmt.Errorf("transcript config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates capture configuration.
func (cc *CaptureConfig) Validate() error {
	if cc.BlockDurationMS < 10 || cc.BlockDurationMS > 1000 {
		return fmt.Errorf("block_duration_ms must be between 10 and 1000, got %d", cc.BlockDurationMS)
	}
	return nil
}

// Validate validates chunking configuration.
func (ch *ChunkingConfig) Validate() error {
	if ch.MinChunkDuration <= 0 {
		return fmt.Errorf("min_chunk_duration must be positive, got %f", ch.MinChunkDuration)
	}
	if ch.MaxChunkDuration <= ch.MinChunkDuration {
		return fmt.Errorf("max_chunk_duration (%f) must be greater than min_chunk_duration (%f)",
			ch.MaxChunkDuration, ch.MinChunkDuration)
	}
	if ch.SilenceThreshold <= 0 || ch.SilenceThreshold >= 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1 (exclusive), got %f", ch.SilenceThreshold)
	}
	if ch.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %f", ch.SilenceDuration)
	}
	return nil
}

// Validate validates model configuration.
func (m *ModelConfig) Validate() error {
	if m.Variant == "" {
		return fmt.Errorf("variant cannot be empty")
	}
	if m.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	if m.DownloadTimeout < 1 {
		return fmt.Errorf("download_timeout must be at least 1 second, got %d", m.DownloadTimeout)
	}
	return nil
}

// Validate validates transcription configuration.
func (t *TranscriptionConfig) Validate() error {
	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", t.PollInterval)
	}
	if t.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", t.Threads)
	}
	return nil
}

// Validate validates transcript output configuration.
func (t *TranscriptConfig) Validate() error {
	if t.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}
		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("level must be one of debug/info/warn/error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}
	return nil
}

// GetBlockDuration returns the capture block size as a duration.
func (cc *CaptureConfig) GetBlockDuration() time.Duration {
	return time.Duration(cc.BlockDurationMS) * time.Millisecond
}

// GetMinChunkDuration returns the minimum chunk duration.
func (ch *ChunkingConfig) GetMinChunkDuration() time.Duration {
	return time.Duration(ch.MinChunkDuration * float64(time.Second))
}

// GetMaxChunkDuration returns the maximum chunk duration.
func (ch *ChunkingConfig) GetMaxChunkDuration() time.Duration {
	return time.Duration(ch.MaxChunkDuration * float64(time.Second))
}

// GetSilenceDuration returns the continuous-silence split threshold.
func (ch *ChunkingConfig) GetSilenceDuration() time.Duration {
	return time.Duration(ch.SilenceDuration * float64(time.Second))
}

// GetDownloadTimeout returns the model download timeout.
func (m *ModelConfig) GetDownloadTimeout() time.Duration {
	return time.Duration(m.DownloadTimeout) * time.Second
}

// GetPollInterval returns the queue drain interval.
func (t *TranscriptionConfig) GetPollInterval() time.Duration {
	return time.Duration(t.PollInterval * float64(time.Second))
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket listener configuration
type ServerConfig struct {
	Port                 int    `yaml:"port"`
	BindAddress          string `yaml:"bind_address"`
	MaxConcurrentStreams int    `yaml:"max_concurrent_streams"`
	ReadLimit            int64  `yaml:"read_limit"`    // bytes per inbound frame
	PingInterval         int    `yaml:"ping_interval"` // seconds
	PongWait             int    `yaml:"pong_wait"`     // seconds
	WriteTimeout         int    `yaml:"write_timeout"` // seconds
}

// HTTPConfig contains HTTP API configuration
type HTTPConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AudioConfig contains audio stream parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	StreamTimeout int `yaml:"stream_timeout"` // seconds
}

// VADConfig contains the silence detection and segmentation parameters
type VADConfig struct {
	SilenceThreshold float64 `yaml:"silence_threshold"` // mean absolute amplitude
	SilenceChunks    int     `yaml:"silence_chunks"`    // consecutive silent chunks that finalize an utterance
	InterimEvery     int     `yaml:"interim_every"`     // non-silent chunks between interim results
}

// TranscriptionConfig contains transcription engine configuration
type TranscriptionConfig struct {
	Backend       string `yaml:"backend"` // "http" or "openai"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Workers       int    `yaml:"workers"`
	QueueSize     int    `yaml:"queue_size"`
}

// StorageConfig contains persistence store configuration
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded from the process environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used for any field a file leaves unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 8000,
			BindAddress:          "0.0.0.0",
			MaxConcurrentStreams: 100,
			ReadLimit:            4 << 20,
			PingInterval:         30,
			PongWait:             60,
			WriteTimeout:         10,
		},
		HTTP: HTTPConfig{
			MaxUploadBytes: 50 << 20,
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			StreamTimeout: 300,
		},
		VAD: VADConfig{
			SilenceThreshold: 0.01,
			SilenceChunks:    4,
			InterimEvery:     3,
		},
		Transcription: TranscriptionConfig{
			Backend:       "http",
			Model:         "whisper-1",
			Timeout:       60,
			MaxRetries:    2,
			MaxConcurrent: 1,
			Workers:       4,
			QueueSize:     256,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.MaxConcurrentStreams < 1 {
		return fmt.Errorf("max_concurrent_streams must be at least 1, got %d", s.MaxConcurrentStreams)
	}

	if s.ReadLimit < 1024 {
		return fmt.Errorf("read_limit must be at least 1024 bytes, got %d", s.ReadLimit)
	}

	if s.PingInterval < 1 {
		return fmt.Errorf("ping_interval must be at least 1 second, got %d", s.PingInterval)
	}

	if s.PongWait <= s.PingInterval {
		return fmt.Errorf("pong_wait (%d) must be greater than ping_interval (%d)", s.PongWait, s.PingInterval)
	}

	if s.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", s.WriteTimeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024, got %d", h.MaxUploadBytes)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.StreamTimeout < 1 {
		return fmt.Errorf("stream_timeout must be at least 1 second, got %d", a.StreamTimeout)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.SilenceThreshold < 0 || v.SilenceThreshold > 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1, got %f", v.SilenceThreshold)
	}

	if v.SilenceChunks < 1 {
		return fmt.Errorf("silence_chunks must be at least 1, got %d", v.SilenceChunks)
	}

	if v.InterimEvery < 1 {
		return fmt.Errorf("interim_every must be at least 1, got %d", v.InterimEvery)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Backend {
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http backend")
		}
	case "openai":
		if t.APIKey == "" && t.Endpoint == "" {
			return fmt.Errorf("api_key or endpoint is required for the openai backend")
		}
	default:
		return fmt.Errorf("backend must be 'http' or 'openai', got '%s'", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	if t.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", t.Workers)
	}

	if t.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", t.QueueSize)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case "memory":
	case "sqlite", "postgres":
		if s.DSN == "" {
			return fmt.Errorf("dsn cannot be empty for driver '%s'", s.Driver)
		}
	default:
		return fmt.Errorf("driver must be one of [sqlite, postgres, memory], got '%s'", s.Driver)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output may be stdout, stderr or a file path

	return nil
}

// GetStreamTimeoutDuration returns the idle stream timeout as a time.Duration
func (a *AudioConfig) GetStreamTimeoutDuration() time.Duration {
	return time.Duration(a.StreamTimeout) * time.Second
}

// GetPingIntervalDuration returns the websocket ping interval as a time.Duration
func (s *ServerConfig) GetPingIntervalDuration() time.Duration {
	return time.Duration(s.PingInterval) * time.Second
}

// GetPongWaitDuration returns the websocket read deadline as a time.Duration
func (s *ServerConfig) GetPongWaitDuration() time.Duration {
	return time.Duration(s.PongWait) * time.Second
}

// GetWriteTimeoutDuration returns the per-frame write deadline as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

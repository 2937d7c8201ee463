package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Default()
	cfg.Transcription.Endpoint = "http://localhost:9000/v1/audio/transcriptions"
	return *cfg
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "pong wait not above ping interval",
			mutate:      func(c *Config) { c.Server.PongWait = c.Server.PingInterval },
			expectError: true,
			errorMsg:    "pong_wait",
		},
		{
			name:        "sample rate out of range",
			mutate:      func(c *Config) { c.Audio.SampleRate = 4000 },
			expectError: true,
			errorMsg:    "sample_rate must be between",
		},
		{
			name:        "silence threshold above one",
			mutate:      func(c *Config) { c.VAD.SilenceThreshold = 1.5 },
			expectError: true,
			errorMsg:    "silence_threshold",
		},
		{
			name:        "zero interim interval",
			mutate:      func(c *Config) { c.VAD.InterimEvery = 0 },
			expectError: true,
			errorMsg:    "interim_every must be at least 1",
		},
		{
			name:        "zero silence chunks",
			mutate:      func(c *Config) { c.VAD.SilenceChunks = 0 },
			expectError: true,
			errorMsg:    "silence_chunks must be at least 1",
		},
		{
			name:        "http backend without endpoint",
			mutate:      func(c *Config) { c.Transcription.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "openai backend with api key",
			mutate: func(c *Config) {
				c.Transcription.Backend = "openai"
				c.Transcription.Endpoint = ""
				c.Transcription.APIKey = "sk-test"
			},
			expectError: false,
		},
		{
			name:        "unknown backend",
			mutate:      func(c *Config) { c.Transcription.Backend = "grpc" },
			expectError: true,
			errorMsg:    "backend must be",
		},
		{
			name:        "zero max concurrent",
			mutate:      func(c *Config) { c.Transcription.MaxConcurrent = 0 },
			expectError: true,
			errorMsg:    "max_concurrent must be at least 1",
		},
		{
			name:        "sqlite without dsn",
			mutate:      func(c *Config) { c.Storage.Driver = "sqlite" },
			expectError: true,
			errorMsg:    "dsn cannot be empty",
		},
		{
			name:        "unknown storage driver",
			mutate:      func(c *Config) { c.Storage.Driver = "mysql" },
			expectError: true,
			errorMsg:    "driver must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("STT_TEST_API_KEY", "from-env")

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  port: 8080
  bind_address: "127.0.0.1"
vad:
  silence_threshold: 0.02
  silence_chunks: 5
  interim_every: 2
transcription:
  backend: "http"
  endpoint: "http://whisper:9000/v1/audio/transcriptions"
  api_key: "${STT_TEST_API_KEY}"
  max_concurrent: 2
logging:
  level: "debug"
  format: "json"
`,
			check: func(t *testing.T, c *Config) {
				if c.Server.Port != 8080 {
					t.Errorf("Expected port 8080, got %d", c.Server.Port)
				}
				if c.VAD.SilenceChunks != 5 || c.VAD.InterimEvery != 2 {
					t.Errorf("Expected vad 5/2, got %d/%d", c.VAD.SilenceChunks, c.VAD.InterimEvery)
				}
				if c.Transcription.APIKey != "from-env" {
					t.Errorf("Expected api key expanded from env, got %q", c.Transcription.APIKey)
				}
				// Unset sections keep their defaults
				if c.Audio.SampleRate != 16000 {
					t.Errorf("Expected default sample rate 16000, got %d", c.Audio.SampleRate)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  port: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "fails validation",
			configYAML: `
transcription:
  backend: "http"
  endpoint: ""
`,
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if tt.check != nil {
				tt.check(t, config)
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	server := ServerConfig{PingInterval: 30, PongWait: 60, WriteTimeout: 10}

	if server.GetPingIntervalDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", server.GetPingIntervalDuration())
	}

	if server.GetPongWaitDuration() != time.Minute {
		t.Errorf("Expected 60 seconds, got %v", server.GetPongWaitDuration())
	}

	if server.GetWriteTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", server.GetWriteTimeoutDuration())
	}

	audio := AudioConfig{StreamTimeout: 300}
	if audio.GetStreamTimeoutDuration() != 5*time.Minute {
		t.Errorf("Expected 5 minutes, got %v", audio.GetStreamTimeoutDuration())
	}

	transcription := TranscriptionConfig{Timeout: 30}
	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name:   "valid json to stdout",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			valid:  true,
		},
		{
			name:   "valid text to file",
			config: LoggingConfig{Level: "debug", Format: "text", Output: "/tmp/stt.log"},
			valid:  true,
		},
		{
			name:   "invalid log level",
			config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"},
			valid:  false,
		},
		{
			name:   "invalid format",
			config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

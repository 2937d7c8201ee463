package transcription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skypro1111/stt-stream-service/internal/config"
)

// ErrorText replaces the transcript of any failed transcription
const ErrorText = "[Transcription error]"

const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

// Engine converts a contiguous block of mono float32 audio into text.
// Implementations must be safe for concurrent use.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Factory builds an Engine. It is invoked at most once by Shared.
type Factory func() (Engine, error)

// NewFactory returns a Factory for the backend selected in cfg
func NewFactory(cfg config.TranscriptionConfig, logger *slog.Logger) Factory {
	return func() (Engine, error) {
		switch cfg.Backend {
		case BackendHTTP:
			return NewClient(Config{
				Endpoint:   cfg.Endpoint,
				APIKey:     cfg.APIKey,
				Model:      cfg.Model,
				Language:   cfg.Language,
				Timeout:    cfg.GetTimeoutDuration(),
				MaxRetries: cfg.MaxRetries,
			}, logger)
		case BackendOpenAI:
			return NewOpenAIEngine(OpenAIConfig{
				APIKey:   cfg.APIKey,
				BaseURL:  cfg.Endpoint,
				Model:    cfg.Model,
				Language: cfg.Language,
			})
		default:
			return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
		}
	}
}

// EngineFunc adapts a plain function to the Engine interface
type EngineFunc func(ctx context.Context, samples []float32, sampleRate int) (string, error)

func (f EngineFunc) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return f(ctx, samples, sampleRate)
}

func audioSeconds(samples []float32, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

package transcription

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/skypro1111/stt-stream-service/internal/audio"
)

// OpenAIConfig configures the go-openai backed engine
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // empty means the public OpenAI API
	Model    string
	Language string
}

// OpenAIEngine transcribes audio through the OpenAI audio API client
type OpenAIEngine struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIEngine creates an engine backed by sashabaranov/go-openai
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai backend requires an API key or a base URL")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.Language,
	}, nil
}

// Transcribe uploads the samples as a WAV file and returns the recognized text
func (e *OpenAIEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wavData, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode audio: %w", err)
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wavData),
		Language: e.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription failed: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

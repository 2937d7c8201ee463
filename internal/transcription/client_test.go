package transcription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/stt-stream-service/internal/audio"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSamples() []float32 {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.25
	}
	return samples
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9000/v1/audio/transcriptions", MaxRetries: -1}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if client.config.MaxRetries != 0 {
		t.Errorf("Expected negative retries clamped to 0, got %d", client.config.MaxRetries)
	}
	if client.config.Model != "whisper-1" {
		t.Errorf("Expected default model whisper-1, got %s", client.config.Model)
	}
	if client.config.Timeout != 60*time.Second {
		t.Errorf("Expected default timeout 60s, got %v", client.config.Timeout)
	}
}

func TestClientTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", got)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		if r.FormValue("model") != "whisper-large" {
			t.Errorf("Expected model whisper-large, got %q", r.FormValue("model"))
		}
		if r.FormValue("language") != "uk" {
			t.Errorf("Expected language uk, got %q", r.FormValue("language"))
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file field: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		info, err := audio.GetWAVInfo(data)
		if err != nil {
			t.Errorf("Uploaded file is not a WAV: %v", err)
		} else if info.SampleRate != 16000 {
			t.Errorf("Expected 16000 Hz upload, got %d", info.SampleRate)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  hello world "}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint: server.URL,
		APIKey:   "secret",
		Model:    "whisper-large",
		Language: "uk",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	text, err := client.Transcribe(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", text)
	}
}

func TestClientPlainTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain transcript\n"))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL}, nil)

	text, err := client.Transcribe(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "plain transcript" {
		t.Errorf("Expected 'plain transcript', got %q", text)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"third time"}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{
		Endpoint:     server.URL,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, nil)

	text, err := client.Transcribe(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "third time" {
		t.Errorf("Expected 'third time', got %q", text)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(Config{
		Endpoint:     server.URL,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, nil)

	_, err := client.Transcribe(context.Background(), testSamples(), 16000)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", httpErr.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestClientEmptyAudio(t *testing.T) {
	client, _ := NewClient(Config{Endpoint: "http://127.0.0.1:1"}, nil)

	if _, err := client.Transcribe(context.Background(), nil, 16000); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &HTTPError{StatusCode: 502}, true},
		{"rate limited", &HTTPError{StatusCode: 429}, true},
		{"bad request", &HTTPError{StatusCode: 400}, false},
		{"unauthorized", &HTTPError{StatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skypro1111/stt-stream-service/internal/transcription"
)

func TestFakeServerWithClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(newRouter(logger, 0))
	defer ts.Close()

	client, err := transcription.NewClient(transcription.Config{
		Endpoint: ts.URL + "/v1/audio/transcriptions",
		Model:    "whisper-1",
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	text, err := client.Transcribe(context.Background(), make([]float32, 16000), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "[1.00s of audio]" {
		t.Errorf("Expected '[1.00s of audio]', got %q", text)
	}
}

func TestFakeServerRejectsMissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(newRouter(logger, 0))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/transcribe", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

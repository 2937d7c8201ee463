// Command fakewhisper is a stand-in transcription backend for local runs.
// It accepts the same multipart upload as a Whisper-compatible server and
// answers with a description of the audio it received.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/skypro1111/stt-stream-service/internal/audio"
)

const maxUploadBytes = 32 << 20

var (
	listenAddr string
	delay      time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "fakewhisper",
	Short:        "Fake Whisper-compatible transcription server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

		logger.Info("Fake transcription server starting",
			slog.String("address", listenAddr),
			slog.String("endpoint", "/v1/audio/transcriptions"),
		)

		return http.ListenAndServe(listenAddr, newRouter(logger, delay))
	},
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "addr", ":9000", "Listen address")
	rootCmd.Flags().DurationVar(&delay, "delay", 200*time.Millisecond, "Simulated processing time")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRouter(logger *slog.Logger, delay time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	h := &transcribeHandler{logger: logger, delay: delay}
	r.Post("/v1/audio/transcriptions", h.ServeHTTP)
	r.Post("/transcribe", h.ServeHTTP)

	return r
}

type transcribeHandler struct {
	logger *slog.Logger
	delay  time.Duration
}

func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("Transcription request received",
		slog.String("filename", header.Filename),
		slog.Int("size", len(data)),
		slog.String("model", r.FormValue("model")),
		slog.String("language", r.FormValue("language")),
		slog.Int("sample_rate", info.SampleRate),
		slog.Float64("seconds", info.Seconds),
	)

	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-r.Context().Done():
			return
		}
	}

	text := fmt.Sprintf("[%.2fs of audio]", info.Seconds)

	switch r.FormValue("response_format") {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, text)
	default:
		writeText(w, text)
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"text": text})
}

package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skypro1111/stt-stream-service/internal/audio"
	"github.com/skypro1111/stt-stream-service/internal/storage"
)

// uploadField is the multipart form field carrying the WAV file
const uploadField = "audio_file"

func (h *HTTPServer) uploadFailed(w http.ResponseWriter, status int, outcome, message string) {
	h.metrics.RecordUpload(outcome)
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// handleUpload implements POST /api/upload-audio/. The blob is stored before
// transcription, so failed transcriptions still leave the upload on record.
func (h *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.uploadFailed(w, http.StatusBadRequest, "invalid", "Invalid request")
		return
	}

	if limit := h.config.HTTP.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadFailed(w, http.StatusRequestEntityTooLarge, "invalid", "Audio file too large")
			return
		}
		h.uploadFailed(w, http.StatusBadRequest, "invalid", "Invalid request")
		return
	}
	defer file.Close()

	logger := h.logger.With(
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", header.Filename),
	)

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read upload", slog.String("error", err.Error()))
		h.uploadFailed(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	ctx := r.Context()

	blob, err := h.store.SaveAudio(ctx, header.Filename, data)
	if err != nil {
		logger.Error("Failed to store upload", slog.String("error", err.Error()))
		h.uploadFailed(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		logger.Warn("Failed to decode upload",
			slog.Int64("audio_id", blob.ID),
			slog.String("error", err.Error()),
		)
		h.uploadFailed(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	text, err := h.engine.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		logger.Error("Upload transcription failed",
			slog.Int64("audio_id", blob.ID),
			slog.String("error", err.Error()),
		)
		h.uploadFailed(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	record, err := h.store.SaveTranscription(ctx, blob.ID, text)
	if err != nil {
		logger.Error("Failed to store transcription",
			slog.Int64("audio_id", blob.ID),
			slog.String("error", err.Error()),
		)
		h.uploadFailed(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	logger.Info("Upload transcribed",
		slog.Int64("audio_id", blob.ID),
		slog.Int64("transcription_id", record.ID),
		slog.Int("samples", len(samples)),
		slog.Int("sample_rate", sampleRate),
	)

	h.metrics.RecordUpload("success")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"transcription":    text,
		"transcription_id": record.ID,
	})
}

// handleGetTranscription implements GET /api/transcriptions/{id}
func (h *HTTPServer) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid transcription ID", http.StatusBadRequest)
		return
	}

	record, err := h.store.GetTranscription(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Transcription not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load transcription",
			slog.Int64("transcription_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

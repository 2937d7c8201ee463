package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/skypro1111/stt-stream-service/internal/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// AudioFile is a stored upload
type AudioFile struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Data       []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Transcription is the text produced from a stored upload
type Transcription struct {
	ID        int64     `json:"id"`
	AudioID   int64     `json:"audio_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists audio uploads and their transcriptions
type Store interface {
	SaveAudio(ctx context.Context, filename string, data []byte) (*AudioFile, error)
	SaveTranscription(ctx context.Context, audioID int64, text string) (*Transcription, error)
	GetTranscription(ctx context.Context, id int64) (*Transcription, error)
	Close() error
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func loadSchema(name string) (string, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded schema %s: %w", name, err)
	}
	return string(data), nil
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skypro1111/stt-stream-service/internal/config"
)

// testStore exercises the Store contract against any implementation
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	audio, err := store.SaveAudio(ctx, "recording.wav", []byte("RIFF....WAVE"))
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}

	if audio.ID <= 0 {
		t.Errorf("Expected positive audio ID, got %d", audio.ID)
	}
	if audio.Size != 12 {
		t.Errorf("Expected size 12, got %d", audio.Size)
	}
	if audio.UploadedAt.IsZero() {
		t.Error("Expected upload timestamp to be set")
	}

	record, err := store.SaveTranscription(ctx, audio.ID, "hello world")
	if err != nil {
		t.Fatalf("SaveTranscription failed: %v", err)
	}

	if record.ID <= 0 {
		t.Errorf("Expected positive transcription ID, got %d", record.ID)
	}
	if record.AudioID != audio.ID {
		t.Errorf("Expected audio ID %d, got %d", audio.ID, record.AudioID)
	}

	loaded, err := store.GetTranscription(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetTranscription failed: %v", err)
	}

	if loaded.Text != "hello world" || loaded.AudioID != audio.ID {
		t.Errorf("Unexpected transcription: %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("Expected creation timestamp to be set")
	}

	second, err := store.SaveAudio(ctx, "second.wav", []byte("x"))
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if second.ID == audio.ID {
		t.Error("Expected distinct audio IDs")
	}

	if _, err := store.GetTranscription(ctx, record.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := store.SaveTranscription(ctx, audio.ID+1000, "orphan"); err == nil {
		t.Error("Expected error for transcription of unknown audio")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	testStore(t, store)

	if store.AudioCount() != 2 {
		t.Errorf("Expected 2 stored uploads, got %d", store.AudioCount())
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "stt.db")

	store, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stt.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}

	audio, _ := store.SaveAudio(ctx, "a.wav", []byte("data"))
	record, err := store.SaveTranscription(ctx, audio.ID, "persisted")
	if err != nil {
		t.Fatalf("SaveTranscription failed: %v", err)
	}
	store.Close()

	// Schema creation is idempotent and data survives reopening
	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.GetTranscription(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetTranscription failed: %v", err)
	}
	if loaded.Text != "persisted" {
		t.Errorf("Expected 'persisted', got %q", loaded.Text)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skipf("Skipping test: TEST_DATABASE_URL not set")
	}

	store, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Skipf("Skipping test due to database not available: %v", err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}

	store, err = Open(ctx, config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	store.Close()

	if _, err := Open(ctx, config.StorageConfig{Driver: "mongodb"}); err == nil {
		t.Error("Expected error for unknown driver")
	}

	if _, err := Open(ctx, config.StorageConfig{Driver: "sqlite"}); err == nil {
		t.Error("Expected error for empty sqlite path")
	}
}

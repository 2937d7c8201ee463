package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema, err := loadSchema("sqlite.sql")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func (s *SQLiteStore) SaveAudio(ctx context.Context, filename string, data []byte) (*AudioFile, error) {
	file := &AudioFile{
		Filename:   filename,
		Size:       int64(len(data)),
		Data:       data,
		UploadedAt: time.Now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_files (filename, size, data, uploaded_at) VALUES (?, ?, ?, ?)`,
		file.Filename, file.Size, file.Data, file.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audio file: %w", err)
	}

	file.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file id: %w", err)
	}

	return file, nil
}

func (s *SQLiteStore) SaveTranscription(ctx context.Context, audioID int64, text string) (*Transcription, error) {
	record := &Transcription{
		AudioID:   audioID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (audio_id, text, created_at) VALUES (?, ?, ?)`,
		record.AudioID, record.Text, record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transcription: %w", err)
	}

	record.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription id: %w", err)
	}

	return record, nil
}

func (s *SQLiteStore) GetTranscription(ctx context.Context, id int64) (*Transcription, error) {
	record := &Transcription{}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, audio_id, text, created_at FROM transcriptions WHERE id = ?`, id,
	).Scan(&record.ID, &record.AudioID, &record.Text, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription: %w", err)
	}

	return record, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and applies the embedded schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	schema, err := loadSchema("postgres.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to execute embedded schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveAudio(ctx context.Context, filename string, data []byte) (*AudioFile, error) {
	file := &AudioFile{
		Filename: filename,
		Size:     int64(len(data)),
		Data:     data,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO audio_files (filename, size, data) VALUES ($1, $2, $3) RETURNING id, uploaded_at`,
		file.Filename, file.Size, file.Data,
	).Scan(&file.ID, &file.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audio file: %w", err)
	}

	return file, nil
}

func (s *PostgresStore) SaveTranscription(ctx context.Context, audioID int64, text string) (*Transcription, error) {
	record := &Transcription{
		AudioID: audioID,
		Text:    text,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO transcriptions (audio_id, text) VALUES ($1, $2) RETURNING id, created_at`,
		record.AudioID, record.Text,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transcription: %w", err)
	}

	return record, nil
}

func (s *PostgresStore) GetTranscription(ctx context.Context, id int64) (*Transcription, error) {
	record := &Transcription{}

	err := s.pool.QueryRow(ctx,
		`SELECT id, audio_id, text, created_at FROM transcriptions WHERE id = $1`, id,
	).Scan(&record.ID, &record.AudioID, &record.Text, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription: %w", err)
	}

	return record, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

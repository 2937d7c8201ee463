package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used for development and tests.
type MemoryStore struct {
	audio          map[int64]*AudioFile
	transcriptions map[int64]*Transcription
	nextAudioID    int64
	nextTextID     int64
	mu             sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		audio:          make(map[int64]*AudioFile),
		transcriptions: make(map[int64]*Transcription),
	}
}

func (s *MemoryStore) SaveAudio(ctx context.Context, filename string, data []byte) (*AudioFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAudioID++
	file := &AudioFile{
		ID:         s.nextAudioID,
		Filename:   filename,
		Size:       int64(len(data)),
		Data:       append([]byte(nil), data...),
		UploadedAt: time.Now().UTC(),
	}
	s.audio[file.ID] = file

	result := *file
	return &result, nil
}

func (s *MemoryStore) SaveTranscription(ctx context.Context, audioID int64, text string) (*Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.audio[audioID]; !exists {
		return nil, fmt.Errorf("audio file %d: %w", audioID, ErrNotFound)
	}

	s.nextTextID++
	record := &Transcription{
		ID:        s.nextTextID,
		AudioID:   audioID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	s.transcriptions[record.ID] = record

	result := *record
	return &result, nil
}

func (s *MemoryStore) GetTranscription(ctx context.Context, id int64) (*Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.transcriptions[id]
	if !exists {
		return nil, ErrNotFound
	}

	result := *record
	return &result, nil
}

// AudioCount returns the number of stored uploads
func (s *MemoryStore) AudioCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audio)
}

func (s *MemoryStore) Close() error {
	return nil
}

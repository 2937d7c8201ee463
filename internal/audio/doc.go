// Package audio holds the streaming audio data model: float32 PCM chunks,
// the per-session utterance buffer that accumulates speech between flushes,
// and WAV encoding/decoding for transcription engines and batch uploads.
package audio

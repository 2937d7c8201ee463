// Package transcription defines the speech-to-text Engine used by streaming
// sessions and batch uploads, with two backends: an HTTP client for
// OpenAI-compatible whisper servers and the go-openai SDK. Shared wraps a
// backend with lazy one-time initialization, a concurrency limit and stats.
package transcription

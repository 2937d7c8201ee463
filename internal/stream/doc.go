// Package stream implements the per-connection transcription session and
// the registry that tracks live sessions.
//
// A Session classifies each inbound chunk as silent or speech, accumulates
// speech in an utterance buffer, and schedules interim and final
// transcriptions on a worker pool. Results are written back through an
// ordered queue so the client sees them in the order they were requested,
// whatever order the engine finishes them in. The Manager owns session
// lifecycle, enforces the concurrent session limit and closes idle
// connections.
package stream

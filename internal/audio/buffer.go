package audio

import (
	"time"
)

// Buffer accumulates the non-silent chunks of one utterance together with
// the run of consecutive silent chunks seen since the last speech or flush.
//
// A Buffer is owned by a single session and is not safe for concurrent use.
type Buffer struct {
	chunks         []Chunk
	totalSamples   int
	nonSilentCount int
	silenceRun     int

	// Timing and metadata
	startedAt  time.Time
	lastUpdate time.Time
	flushes    uint64
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	BufferedChunks  int     `json:"buffered_chunks"`
	BufferedSamples int     `json:"buffered_samples"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	SilenceRun      int     `json:"silence_run"`
	Flushes         uint64  `json:"flushes"`
}

// NewBuffer creates an empty utterance buffer
func NewBuffer() *Buffer {
	return &Buffer{
		chunks: make([]Chunk, 0, 16),
	}
}

// Append adds a non-silent chunk to the utterance
func (b *Buffer) Append(chunk Chunk) {
	if len(b.chunks) == 0 {
		b.startedAt = chunk.ReceivedAt
	}
	b.chunks = append(b.chunks, chunk)
	b.totalSamples += len(chunk.Samples)
	b.nonSilentCount++
	b.lastUpdate = chunk.ReceivedAt
}

// RecordSilence increments the silence run and returns its new value.
// The buffered utterance is left untouched.
func (b *Buffer) RecordSilence() int {
	b.silenceRun++
	return b.silenceRun
}

// ResetSilence sets the silence run back to zero
func (b *Buffer) ResetSilence() {
	b.silenceRun = 0
}

// Flush concatenates all buffered chunks in arrival order, then clears the
// utterance and the non-silent counter. The silence run is not reset.
func (b *Buffer) Flush() []float32 {
	samples := b.concat()

	b.chunks = b.chunks[:0]
	b.totalSamples = 0
	b.nonSilentCount = 0
	b.startedAt = time.Time{}
	b.flushes++

	return samples
}

// Snapshot returns the concatenated utterance without clearing it
func (b *Buffer) Snapshot() []float32 {
	return b.concat()
}

func (b *Buffer) concat() []float32 {
	samples := make([]float32, 0, b.totalSamples)
	for _, chunk := range b.chunks {
		samples = append(samples, chunk.Samples...)
	}
	return samples
}

// IsEmpty reports whether no chunk is buffered
func (b *Buffer) IsEmpty() bool {
	return len(b.chunks) == 0
}

// NonSilentCount returns the number of chunks appended since the last flush
func (b *Buffer) NonSilentCount() int {
	return b.nonSilentCount
}

// SilenceRun returns the current number of consecutive silent chunks
func (b *Buffer) SilenceRun() int {
	return b.silenceRun
}

// SampleRate returns the rate of the buffered utterance, or 0 when empty
func (b *Buffer) SampleRate() int {
	if len(b.chunks) == 0 {
		return 0
	}
	return b.chunks[0].SampleRate
}

// Duration returns the total buffered audio length
func (b *Buffer) Duration() time.Duration {
	rate := b.SampleRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(b.totalSamples) * time.Second / time.Duration(rate)
}

// GetStats returns current buffer statistics
func (b *Buffer) GetStats() BufferStats {
	return BufferStats{
		BufferedChunks:  len(b.chunks),
		BufferedSamples: b.totalSamples,
		BufferedSeconds: b.Duration().Seconds(),
		SilenceRun:      b.silenceRun,
		Flushes:         b.flushes,
	}
}

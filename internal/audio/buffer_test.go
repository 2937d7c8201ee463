package audio

import (
	"testing"
	"time"
)

func testChunk(value float32, n int) Chunk {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return NewChunk(samples, 16000)
}

func TestNewBuffer(t *testing.T) {
	buffer := NewBuffer()

	if !buffer.IsEmpty() {
		t.Error("Expected new buffer to be empty")
	}

	if buffer.NonSilentCount() != 0 {
		t.Errorf("Expected non-silent count 0, got %d", buffer.NonSilentCount())
	}

	if buffer.SilenceRun() != 0 {
		t.Errorf("Expected silence run 0, got %d", buffer.SilenceRun())
	}

	if buffer.SampleRate() != 0 {
		t.Errorf("Expected sample rate 0 for empty buffer, got %d", buffer.SampleRate())
	}
}

func TestAppendAndFlushPreservesOrder(t *testing.T) {
	buffer := NewBuffer()

	buffer.Append(NewChunk([]float32{0.1, 0.2}, 16000))
	buffer.Append(NewChunk([]float32{0.3}, 16000))
	buffer.Append(NewChunk([]float32{0.4, 0.5, 0.6}, 16000))

	if buffer.NonSilentCount() != 3 {
		t.Errorf("Expected non-silent count 3, got %d", buffer.NonSilentCount())
	}

	samples := buffer.Flush()
	expected := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}

	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, expected[i], samples[i])
		}
	}

	if !buffer.IsEmpty() {
		t.Error("Expected buffer to be empty after flush")
	}

	if buffer.NonSilentCount() != 0 {
		t.Errorf("Expected non-silent count reset to 0, got %d", buffer.NonSilentCount())
	}
}

func TestFlushDoesNotResetSilenceRun(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append(testChunk(0.5, 10))

	buffer.RecordSilence()
	buffer.RecordSilence()
	buffer.Flush()

	if buffer.SilenceRun() != 2 {
		t.Errorf("Expected silence run 2 after flush, got %d", buffer.SilenceRun())
	}

	buffer.ResetSilence()
	if buffer.SilenceRun() != 0 {
		t.Errorf("Expected silence run 0 after reset, got %d", buffer.SilenceRun())
	}
}

func TestRecordSilenceLeavesUtterance(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append(testChunk(0.5, 10))

	for i := 1; i <= 3; i++ {
		if run := buffer.RecordSilence(); run != i {
			t.Errorf("Expected silence run %d, got %d", i, run)
		}
	}

	if buffer.IsEmpty() {
		t.Error("Recording silence must not clear the utterance")
	}
	if buffer.NonSilentCount() != 1 {
		t.Errorf("Expected non-silent count 1, got %d", buffer.NonSilentCount())
	}
}

func TestSnapshotDoesNotClear(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append(testChunk(0.5, 100))
	buffer.Append(testChunk(0.25, 100))

	snapshot := buffer.Snapshot()
	if len(snapshot) != 200 {
		t.Errorf("Expected 200 samples in snapshot, got %d", len(snapshot))
	}

	// Mutating the snapshot must not affect buffered audio
	snapshot[0] = 0
	again := buffer.Snapshot()
	if again[0] != 0.5 {
		t.Errorf("Snapshot shares memory with buffer: got %f", again[0])
	}

	if buffer.NonSilentCount() != 2 {
		t.Errorf("Expected non-silent count 2, got %d", buffer.NonSilentCount())
	}
}

func TestBufferDurationAndStats(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append(testChunk(0.5, 16000))
	buffer.Append(testChunk(0.5, 8000))
	buffer.RecordSilence()

	if buffer.Duration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s buffered, got %v", buffer.Duration())
	}

	stats := buffer.GetStats()
	if stats.BufferedChunks != 2 {
		t.Errorf("Expected 2 buffered chunks, got %d", stats.BufferedChunks)
	}
	if stats.BufferedSamples != 24000 {
		t.Errorf("Expected 24000 buffered samples, got %d", stats.BufferedSamples)
	}
	if stats.SilenceRun != 1 {
		t.Errorf("Expected silence run 1, got %d", stats.SilenceRun)
	}

	buffer.Flush()
	if buffer.GetStats().Flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", buffer.GetStats().Flushes)
	}
}

func TestFlushEmptyBuffer(t *testing.T) {
	buffer := NewBuffer()

	samples := buffer.Flush()
	if len(samples) != 0 {
		t.Errorf("Expected no samples from empty buffer, got %d", len(samples))
	}
}

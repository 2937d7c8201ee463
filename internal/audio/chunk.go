package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// BytesPerSample is the size of one little-endian float32 PCM sample
const BytesPerSample = 4

// Chunk is one inbound unit of mono float32 audio. It is not modified after
// construction.
type Chunk struct {
	Samples    []float32
	SampleRate int
	ReceivedAt time.Time
}

// NewChunk creates a chunk stamped with the current time
func NewChunk(samples []float32, sampleRate int) Chunk {
	return Chunk{
		Samples:    samples,
		SampleRate: sampleRate,
		ReceivedAt: time.Now(),
	}
}

// Duration returns the chunk length derived from its own sample rate
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// DecodeFloat32LE converts raw little-endian float32 bytes into samples
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("audio data length must be a multiple of %d (got %d bytes)", BytesPerSample, len(data))
	}

	samples := make([]float32, len(data)/BytesPerSample)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*BytesPerSample:])
		samples[i] = math.Float32frombits(bits)
	}

	return samples, nil
}

// EncodeFloat32LE converts samples into raw little-endian float32 bytes
func EncodeFloat32LE(samples []float32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*BytesPerSample:], math.Float32bits(s))
	}
	return data
}

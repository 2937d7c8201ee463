package audio

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	wavBitDepth     = 16
	wavFormatPCM    = 1
	int16FullScale  = 32767
	encodedChannels = 1
)

// WAVInfo describes the format of a WAV payload
type WAVInfo struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Seconds    float64 `json:"seconds"`
}

// EncodeWAV encodes mono float32 samples as a 16-bit PCM WAV file.
// Samples outside [-1, 1] are clamped.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * int16FullScale)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: encodedChannels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	out := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(out, sampleRate, wavBitDepth, encodedChannels, wavFormatPCM)

	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV header: %w", err)
	}

	wavData, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded WAV: %w", err)
	}

	return wavData, nil
}

// DecodeWAV decodes a PCM WAV file into normalized mono float32 samples.
// Multi-channel audio is averaged down to one channel.
func DecodeWAV(data []byte) ([]float32, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file")
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("unsupported WAV audio format %d, only PCM is supported", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("invalid channel count %d", channels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = float32(sum / float64(channels) / scale)
	}

	return samples, buf.Format.SampleRate, nil
}

// GetWAVInfo reads the format header of a WAV payload
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV duration: %w", err)
	}

	return &WAVInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Seconds:    duration.Seconds(),
	}, nil
}

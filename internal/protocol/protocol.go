package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skypro1111/stt-stream-service/internal/audio"
)

// Message type tags
const (
	TypeAudioData     = "audio_data"
	TypeEndStream     = "end_stream"
	TypeTranscription = "transcription"
)

// ErrUnknownType is wrapped by DecodeError for unrecognized type tags
var ErrUnknownType = errors.New("unknown message type")

// DecodeError reports an inbound frame that cannot be interpreted.
// Such frames are dropped without a response.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
	}
	return "decode error: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Message is a decoded inbound message: *AudioData or *EndStream
type Message interface {
	Type() string
}

// AudioData carries one chunk of mono float32 samples.
// SampleRate is 0 when the client did not declare one.
type AudioData struct {
	Samples    []float32
	SampleRate int
}

func (*AudioData) Type() string { return TypeAudioData }

// EndStream asks the server to finalize the current utterance
type EndStream struct{}

func (*EndStream) Type() string { return TypeEndStream }

// envelope is the inbound wire format
type envelope struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// TranscriptionMessage is the outbound wire format
type TranscriptionMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// NewTranscriptionMessage builds an outbound transcription envelope
func NewTranscriptionMessage(text string, final bool) TranscriptionMessage {
	return TranscriptionMessage{
		Type:  TypeTranscription,
		Text:  text,
		Final: final,
	}
}

// ParseMessage decodes a JSON text frame
func ParseMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	switch env.Type {
	case TypeAudioData:
		if env.Data == "" {
			return nil, &DecodeError{Reason: "audio_data without data"}
		}

		if env.SampleRate < 0 {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid sample rate %d", env.SampleRate)}
		}

		raw, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			return nil, &DecodeError{Reason: "invalid base64 audio", Err: err}
		}

		samples, err := audio.DecodeFloat32LE(raw)
		if err != nil {
			return nil, &DecodeError{Reason: "invalid PCM payload", Err: err}
		}

		return &AudioData{Samples: samples, SampleRate: env.SampleRate}, nil

	case TypeEndStream:
		return &EndStream{}, nil

	case "":
		return nil, &DecodeError{Reason: "missing type"}

	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("type %q", env.Type), Err: ErrUnknownType}
	}
}

// ParseBinary decodes a binary frame of raw little-endian float32 samples
func ParseBinary(data []byte) (Message, error) {
	samples, err := audio.DecodeFloat32LE(data)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid PCM payload", Err: err}
	}

	if len(samples) == 0 {
		return nil, &DecodeError{Reason: "empty binary frame"}
	}

	return &AudioData{Samples: samples}, nil
}

// EncodeAudioData builds an inbound audio_data frame, as a client would send it
func EncodeAudioData(samples []float32, sampleRate int) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       TypeAudioData,
		Data:       base64.StdEncoding.EncodeToString(audio.EncodeFloat32LE(samples)),
		SampleRate: sampleRate,
	})
}

// EncodeEndStream builds an inbound end_stream frame
func EncodeEndStream() ([]byte, error) {
	return json.Marshal(envelope{Type: TypeEndStream})
}

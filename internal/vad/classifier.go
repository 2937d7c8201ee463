package vad

import (
	"fmt"
	"math"
)

// DefaultThreshold is the mean absolute amplitude below which a chunk is
// silent, on a [-1, 1] normalized float scale.
const DefaultThreshold = 0.01

// Verdict is the classification of a single chunk
type Verdict int

const (
	Silent Verdict = iota
	NonSilent
)

// String returns a human-readable verdict
func (v Verdict) String() string {
	switch v {
	case Silent:
		return "silent"
	case NonSilent:
		return "non_silent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// Classifier scores chunks against a fixed amplitude threshold.
// It holds no state and is safe for concurrent use.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier with the given threshold
func NewClassifier(threshold float64) (*Classifier, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	return &Classifier{threshold: threshold}, nil
}

// Classify returns Silent if the chunk's mean absolute amplitude is strictly
// below the threshold. An empty chunk is Silent.
func (c *Classifier) Classify(samples []float32) Verdict {
	if MeanAbsAmplitude(samples) < c.threshold {
		return Silent
	}
	return NonSilent
}

// Threshold returns the configured threshold
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// MeanAbsAmplitude returns the mean of |x| over samples, accumulated in
// float64. The mean of an empty slice is 0.
func MeanAbsAmplitude(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

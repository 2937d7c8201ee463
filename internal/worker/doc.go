// Package worker runs transcription jobs off the connection read loops.
// A Pool has a fixed number of goroutines consuming a bounded queue;
// submission never blocks, so a saturated pool rejects work instead of
// stalling the caller.
package worker

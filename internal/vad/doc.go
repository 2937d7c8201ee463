// Package vad classifies audio chunks as silent or non-silent.
// Detection is a fixed threshold on the mean absolute sample amplitude,
// not a learned voice activity model.
package vad

// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("...: %w") by callers.
var (
	// Buffer access errors
	ErrOutOfRange = errors.New("tracekit: read out of range")

	// Parse errors
	ErrUnsupportedFormat = errors.New("tracekit: unsupported input format")
	ErrInvalidRange      = errors.New("tracekit: invalid scan range")

	// Pool errors
	ErrPoolTerminated = errors.New("tracekit: worker pool terminated")
	ErrTaskPanic      = errors.New("tracekit: task panicked")

	// Output errors
	ErrUnknownSink = errors.New("tracekit: unknown output type")

	// Configuration errors
	ErrConfigInvalid = errors.New("tracekit: invalid configuration")
)

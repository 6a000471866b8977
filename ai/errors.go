package ai

import "errors"

var (
	// ErrUnknownProvider is returned when the configured embedding
	// provider has no registered implementation.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrBatchMismatch is returned when a backend yields a different
	// number of vectors than input texts.
	ErrBatchMismatch = errors.New("embedding batch result mismatch")
)

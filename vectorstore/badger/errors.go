package badger

import "errors"

var (
	// ErrBackendRequired indicates an index was created without a backend.
	ErrBackendRequired = errors.New("backend is required")
)

package watch

import "errors"

var (
	// ErrRunFuncRequired indicates a watcher was created without a run function.
	ErrRunFuncRequired = errors.New("run function is required")
)

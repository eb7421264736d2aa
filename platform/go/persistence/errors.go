package persistence

import "errors"

// Store-level sentinel errors. Domain repositories map these onto their own
// sentinels at the boundary.
var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("record already exists")
	ErrAlreadyRunning = errors.New("job already running")
	ErrCompleted      = errors.New("job already succeeded")
	ErrExhausted      = errors.New("job attempts exhausted")
)

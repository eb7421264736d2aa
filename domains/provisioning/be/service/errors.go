package service

import "errors"

// Errors returned by the provisioning core. Local invariant violations (a
// missing job, a duplicate job) are signaled distinctly and are never stored
// as step failures.
var (
	ErrJobNotFound    = errors.New("provisioning job not found")
	ErrJobConflict    = errors.New("provisioning job already exists")
	ErrAlreadyRunning = errors.New("provisioning job already running")
	ErrJobCompleted   = errors.New("provisioning job already succeeded")
	ErrJobNotFailed   = errors.New("provisioning job is not in a failed state")
	ErrRetryExhausted = errors.New("provisioning job exhausted its retry attempts")
	ErrTenantNotFound = errors.New("tenant not found")
)

package service

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a provisioning job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// ParseJobStatus converts a stored status string; unknown values are errors.
func ParseJobStatus(raw string) (JobStatus, error) {
	switch JobStatus(raw) {
	case JobPending, JobRunning, JobSucceeded, JobFailed:
		return JobStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

// DefaultMaxAttempts is the attempt ceiling applied to new jobs.
const DefaultMaxAttempts = 5

// Job is the durable record of one tenant's provisioning attempt. Exactly one
// row exists per tenant code; retries reuse it, it is never deleted.
type Job struct {
	TenantCode   string
	Status       JobStatus
	CurrentStep  Step
	FailedStep   *Step
	AttemptCount int
	MaxAttempts  int
	LastError    *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob builds the initial PENDING job at the first step.
func NewJob(tenantCode string) Job {
	now := time.Now().UTC()
	return Job{
		TenantCode:  tenantCode,
		Status:      JobPending,
		CurrentStep: FirstStep,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanRetry reports whether another explicit retry is permitted. It depends on
// status and attempt count only, never on the kind of error recorded.
func (j Job) CanRetry() bool {
	return j.Status == JobFailed && j.AttemptCount < j.MaxAttempts
}

// Terminal reports whether the job reached a final successful state.
func (j Job) Terminal() bool {
	return j.Status == JobSucceeded
}

package service

import (
	"context"

	"go.uber.org/zap"
)

// Retry decides whether a failed job may be re-attempted and re-invokes the
// executor from the failed step. Retries are always explicit — triggered by
// the tenant's own retry action or an operator — never scheduled internally.
type Retry struct {
	jobs   JobRepository
	exec   *Executor
	logger *zap.Logger
}

// NewRetry constructs the retry controller.
func NewRetry(jobs JobRepository, exec *Executor, logger *zap.Logger) *Retry {
	if jobs == nil {
		panic("job repository is required")
	}
	if exec == nil {
		panic("executor is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Retry{jobs: jobs, exec: exec, logger: logger}
}

// Retry resumes the job at its failed step. Refusals are sentinel errors:
// ErrJobNotFound when no job exists, ErrJobNotFailed unless the job is
// FAILED, ErrRetryExhausted once the attempt ceiling is reached. A successful
// resume does not touch the attempt counter: attempts count failed runs, so
// MaxAttempts bounds the number of failures, not of executor invocations.
func (r *Retry) Retry(ctx context.Context, tenantCode string) (Job, error) {
	job, err := r.jobs.Get(ctx, tenantCode)
	if err != nil {
		return Job{}, err
	}

	if job.Status != JobFailed {
		return job, ErrJobNotFailed
	}
	if job.AttemptCount >= job.MaxAttempts {
		return job, ErrRetryExhausted
	}

	r.logger.Info("retrying provisioning job",
		zap.String("tenant_code", tenantCode),
		zap.String("resume_step", job.CurrentStep.String()),
		zap.Int("attempt", job.AttemptCount),
	)

	// Resume from the failed step, not from the beginning; step idempotency
	// makes re-running a partially applied step safe.
	return r.exec.Run(ctx, tenantCode)
}

// Start answers the eligibility question synchronously and resumes the run in
// the background. HTTP surfaces use this so the retry request returns at once
// while the client polls the status endpoint.
func (r *Retry) Start(ctx context.Context, tenantCode string) (Job, error) {
	job, err := r.jobs.Get(ctx, tenantCode)
	if err != nil {
		return Job{}, err
	}

	if job.Status != JobFailed {
		return job, ErrJobNotFailed
	}
	if job.AttemptCount >= job.MaxAttempts {
		return job, ErrRetryExhausted
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := r.Retry(runCtx, tenantCode); err != nil {
			r.logger.Warn("background retry ended with error",
				zap.String("tenant_code", tenantCode),
				zap.Error(err),
			)
		}
	}()

	return job, nil
}

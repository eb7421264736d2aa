package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryResumesFailedJob(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, NewJob("acme"))
	f.secondary.tenantErr = errors.New("billing instance unavailable")

	_, err := f.exec.Run(context.Background(), "acme")
	require.Error(t, err)

	f.secondary.tenantErr = nil
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	job, err := retry.Retry(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, job.Status)
	require.Equal(t, 1, job.AttemptCount)

	// Steps before the failure point ran exactly once across both runs.
	require.Equal(t, 1, f.database.calls)
	require.Equal(t, 1, f.primary.authCalls)
	require.Equal(t, 2, f.secondary.tenantCalls)
}

func TestRetryRefusesNonFailedJob(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, NewJob("acme"))
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err := retry.Retry(context.Background(), "acme")
	require.ErrorIs(t, err, ErrJobNotFailed)
}

func TestRetryRefusesSucceededJob(t *testing.T) {
	f := newFixture(t)
	job := NewJob("acme")
	job.Status = JobSucceeded
	f.seedJob(t, job)
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err := retry.Retry(context.Background(), "acme")
	require.ErrorIs(t, err, ErrJobNotFailed)
}

func TestRetryRefusesExhaustedJob(t *testing.T) {
	f := newFixture(t)
	job := NewJob("acme")
	job.Status = JobFailed
	job.AttemptCount = job.MaxAttempts
	f.seedJob(t, job)
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err := retry.Retry(context.Background(), "acme")
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Zero(t, f.database.calls)
}

func TestRetryUnknownJob(t *testing.T) {
	f := newFixture(t)
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err := retry.Retry(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestRetryStartAnswersEligibilitySynchronously(t *testing.T) {
	f := newFixture(t)
	job := NewJob("acme")
	job.Status = JobFailed
	job.AttemptCount = job.MaxAttempts
	f.seedJob(t, job)
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err := retry.Start(context.Background(), "acme")
	require.ErrorIs(t, err, ErrRetryExhausted)
}

func TestRetryStartRunsInBackground(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, NewJob("acme"))
	f.primary.updateErr = errors.New("transient")

	_, err := f.exec.Run(context.Background(), "acme")
	require.Error(t, err)

	f.primary.updateErr = nil
	retry := NewRetry(f.jobs, f.exec, zap.NewNop())

	_, err = retry.Start(context.Background(), "acme")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := f.jobs.Get(context.Background(), "acme")
		return err == nil && job.Status == JobSucceeded
	}, 5*time.Second, 10*time.Millisecond)
}

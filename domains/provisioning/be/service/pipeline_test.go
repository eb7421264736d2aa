package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPipelineBeginCreatesPendingJob(t *testing.T) {
	f := newFixture(t)
	pipeline := NewPipeline(f.jobs, f.exec, zap.NewNop())

	job, err := pipeline.Begin(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, JobPending, job.Status)
	require.Equal(t, StepInit, job.CurrentStep)
	require.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	require.Nil(t, job.StartedAt)
}

func TestPipelineBeginRefusesDuplicate(t *testing.T) {
	f := newFixture(t)
	pipeline := NewPipeline(f.jobs, f.exec, zap.NewNop())

	_, err := pipeline.Begin(context.Background(), "acme")
	require.NoError(t, err)

	_, err = pipeline.Begin(context.Background(), "acme")
	require.ErrorIs(t, err, ErrJobConflict)
}

func TestPipelineKickoffRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	pipeline := NewPipeline(f.jobs, f.exec, zap.NewNop())

	_, err := pipeline.Begin(context.Background(), "acme")
	require.NoError(t, err)

	pipeline.Kickoff("acme")

	require.Eventually(t, func() bool {
		job, err := f.jobs.Get(context.Background(), "acme")
		return err == nil && job.Status == JobSucceeded && f.gateway.isReady()
	}, 5*time.Second, 10*time.Millisecond)
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/persistence"
)

// PostgresRepository implements the job store over the shared persistence layer.
type PostgresRepository struct {
	store *persistence.JobStore
}

// NewPostgresRepository constructs a repository backed by JobStore.
func NewPostgresRepository(store *persistence.JobStore) *PostgresRepository {
	if store == nil {
		panic("job store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, job service.Job) (service.Job, error) {
	rec, err := r.store.Create(ctx, toRecord(job))
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return service.Job{}, service.ErrJobConflict
		}
		return service.Job{}, err
	}
	return toServiceJob(rec)
}

func (r *PostgresRepository) Get(ctx context.Context, tenantCode string) (service.Job, error) {
	rec, err := r.store.Get(ctx, tenantCode)
	if err != nil {
		return service.Job{}, mapStoreErr(err)
	}
	return toServiceJob(rec)
}

func (r *PostgresRepository) Update(ctx context.Context, job service.Job) (service.Job, error) {
	rec, err := r.store.Update(ctx, toRecord(job))
	if err != nil {
		return service.Job{}, mapStoreErr(err)
	}
	return toServiceJob(rec)
}

func (r *PostgresRepository) AcquireRun(ctx context.Context, tenantCode string) (service.Job, error) {
	rec, err := r.store.AcquireRun(ctx, tenantCode)
	if err != nil {
		return service.Job{}, mapStoreErr(err)
	}
	return toServiceJob(rec)
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrJobNotFound
	case errors.Is(err, persistence.ErrAlreadyRunning):
		return service.ErrAlreadyRunning
	case errors.Is(err, persistence.ErrCompleted):
		return service.ErrJobCompleted
	case errors.Is(err, persistence.ErrExhausted):
		return service.ErrRetryExhausted
	default:
		return err
	}
}

func toRecord(job service.Job) persistence.JobRecord {
	var failedStep *string
	if job.FailedStep != nil {
		s := job.FailedStep.String()
		failedStep = &s
	}
	return persistence.JobRecord{
		TenantCode:   job.TenantCode,
		Status:       string(job.Status),
		CurrentStep:  job.CurrentStep.String(),
		FailedStep:   failedStep,
		AttemptCount: job.AttemptCount,
		MaxAttempts:  job.MaxAttempts,
		LastError:    job.LastError,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func toServiceJob(rec persistence.JobRecord) (service.Job, error) {
	status, err := service.ParseJobStatus(rec.Status)
	if err != nil {
		return service.Job{}, fmt.Errorf("job %s: %w", rec.TenantCode, err)
	}
	current, err := service.ParseStep(rec.CurrentStep)
	if err != nil {
		return service.Job{}, fmt.Errorf("job %s: %w", rec.TenantCode, err)
	}

	var failedStep *service.Step
	if rec.FailedStep != nil {
		step, err := service.ParseStep(*rec.FailedStep)
		if err != nil {
			return service.Job{}, fmt.Errorf("job %s: %w", rec.TenantCode, err)
		}
		failedStep = &step
	}

	return service.Job{
		TenantCode:   rec.TenantCode,
		Status:       status,
		CurrentStep:  current,
		FailedStep:   failedStep,
		AttemptCount: rec.AttemptCount,
		MaxAttempts:  rec.MaxAttempts,
		LastError:    rec.LastError,
		StartedAt:    rec.StartedAt,
		CompletedAt:  rec.CompletedAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

var _ service.JobRepository = (*PostgresRepository)(nil)

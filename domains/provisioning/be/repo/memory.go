package repo

import (
	"context"
	"sync"
	"time"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

// MemoryRepository is an in-memory job store suitable for tests and early
// development. It enforces the same one-record-per-tenant and RUNNING-guard
// semantics as the Postgres implementation.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]service.Job
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]service.Job)}
}

func (r *MemoryRepository) Create(ctx context.Context, job service.Job) (service.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.TenantCode]; exists {
		return service.Job{}, service.ErrJobConflict
	}
	r.jobs[job.TenantCode] = job
	return job, nil
}

func (r *MemoryRepository) Get(ctx context.Context, tenantCode string) (service.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[tenantCode]
	if !ok {
		return service.Job{}, service.ErrJobNotFound
	}
	return job, nil
}

func (r *MemoryRepository) Update(ctx context.Context, job service.Job) (service.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.TenantCode]; !ok {
		return service.Job{}, service.ErrJobNotFound
	}
	r.jobs[job.TenantCode] = job
	return job, nil
}

func (r *MemoryRepository) AcquireRun(ctx context.Context, tenantCode string) (service.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[tenantCode]
	if !ok {
		return service.Job{}, service.ErrJobNotFound
	}

	switch job.Status {
	case service.JobRunning:
		return service.Job{}, service.ErrAlreadyRunning
	case service.JobSucceeded:
		return service.Job{}, service.ErrJobCompleted
	case service.JobFailed:
		if job.AttemptCount >= job.MaxAttempts {
			return service.Job{}, service.ErrRetryExhausted
		}
	}

	now := time.Now().UTC()
	job.Status = service.JobRunning
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.UpdatedAt = now
	r.jobs[tenantCode] = job
	return job, nil
}

var _ service.JobRepository = (*MemoryRepository)(nil)

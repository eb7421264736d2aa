package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// runTimeout bounds a whole background run. Individual remote calls carry
// their own tighter timeouts inside the adapters.
const runTimeout = 30 * time.Minute

// Pipeline is the signup-facing entry point: it creates the initial job and
// kicks the executor off in the background. Clients observe the run through
// the status reporter, never through the kickoff call itself.
type Pipeline struct {
	jobs   JobRepository
	exec   *Executor
	logger *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(jobs JobRepository, exec *Executor, logger *zap.Logger) *Pipeline {
	if jobs == nil {
		panic("job repository is required")
	}
	if exec == nil {
		panic("executor is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Pipeline{jobs: jobs, exec: exec, logger: logger}
}

// Begin creates the PENDING job for a freshly signed-up tenant. Creating a
// second job for the same tenant code returns ErrJobConflict.
func (p *Pipeline) Begin(ctx context.Context, tenantCode string) (Job, error) {
	return p.jobs.Create(ctx, NewJob(tenantCode))
}

// Kickoff starts the executor asynchronously. A concurrent run for the same
// tenant is refused by the RUNNING guard and simply logged.
func (p *Pipeline) Kickoff(tenantCode string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := p.exec.Run(ctx, tenantCode); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				p.logger.Info("provisioning run already in flight", zap.String("tenant_code", tenantCode))
				return
			}
			p.logger.Warn("background provisioning run ended with error",
				zap.String("tenant_code", tenantCode),
				zap.Error(err),
			)
		}
	}()
}

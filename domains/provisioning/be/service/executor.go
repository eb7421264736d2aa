package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DatabasePendingSentinel is the placeholder stored in the tenant's database
// identifier columns until COPY_DATABASE resolves the real values. Status
// reporting refuses to declare the workspace ready while it is present.
const DatabasePendingSentinel = "pending"

// Executor drives a provisioning job through the fixed step sequence, one
// step at a time, persisting advancement before every external call so a
// crash resumes at the correct step instead of from scratch.
type Executor struct {
	jobs     JobRepository
	tenants  TenantGateway
	adapters Adapters
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// NewExecutor constructs an Executor with required dependencies.
func NewExecutor(jobs JobRepository, tenants TenantGateway, adapters Adapters, logger *zap.Logger) *Executor {
	if jobs == nil {
		panic("job repository is required")
	}
	if tenants == nil {
		panic("tenant gateway is required")
	}
	if adapters.Database == nil || adapters.Primary == nil || adapters.Secondary == nil {
		panic("all remote adapters are required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Executor{
		jobs:     jobs,
		tenants:  tenants,
		adapters: adapters,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver attaches a metrics observer. Nil observers are ignored.
func (e *Executor) WithObserver(obs Observer) *Executor {
	e.observer = obs
	return e
}

// runState carries cross-step values within a single run. Everything in it is
// reloadable from the tenant record, so a resumed run starts mid-sequence
// with no in-memory state from the failed run.
type runState struct {
	tenant TenantInfo
}

// Run executes the job for tenantCode from its current step to completion.
// A second concurrent invocation for the same tenant code is refused with
// ErrAlreadyRunning via the job store's conditional transition. On a step
// failure the job is persisted as FAILED at that step and the step error is
// returned wrapped; later steps are not attempted.
func (e *Executor) Run(ctx context.Context, tenantCode string) (Job, error) {
	job, err := e.jobs.AcquireRun(ctx, tenantCode)
	if err != nil {
		return Job{}, err
	}

	log := e.logger.With(zap.String("tenant_code", tenantCode))
	log.Info("provisioning run started",
		zap.String("from_step", job.CurrentStep.String()),
		zap.Int("attempt", job.AttemptCount),
	)

	info, err := e.tenants.Info(ctx, tenantCode)
	if err != nil {
		return e.failStep(ctx, log, job, job.CurrentStep, fmt.Errorf("load tenant: %w", err))
	}
	state := &runState{tenant: info}

	for {
		step := job.CurrentStep
		start := e.now()
		stepErr := e.runStep(ctx, state, step)
		elapsed := e.now().Sub(start)

		if stepErr != nil {
			e.observeStep(step, "failure", elapsed)
			return e.failStep(ctx, log, job, step, stepErr)
		}
		e.observeStep(step, "success", elapsed)
		log.Info("provisioning step completed",
			zap.String("step", step.String()),
			zap.Duration("duration", elapsed),
		)

		next, ok := step.Next()
		if !ok {
			return e.succeed(ctx, log, job)
		}

		// Persist advancement before the next external call so a crash
		// between steps resumes at next, not at a duplicate of step.
		job.CurrentStep = next
		job.UpdatedAt = e.now()
		job, err = e.jobs.Update(ctx, job)
		if err != nil {
			return e.failStep(ctx, log, job, next, fmt.Errorf("persist step advancement: %w", err))
		}
	}
}

func (e *Executor) runStep(ctx context.Context, state *runState, step Step) error {
	t := &state.tenant
	switch step {
	case StepInit:
		if t.Subdomain == "" {
			return errors.New("tenant has no target subdomain")
		}
		if t.AdminEmail == "" {
			return errors.New("tenant has no administrator email")
		}
		return e.tenants.MarkProvisioning(ctx, t.Code)

	case StepCopyDatabase:
		info, err := e.adapters.Database.EnsureDatabase(ctx, e.descriptor(*t))
		if err != nil {
			return err
		}
		if info.DatabaseName == "" || info.DatabaseHost == "" {
			return fmt.Errorf("provisioning service returned incomplete connection info %+v", info)
		}
		if err := e.tenants.SetDatabase(ctx, t.Code, info.DatabaseName, info.DatabaseHost); err != nil {
			return fmt.Errorf("store connection info: %w", err)
		}
		t.DatabaseName = info.DatabaseName
		t.DatabaseHost = info.DatabaseHost
		return nil

	case StepPrimaryAuth:
		return e.adapters.Primary.Authenticate(ctx, t.DatabaseName, t.AdminEmail)

	case StepPrimaryAdminUpdate:
		return e.adapters.Primary.UpdateAdminUser(ctx, t.DatabaseName, AdminProfile{
			Email: t.AdminEmail,
			Name:  t.AdminName,
		})

	case StepSecondaryUpsertTenant:
		id, err := e.adapters.Secondary.UpsertTenant(ctx, e.descriptor(*t))
		if err != nil {
			return err
		}
		if err := e.tenants.SetExternalRefs(ctx, t.Code, &id, nil); err != nil {
			return fmt.Errorf("store partner id: %w", err)
		}
		t.PartnerID = &id
		return nil

	case StepSecondaryUpsertUser:
		id, err := e.adapters.Secondary.UpsertUser(ctx, t.Code, AdminProfile{
			Email: t.AdminEmail,
			Name:  t.AdminName,
		})
		if err != nil {
			return err
		}
		if err := e.tenants.SetExternalRefs(ctx, t.Code, nil, &id); err != nil {
			return fmt.Errorf("store billing user id: %w", err)
		}
		t.BillingUserID = &id
		return nil

	case StepBridgeMetadata:
		if t.PartnerID == nil || t.BillingUserID == nil {
			return errors.New("bridge metadata requires partner and billing user ids")
		}
		return e.adapters.Primary.WriteBridgeMetadata(ctx, t.DatabaseName, BridgeRefs{
			PartnerID:     *t.PartnerID,
			BillingUserID: *t.BillingUserID,
		})

	case StepFinalize:
		if t.DatabaseName == DatabasePendingSentinel || t.DatabaseHost == DatabasePendingSentinel {
			return errors.New("database identifiers still unresolved at finalize")
		}
		return e.tenants.Activate(ctx, t.Code)

	default:
		return fmt.Errorf("unknown provisioning step %d", int(step))
	}
}

func (e *Executor) descriptor(t TenantInfo) TenantDescriptor {
	return TenantDescriptor{
		Code:        t.Code,
		Subdomain:   t.Subdomain,
		DisplayName: t.DisplayName,
		Plan:        t.Plan,
		AdminEmail:  t.AdminEmail,
		AdminName:   t.AdminName,
	}
}

// failStep records the failure on the job, leaves CurrentStep at the failed
// step so a retry resumes there, and reflects a sanitized summary onto the
// tenant. The tenant only flips to failed once the attempt ceiling is hit.
func (e *Executor) failStep(ctx context.Context, log *zap.Logger, job Job, step Step, stepErr error) (Job, error) {
	raw := stepErr.Error()

	job.Status = JobFailed
	job.CurrentStep = step
	job.FailedStep = &step
	job.LastError = &raw
	job.AttemptCount++
	job.UpdatedAt = e.now()

	updated, err := e.jobs.Update(ctx, job)
	if err != nil {
		log.Error("persist failed job state", zap.Error(err))
		updated = job
	}

	reason := SanitizeError(raw)
	if updated.AttemptCount >= updated.MaxAttempts {
		if err := e.tenants.MarkFailed(ctx, job.TenantCode, step.String(), reason); err != nil {
			log.Error("mark tenant failed", zap.Error(err))
		}
	} else {
		if err := e.tenants.RecordFailure(ctx, job.TenantCode, step.String(), reason); err != nil {
			log.Error("record tenant failure", zap.Error(err))
		}
	}

	e.observeRun("failure")
	log.Warn("provisioning step failed",
		zap.String("step", step.String()),
		zap.Int("attempt", updated.AttemptCount),
		zap.Int("max_attempts", updated.MaxAttempts),
		zap.Error(stepErr),
	)

	return updated, fmt.Errorf("step %s: %w", step, stepErr)
}

func (e *Executor) succeed(ctx context.Context, log *zap.Logger, job Job) (Job, error) {
	now := e.now()
	job.Status = JobSucceeded
	job.FailedStep = nil
	job.LastError = nil
	job.CompletedAt = &now
	job.UpdatedAt = now

	updated, err := e.jobs.Update(ctx, job)
	if err != nil {
		return job, fmt.Errorf("persist succeeded job: %w", err)
	}

	// The tenant must never read ready while the job is non-terminal, so the
	// job transition is persisted first.
	if err := e.tenants.MarkReady(ctx, job.TenantCode); err != nil {
		return updated, fmt.Errorf("mark tenant ready: %w", err)
	}

	e.observeRun("success")
	log.Info("provisioning run succeeded", zap.Int("attempts", updated.AttemptCount))
	return updated, nil
}

func (e *Executor) observeStep(step Step, outcome string, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveStep(step.String(), outcome, d)
	}
}

func (e *Executor) observeRun(outcome string) {
	if e.observer != nil {
		e.observer.ObserveRun(outcome)
	}
}

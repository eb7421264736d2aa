package service

import (
	"context"
	"time"
)

// Progress nudge while a step is RUNNING: one percent per interval, bounded
// by both nudgeMaxPercent and the next step's base percent.
const (
	nudgeInterval   = 3 * time.Second
	nudgeMaxPercent = 10
)

// StatusReport is the user-safe snapshot of provisioning progress.
type StatusReport struct {
	Status          string     `json:"status"`
	CurrentStep     string     `json:"currentStep"`
	StepDescription string     `json:"stepDescription"`
	ProgressPercent int        `json:"progressPercent"`
	LastError       *string    `json:"lastError"`
	OdooReady       bool       `json:"odooReady"`
	CanRetry        bool       `json:"canRetry"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"maxAttempts"`
	StartedAt       *time.Time `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// StatusReporter derives the report from the job store and tenant registry
// alone; it never touches an external system and never blocks on the
// executor, so it can answer mid-run.
type StatusReporter struct {
	jobs    JobRepository
	tenants TenantGateway
	now     func() time.Time
}

// NewStatusReporter constructs a reporter.
func NewStatusReporter(jobs JobRepository, tenants TenantGateway) *StatusReporter {
	if jobs == nil {
		panic("job repository is required")
	}
	if tenants == nil {
		panic("tenant gateway is required")
	}
	return &StatusReporter{
		jobs:    jobs,
		tenants: tenants,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Status builds the report for a tenant in the given locale.
func (r *StatusReporter) Status(ctx context.Context, tenantCode, locale string) (StatusReport, error) {
	job, err := r.jobs.Get(ctx, tenantCode)
	if err != nil {
		return StatusReport{}, err
	}
	tenant, err := r.tenants.Info(ctx, tenantCode)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		Status:          tenantStatus(job, tenant),
		CurrentStep:     job.CurrentStep.String(),
		StepDescription: job.CurrentStep.Description(locale),
		ProgressPercent: r.progress(job),
		OdooReady:       odooReady(job, tenant),
		CanRetry:        job.CanRetry(),
		Attempts:        job.AttemptCount,
		MaxAttempts:     job.MaxAttempts,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}

	if job.LastError != nil {
		sanitized := SanitizeError(*job.LastError)
		report.LastError = &sanitized
	}

	return report, nil
}

// tenantStatus reports ready only when the job itself is terminal-successful,
// regardless of what the tenant row claims.
func tenantStatus(job Job, tenant TenantInfo) string {
	switch job.Status {
	case JobSucceeded:
		if tenant.Ready {
			return "ready"
		}
		return "provisioning"
	case JobFailed:
		return "failed"
	default:
		return "provisioning"
	}
}

// odooReady guards against the race where the status flips to ready before
// the resolved database identifiers are populated.
func odooReady(job Job, tenant TenantInfo) bool {
	if job.Status != JobSucceeded || !tenant.Ready {
		return false
	}
	return tenant.DatabaseName != "" && tenant.DatabaseName != DatabasePendingSentinel &&
		tenant.DatabaseHost != "" && tenant.DatabaseHost != DatabasePendingSentinel
}

// progress maps the current step to its fixed weight. While RUNNING, elapsed
// wall-clock time within the step nudges the value upward so a slow remote
// call does not look frozen; the nudge never reaches the next step's base.
func (r *StatusReporter) progress(job Job) int {
	if job.Status == JobSucceeded {
		return 100
	}

	base := job.CurrentStep.BasePercent()
	if job.Status != JobRunning {
		return base
	}

	elapsed := r.now().Sub(job.UpdatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	nudge := int(elapsed / nudgeInterval)
	if nudge > nudgeMaxPercent {
		nudge = nudgeMaxPercent
	}

	ceiling := job.CurrentStep.NextBasePercent() - 1
	if base+nudge > ceiling {
		return ceiling
	}
	return base + nudge
}

package service

import (
	"context"
	"fmt"
	"time"
)

// JobRepository abstracts the job store. Implementations must keep one record
// per tenant code and enforce the RUNNING guard in AcquireRun.
type JobRepository interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, tenantCode string) (Job, error)
	Update(ctx context.Context, job Job) (Job, error)
	// AcquireRun atomically transitions PENDING|FAILED -> RUNNING and stamps
	// StartedAt on the first run. It returns ErrAlreadyRunning when a run is
	// in flight, ErrJobCompleted for a succeeded job, ErrRetryExhausted for a
	// failed job at its attempt ceiling, ErrJobNotFound when no job exists for
	// the tenant code.
	AcquireRun(ctx context.Context, tenantCode string) (Job, error)
}

// TenantInfo is the slice of the tenant record the pipeline reads and writes.
type TenantInfo struct {
	Code          string
	DisplayName   string
	Subdomain     string
	Plan          string
	AdminEmail    string
	AdminName     string
	DatabaseName  string
	DatabaseHost  string
	PartnerID     *int64
	BillingUserID *int64
	Active        bool
	Ready         bool
}

// TenantGateway is the executor's write path into the tenant registry. Only
// the pipeline calls the provisioning-result mutations.
type TenantGateway interface {
	Info(ctx context.Context, code string) (TenantInfo, error)
	// MarkProvisioning clears failure fields at the start of a run.
	MarkProvisioning(ctx context.Context, code string) error
	// SetDatabase replaces the sentinel database identifiers with the
	// connection info returned by the provisioning service.
	SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error
	// SetExternalRefs stores remote record IDs; nil arguments are untouched.
	SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error
	Activate(ctx context.Context, code string) error
	MarkReady(ctx context.Context, code string) error
	// RecordFailure stores the failed step and sanitized reason while the
	// tenant stays in provisioning (a retry is still possible).
	RecordFailure(ctx context.Context, code, failedStep, reason string) error
	// MarkFailed additionally flips the tenant status to failed, once the
	// attempt ceiling is reached.
	MarkFailed(ctx context.Context, code, failedStep, reason string) error
}

// TenantDescriptor is the payload sent to the remote collaborators when
// creating or updating a tenant record. Code is the natural upsert key.
type TenantDescriptor struct {
	Code        string
	Subdomain   string
	DisplayName string
	Plan        string
	AdminEmail  string
	AdminName   string
}

// ConnectionInfo is returned by the database provisioning service.
type ConnectionInfo struct {
	DatabaseName string
	DatabaseHost string
}

// DatabaseStatus reports the remote database state.
type DatabaseStatus struct {
	State string
	Ready bool
}

// RemoteError is a structured failure from a remote collaborator. The raw
// detail is stored on the job for operators; only the sanitized rendering
// ever reaches a user-facing surface.
type RemoteError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d (%s): %s", e.HTTPStatus, e.Code, e.Message)
}

// AdminProfile carries the administrative user's identity for upsert calls.
type AdminProfile struct {
	Email string
	Name  string
}

// BridgeRefs are the secondary-instance record IDs written back into the
// tenant's own database during BRIDGE_METADATA.
type BridgeRefs struct {
	PartnerID     int64
	BillingUserID int64
}

// DatabaseProvisioner is the remote service that creates isolated tenant
// databases. EnsureDatabase is an idempotent upsert keyed by tenant code;
// re-running it after a partial failure must not create a second database.
type DatabaseProvisioner interface {
	EnsureDatabase(ctx context.Context, desc TenantDescriptor) (ConnectionInfo, error)
	GetDatabaseStatus(ctx context.Context, tenantCode string) (DatabaseStatus, error)
}

// PrimaryERP operates on the tenant's own ERP database. Every call carries
// the database name so a resumed run needs no prior in-memory session.
type PrimaryERP interface {
	Authenticate(ctx context.Context, database, login string) error
	UpdateAdminUser(ctx context.Context, database string, profile AdminProfile) error
	WriteBridgeMetadata(ctx context.Context, database string, refs BridgeRefs) error
}

// SecondaryERP operates on the shared billing/CRM instance. Both calls are
// find-by-natural-key upserts and return the remote record ID.
type SecondaryERP interface {
	UpsertTenant(ctx context.Context, desc TenantDescriptor) (int64, error)
	UpsertUser(ctx context.Context, tenantCode string, profile AdminProfile) (int64, error)
}

// Adapters groups the external collaborators the executor sequences.
type Adapters struct {
	Database  DatabaseProvisioner
	Primary   PrimaryERP
	Secondary SecondaryERP
}

// Observer receives per-step and per-run measurements. The Prometheus
// implementation lives in platform/go/metrics.
type Observer interface {
	ObserveStep(step, outcome string, d time.Duration)
	ObserveRun(outcome string)
}

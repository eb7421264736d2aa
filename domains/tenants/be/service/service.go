package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors returned by the service layer.
var (
	ErrNotFound = errors.New("tenant not found")
	ErrConflict = errors.New("tenant code or subdomain already exists")
	ErrNotReady = errors.New("tenant is not ready")
)

// TenantStatus is the tenant's overall provisioning outcome. It is a pure
// function of the associated job's state; the pipeline is the only writer.
type TenantStatus string

const (
	StatusProvisioning TenantStatus = "provisioning"
	StatusReady        TenantStatus = "ready"
	StatusFailed       TenantStatus = "failed"
)

// TenantStatusFromString parses a stored status; unknown values are errors.
func TenantStatusFromString(s string) (TenantStatus, error) {
	switch TenantStatus(s) {
	case StatusProvisioning, StatusReady, StatusFailed:
		return TenantStatus(s), nil
	default:
		return "", fmt.Errorf("unknown tenant status %q", s)
	}
}

// DatabasePending is the placeholder stored in the database identifier fields
// until provisioning resolves the real connection info.
const DatabasePending = "pending"

// Tenant is the control-plane record for one customer's isolated ERP instance.
type Tenant struct {
	ID                uuid.UUID
	Code              string
	DisplayName       string
	Subdomain         string
	Plan              string
	Active            bool
	Status            TenantStatus
	LastFailedStep    *string
	LastFailureReason *string
	DatabaseName      string
	DatabaseHost      string
	AdminEmail        string
	AdminName         string
	PartnerID         *int64
	BillingUserID     *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateInput is the signup payload.
type CreateInput struct {
	DisplayName string
	Subdomain   string
	Plan        string
	AdminEmail  string
	AdminName   string
}

// ListOptions captures filters and pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *TenantStatus
}

// ListResult wraps paginated tenants.
type ListResult struct {
	Tenants    []Tenant
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts persistence.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	GetByCode(ctx context.Context, code string) (Tenant, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error
	SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error
	SetProvisioningState(ctx context.Context, code string, status TenantStatus, failedStep, failureReason *string) error
	SetActive(ctx context.Context, code string, active bool) error
}

var subdomainRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Service provides tenant registry operations.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	return &Service{repo: repo}
}

// Create registers a new tenant at signup. The tenant code is derived from
// the subdomain once and never changes afterwards; database identifiers start
// at the pending sentinel until provisioning fills them in.
func (s *Service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	sub := strings.ToLower(strings.TrimSpace(input.Subdomain))
	if !subdomainRe.MatchString(sub) {
		return Tenant{}, fmt.Errorf("invalid subdomain %q", input.Subdomain)
	}
	if strings.TrimSpace(input.AdminEmail) == "" {
		return Tenant{}, errors.New("admin email is required")
	}

	now := time.Now().UTC()
	t := Tenant{
		ID:           uuid.New(),
		Code:         sub,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Subdomain:    sub,
		Plan:         input.Plan,
		Status:       StatusProvisioning,
		DatabaseName: DatabasePending,
		DatabaseHost: DatabasePending,
		AdminEmail:   strings.TrimSpace(input.AdminEmail),
		AdminName:    strings.TrimSpace(input.AdminName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.repo.Create(ctx, t)
}

// Get returns a tenant by code.
func (s *Service) Get(ctx context.Context, code string) (Tenant, error) {
	return s.repo.GetByCode(ctx, code)
}

// List tenants with optional status filter.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// The methods below are the provisioning pipeline's write path. No other
// component mutates the provisioning-result fields.

// MarkProvisioning clears failure fields at the start of a run.
func (s *Service) MarkProvisioning(ctx context.Context, code string) error {
	return s.repo.SetProvisioningState(ctx, code, StatusProvisioning, nil, nil)
}

// SetDatabase replaces the sentinel database identifiers.
func (s *Service) SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error {
	return s.repo.SetDatabase(ctx, code, databaseName, databaseHost)
}

// SetExternalRefs stores remote record IDs; nil arguments keep current values.
func (s *Service) SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error {
	return s.repo.SetExternalRefs(ctx, code, partnerID, billingUserID)
}

// Activate flips the activation flag during the final provisioning step.
func (s *Service) Activate(ctx context.Context, code string) error {
	return s.repo.SetActive(ctx, code, true)
}

// MarkReady transitions the tenant to ready after its job succeeded.
func (s *Service) MarkReady(ctx context.Context, code string) error {
	return s.repo.SetProvisioningState(ctx, code, StatusReady, nil, nil)
}

// RecordFailure stores the failed step and sanitized reason while a retry is
// still possible; the tenant stays in provisioning.
func (s *Service) RecordFailure(ctx context.Context, code, failedStep, reason string) error {
	return s.repo.SetProvisioningState(ctx, code, StatusProvisioning, &failedStep, &reason)
}

// MarkFailed transitions the tenant to failed once retries are exhausted.
func (s *Service) MarkFailed(ctx context.Context, code, failedStep, reason string) error {
	return s.repo.SetProvisioningState(ctx, code, StatusFailed, &failedStep, &reason)
}

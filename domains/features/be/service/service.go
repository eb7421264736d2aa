package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	tenantsservice "github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
)

// Errors returned by the service layer.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantNotReady = errors.New("tenant is not ready for entitlement changes")
)

// Feature is one entitlement granted to a tenant, sourced from the billing
// system or set manually by an operator.
type Feature struct {
	TenantCode string
	Feature    string
	Enabled    bool
	Source     string
	UpdatedAt  time.Time
}

// EntitlementChange is one line of a billing webhook delivery.
type EntitlementChange struct {
	Feature string
	Enabled bool
}

// Repository abstracts persistence.
type Repository interface {
	Upsert(ctx context.Context, f Feature) (Feature, error)
	ListByTenant(ctx context.Context, tenantCode string) ([]Feature, error)
}

// TenantChecker answers whether a tenant exists and is ready. Entitlement
// changes are refused until provisioning has completed, so the billing system
// keeps redelivering the webhook until the tenant can actually honor it.
type TenantChecker interface {
	Get(ctx context.Context, code string) (tenantsservice.Tenant, error)
}

// Service applies entitlement changes to ready tenants.
type Service struct {
	repo    Repository
	tenants TenantChecker
}

// New constructs a Service with required dependencies.
func New(repo Repository, tenants TenantChecker) *Service {
	if repo == nil {
		panic("features repo is required")
	}
	if tenants == nil {
		panic("tenant checker is required")
	}
	return &Service{repo: repo, tenants: tenants}
}

// Apply upserts a batch of entitlement changes for one tenant. The whole
// batch is refused when the tenant is missing or not yet ready.
func (s *Service) Apply(ctx context.Context, tenantCode, source string, changes []EntitlementChange) ([]Feature, error) {
	t, err := s.tenants.Get(ctx, tenantCode)
	if err != nil {
		if errors.Is(err, tenantsservice.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if t.Status != tenantsservice.StatusReady {
		return nil, ErrTenantNotReady
	}

	now := time.Now().UTC()
	applied := make([]Feature, 0, len(changes))
	for _, change := range changes {
		f, err := s.repo.Upsert(ctx, Feature{
			TenantCode: tenantCode,
			Feature:    change.Feature,
			Enabled:    change.Enabled,
			Source:     source,
			UpdatedAt:  now,
		})
		if err != nil {
			return nil, fmt.Errorf("apply entitlement %s: %w", change.Feature, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}

// List returns all entitlements for a tenant.
func (s *Service) List(ctx context.Context, tenantCode string) ([]Feature, error) {
	if _, err := s.tenants.Get(ctx, tenantCode); err != nil {
		if errors.Is(err, tenantsservice.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tenantCode)
}

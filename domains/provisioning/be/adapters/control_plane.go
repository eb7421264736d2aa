package adapters

import (
	"context"
	"errors"

	provservice "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	tenantsservice "github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
)

// TenantGateway bridges the pipeline's write path onto the tenants service.
type TenantGateway struct {
	tenants *tenantsservice.Service
}

// NewTenantGateway constructs the gateway.
func NewTenantGateway(tenants *tenantsservice.Service) *TenantGateway {
	if tenants == nil {
		panic("tenants service is required")
	}
	return &TenantGateway{tenants: tenants}
}

func (g *TenantGateway) Info(ctx context.Context, code string) (provservice.TenantInfo, error) {
	t, err := g.tenants.Get(ctx, code)
	if err != nil {
		if errors.Is(err, tenantsservice.ErrNotFound) {
			return provservice.TenantInfo{}, provservice.ErrTenantNotFound
		}
		return provservice.TenantInfo{}, err
	}
	return provservice.TenantInfo{
		Code:          t.Code,
		DisplayName:   t.DisplayName,
		Subdomain:     t.Subdomain,
		Plan:          t.Plan,
		AdminEmail:    t.AdminEmail,
		AdminName:     t.AdminName,
		DatabaseName:  t.DatabaseName,
		DatabaseHost:  t.DatabaseHost,
		PartnerID:     t.PartnerID,
		BillingUserID: t.BillingUserID,
		Active:        t.Active,
		Ready:         t.Status == tenantsservice.StatusReady,
	}, nil
}

func (g *TenantGateway) MarkProvisioning(ctx context.Context, code string) error {
	return g.tenants.MarkProvisioning(ctx, code)
}

func (g *TenantGateway) SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error {
	return g.tenants.SetDatabase(ctx, code, databaseName, databaseHost)
}

func (g *TenantGateway) SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error {
	return g.tenants.SetExternalRefs(ctx, code, partnerID, billingUserID)
}

func (g *TenantGateway) Activate(ctx context.Context, code string) error {
	return g.tenants.Activate(ctx, code)
}

func (g *TenantGateway) MarkReady(ctx context.Context, code string) error {
	return g.tenants.MarkReady(ctx, code)
}

func (g *TenantGateway) RecordFailure(ctx context.Context, code, failedStep, reason string) error {
	return g.tenants.RecordFailure(ctx, code, failedStep, reason)
}

func (g *TenantGateway) MarkFailed(ctx context.Context, code, failedStep, reason string) error {
	return g.tenants.MarkFailed(ctx, code, failedStep, reason)
}

var _ provservice.TenantGateway = (*TenantGateway)(nil)

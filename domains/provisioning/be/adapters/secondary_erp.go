package adapters

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

// SecondaryOdoo operates on the shared billing/CRM instance. Both operations
// search by a natural key first and only create when nothing matches, so a
// retried run updates the record it created the first time around.
type SecondaryOdoo struct {
	client   *odooClient
	database string
	logger   *zap.Logger
}

// NewSecondaryOdoo constructs the secondary-instance adapter. The database is
// fixed: there is exactly one billing/CRM database.
func NewSecondaryOdoo(cfg OdooConfig, database string, logger *zap.Logger) *SecondaryOdoo {
	if database == "" {
		panic("secondary database name is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &SecondaryOdoo{client: newOdooClient(cfg), database: database, logger: logger}
}

// UpsertTenant creates or updates the tenant's partner record, keyed by the
// tenant code stored in the partner's ref field.
func (s *SecondaryOdoo) UpsertTenant(ctx context.Context, desc service.TenantDescriptor) (int64, error) {
	ids, err := s.client.searchIDs(ctx, s.database, "res.partner",
		[]any{[]any{"ref", "=", desc.Code}})
	if err != nil {
		return 0, fmt.Errorf("find partner for %s: %w", desc.Code, err)
	}

	values := map[string]any{
		"name":       desc.DisplayName,
		"ref":        desc.Code,
		"website":    fmt.Sprintf("https://%s.nimbuserp.com", desc.Subdomain),
		"email":      desc.AdminEmail,
		"is_company": true,
		"comment":    fmt.Sprintf("plan: %s", desc.Plan),
	}

	if len(ids) > 0 {
		var ok bool
		if err := s.client.executeKw(ctx, s.database, "res.partner", "write",
			[]any{[]int64{ids[0]}, values}, nil, &ok); err != nil {
			return 0, fmt.Errorf("update partner for %s: %w", desc.Code, err)
		}
		s.logger.Info("billing partner updated",
			zap.String("tenant_code", desc.Code), zap.Int64("partner_id", ids[0]))
		return ids[0], nil
	}

	var id int64
	if err := s.client.executeKw(ctx, s.database, "res.partner", "create",
		[]any{values}, nil, &id); err != nil {
		return 0, fmt.Errorf("create partner for %s: %w", desc.Code, err)
	}
	s.logger.Info("billing partner created",
		zap.String("tenant_code", desc.Code), zap.Int64("partner_id", id))
	return id, nil
}

// UpsertUser creates or updates the admin's portal user on the billing
// instance, keyed by login (the admin email).
func (s *SecondaryOdoo) UpsertUser(ctx context.Context, tenantCode string, profile service.AdminProfile) (int64, error) {
	ids, err := s.client.searchIDs(ctx, s.database, "res.users",
		[]any{[]any{"login", "=", profile.Email}})
	if err != nil {
		return 0, fmt.Errorf("find billing user for %s: %w", tenantCode, err)
	}

	values := map[string]any{
		"login": profile.Email,
		"email": profile.Email,
		"name":  profile.Name,
	}

	if len(ids) > 0 {
		var ok bool
		if err := s.client.executeKw(ctx, s.database, "res.users", "write",
			[]any{[]int64{ids[0]}, values}, nil, &ok); err != nil {
			return 0, fmt.Errorf("update billing user for %s: %w", tenantCode, err)
		}
		s.logger.Info("billing user updated",
			zap.String("tenant_code", tenantCode), zap.Int64("user_id", ids[0]))
		return ids[0], nil
	}

	var id int64
	if err := s.client.executeKw(ctx, s.database, "res.users", "create",
		[]any{values}, nil, &id); err != nil {
		return 0, fmt.Errorf("create billing user for %s: %w", tenantCode, err)
	}
	s.logger.Info("billing user created",
		zap.String("tenant_code", tenantCode), zap.Int64("user_id", id))
	return id, nil
}

var _ service.SecondaryERP = (*SecondaryOdoo)(nil)

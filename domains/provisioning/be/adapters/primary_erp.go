package adapters

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

// PrimaryOdoo operates on the tenant's own Odoo database. Every method takes
// the database name and authenticates internally, so the pipeline can resume
// mid-sequence in a fresh process.
type PrimaryOdoo struct {
	client *odooClient
	logger *zap.Logger
}

// NewPrimaryOdoo constructs the primary-instance adapter.
func NewPrimaryOdoo(cfg OdooConfig, logger *zap.Logger) *PrimaryOdoo {
	if logger == nil {
		panic("logger is required")
	}
	return &PrimaryOdoo{client: newOdooClient(cfg), logger: logger}
}

// Authenticate verifies that the given login can open a session in the tenant
// database. Used right after database creation to prove the copy is usable.
func (p *PrimaryOdoo) Authenticate(ctx context.Context, database, login string) error {
	_, err := p.client.authenticate(ctx, database, login)
	if err != nil {
		return fmt.Errorf("authenticate in %s: %w", database, err)
	}
	p.logger.Debug("primary authentication succeeded",
		zap.String("database", database), zap.String("login", login))
	return nil
}

// UpdateAdminUser rewrites the template admin account with the signup
// identity. The template database ships a single admin; we locate it by its
// well-known login and overwrite login, email and name in one write.
func (p *PrimaryOdoo) UpdateAdminUser(ctx context.Context, database string, profile service.AdminProfile) error {
	ids, err := p.client.searchIDs(ctx, database, "res.users",
		[]any{[]any{"login", "=", "admin"}})
	if err != nil {
		return fmt.Errorf("find admin user in %s: %w", database, err)
	}
	if len(ids) == 0 {
		// The template admin may already have been renamed by a previous
		// partial run; look it up by the target login before giving up.
		ids, err = p.client.searchIDs(ctx, database, "res.users",
			[]any{[]any{"login", "=", profile.Email}})
		if err != nil {
			return fmt.Errorf("find admin user in %s: %w", database, err)
		}
	}
	if len(ids) == 0 {
		return &service.RemoteError{
			HTTPStatus: http.StatusUnprocessableEntity,
			Code:       "admin_not_found",
			Message:    fmt.Sprintf("no admin account found in database %s", database),
		}
	}

	values := map[string]any{
		"login": profile.Email,
		"email": profile.Email,
		"name":  profile.Name,
	}
	var ok bool
	if err := p.client.executeKw(ctx, database, "res.users", "write",
		[]any{[]int64{ids[0]}, values}, nil, &ok); err != nil {
		return fmt.Errorf("update admin user in %s: %w", database, err)
	}

	p.logger.Info("admin user updated",
		zap.String("database", database), zap.Int64("user_id", ids[0]))
	return nil
}

// WriteBridgeMetadata stores the secondary-instance record IDs as system
// parameters inside the tenant database, linking it back to billing/CRM.
func (p *PrimaryOdoo) WriteBridgeMetadata(ctx context.Context, database string, refs service.BridgeRefs) error {
	params := map[string]string{
		"nimbus.billing_partner_id": fmt.Sprintf("%d", refs.PartnerID),
		"nimbus.billing_user_id":    fmt.Sprintf("%d", refs.BillingUserID),
	}
	for key, value := range params {
		if err := p.client.executeKw(ctx, database, "ir.config_parameter", "set_param",
			[]any{key, value}, nil, nil); err != nil {
			return fmt.Errorf("write bridge parameter %s in %s: %w", key, database, err)
		}
	}

	p.logger.Info("bridge metadata written",
		zap.String("database", database),
		zap.Int64("partner_id", refs.PartnerID),
		zap.Int64("billing_user_id", refs.BillingUserID))
	return nil
}

var _ service.PrimaryERP = (*PrimaryOdoo)(nil)

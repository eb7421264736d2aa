package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/persistence"
)

// PostgresRepository implements the tenant repository over the shared
// persistence layer.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.Create(ctx, toRecord(t))
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return service.Tenant{}, service.ErrConflict
		}
		return service.Tenant{}, err
	}
	return toServiceTenant(rec)
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (service.Tenant, error) {
	rec, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toServiceTenant(rec)
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}

	var statusStr *string
	if opts.Status != nil {
		s := string(*opts.Status)
		statusStr = &s
	}

	rows, total, err := r.store.List(ctx, statusStr, size, (page-1)*size)
	if err != nil {
		return service.ListResult{}, err
	}

	tenants := make([]service.Tenant, 0, len(rows))
	for _, rec := range rows {
		t, err := toServiceTenant(rec)
		if err != nil {
			return service.ListResult{}, err
		}
		tenants = append(tenants, t)
	}

	totalPages := (total + size - 1) / size
	return service.ListResult{Tenants: tenants, Page: page, PageSize: size, TotalItems: total, TotalPages: totalPages}, nil
}

func (r *PostgresRepository) SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error {
	return mapNotFound(r.store.SetDatabase(ctx, code, databaseName, databaseHost))
}

func (r *PostgresRepository) SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error {
	return mapNotFound(r.store.SetExternalRefs(ctx, code, partnerID, billingUserID))
}

func (r *PostgresRepository) SetProvisioningState(ctx context.Context, code string, status service.TenantStatus, failedStep, failureReason *string) error {
	return mapNotFound(r.store.SetProvisioningState(ctx, code, string(status), failedStep, failureReason))
}

func (r *PostgresRepository) SetActive(ctx context.Context, code string, active bool) error {
	return mapNotFound(r.store.SetActive(ctx, code, active))
}

func toRecord(t service.Tenant) persistence.TenantRecord {
	return persistence.TenantRecord{
		ID:                t.ID,
		Code:              t.Code,
		DisplayName:       t.DisplayName,
		Subdomain:         t.Subdomain,
		Plan:              t.Plan,
		Active:            t.Active,
		Status:            string(t.Status),
		LastFailedStep:    t.LastFailedStep,
		LastFailureReason: t.LastFailureReason,
		DatabaseName:      t.DatabaseName,
		DatabaseHost:      t.DatabaseHost,
		AdminEmail:        t.AdminEmail,
		AdminName:         t.AdminName,
		PartnerID:         t.PartnerID,
		BillingUserID:     t.BillingUserID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toServiceTenant(rec persistence.TenantRecord) (service.Tenant, error) {
	status, err := service.TenantStatusFromString(rec.Status)
	if err != nil {
		return service.Tenant{}, fmt.Errorf("tenant %s: %w", rec.Code, err)
	}
	return service.Tenant{
		ID:                rec.ID,
		Code:              rec.Code,
		DisplayName:       rec.DisplayName,
		Subdomain:         rec.Subdomain,
		Plan:              rec.Plan,
		Active:            rec.Active,
		Status:            status,
		LastFailedStep:    rec.LastFailedStep,
		LastFailureReason: rec.LastFailureReason,
		DatabaseName:      rec.DatabaseName,
		DatabaseHost:      rec.DatabaseHost,
		AdminEmail:        rec.AdminEmail,
		AdminName:         rec.AdminName,
		PartnerID:         rec.PartnerID,
		BillingUserID:     rec.BillingUserID,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return service.ErrNotFound
	}
	return err
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)

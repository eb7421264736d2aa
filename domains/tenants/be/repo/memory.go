package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development.
type MemoryRepository struct {
	mu     sync.RWMutex
	byCode map[string]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byCode: make(map[string]service.Tenant)}
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[t.Code]; exists {
		return service.Tenant{}, service.ErrConflict
	}
	for _, existing := range r.byCode {
		if existing.Subdomain == t.Subdomain {
			return service.Tenant{}, service.ErrConflict
		}
	}

	r.byCode[t.Code] = t
	return t, nil
}

func (r *MemoryRepository) GetByCode(ctx context.Context, code string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byCode[code]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byCode))
	for _, t := range r.byCode {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		items = append(items, t)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	totalPages := (len(items) + pageSize - 1) / pageSize
	return service.ListResult{
		Tenants:    items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: totalPages,
	}, nil
}

func (r *MemoryRepository) SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error {
	return r.mutate(code, func(t *service.Tenant) {
		t.DatabaseName = databaseName
		t.DatabaseHost = databaseHost
	})
}

func (r *MemoryRepository) SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error {
	return r.mutate(code, func(t *service.Tenant) {
		if partnerID != nil {
			t.PartnerID = partnerID
		}
		if billingUserID != nil {
			t.BillingUserID = billingUserID
		}
	})
}

func (r *MemoryRepository) SetProvisioningState(ctx context.Context, code string, status service.TenantStatus, failedStep, failureReason *string) error {
	return r.mutate(code, func(t *service.Tenant) {
		t.Status = status
		t.LastFailedStep = failedStep
		t.LastFailureReason = failureReason
	})
}

func (r *MemoryRepository) SetActive(ctx context.Context, code string, active bool) error {
	return r.mutate(code, func(t *service.Tenant) {
		t.Active = active
	})
}

func (r *MemoryRepository) mutate(code string, fn func(*service.Tenant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byCode[code]
	if !ok {
		return service.ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	r.byCode[code] = t
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)

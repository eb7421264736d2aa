package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/nimbuserp/nimbus-saas/domains/features/be/service"
)

type featureKey struct {
	tenantCode string
	feature    string
}

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development.
type MemoryRepository struct {
	mu       sync.RWMutex
	features map[featureKey]service.Feature
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{features: make(map[featureKey]service.Feature)}
}

func (r *MemoryRepository) Upsert(ctx context.Context, f service.Feature) (service.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.features[featureKey{tenantCode: f.TenantCode, feature: f.Feature}] = f
	return f, nil
}

func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantCode string) ([]service.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []service.Feature
	for key, f := range r.features {
		if key.tenantCode == tenantCode {
			items = append(items, f)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Feature < items[j].Feature })
	return items, nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)

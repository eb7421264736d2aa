package repo

import (
	"context"

	"github.com/nimbuserp/nimbus-saas/domains/features/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/persistence"
)

// PostgresRepository implements the features repository over the shared
// persistence layer.
type PostgresRepository struct {
	store *persistence.FeatureStore
}

// NewPostgresRepository constructs a repository backed by FeatureStore.
func NewPostgresRepository(store *persistence.FeatureStore) *PostgresRepository {
	if store == nil {
		panic("feature store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Upsert(ctx context.Context, f service.Feature) (service.Feature, error) {
	rec, err := r.store.Upsert(ctx, persistence.FeatureRecord{
		TenantCode: f.TenantCode,
		Feature:    f.Feature,
		Enabled:    f.Enabled,
		Source:     f.Source,
		UpdatedAt:  f.UpdatedAt,
	})
	if err != nil {
		return service.Feature{}, err
	}
	return toServiceFeature(rec), nil
}

func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantCode string) ([]service.Feature, error) {
	records, err := r.store.ListByTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	features := make([]service.Feature, 0, len(records))
	for _, rec := range records {
		features = append(features, toServiceFeature(rec))
	}
	return features, nil
}

func toServiceFeature(rec persistence.FeatureRecord) service.Feature {
	return service.Feature{
		TenantCode: rec.TenantCode,
		Feature:    rec.Feature,
		Enabled:    rec.Enabled,
		Source:     rec.Source,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FeaturesTable maps entitlements from the billing system onto tenants,
// unique per (tenant_code, feature).
const FeaturesTable = "tenant_features"

// FeatureRecord mirrors one tenant_features row.
type FeatureRecord struct {
	TenantCode string    `db:"tenant_code"`
	Feature    string    `db:"feature"`
	Enabled    bool      `db:"enabled"`
	Source     string    `db:"source"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// FeatureStore provides access to the tenant features table.
type FeatureStore struct {
	pool *pgxpool.Pool
}

// NewFeatureStore creates a store; assumes migrations already created the table.
func NewFeatureStore(pool *pgxpool.Pool) (*FeatureStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &FeatureStore{pool: pool}, nil
}

// Upsert inserts or updates the entitlement keyed by (tenant_code, feature).
func (s *FeatureStore) Upsert(ctx context.Context, rec FeatureRecord) (FeatureRecord, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (tenant_code, feature, enabled, source, updated_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_code, feature)
        DO UPDATE SET enabled = EXCLUDED.enabled, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at
        RETURNING tenant_code, feature, enabled, source, updated_at
    `, FeaturesTable)

	var out FeatureRecord
	err := s.pool.QueryRow(ctx, query,
		rec.TenantCode, rec.Feature, rec.Enabled, rec.Source, rec.UpdatedAt,
	).Scan(&out.TenantCode, &out.Feature, &out.Enabled, &out.Source, &out.UpdatedAt)
	if err != nil {
		return FeatureRecord{}, err
	}
	return out, nil
}

// ListByTenant returns all entitlements for a tenant code.
func (s *FeatureStore) ListByTenant(ctx context.Context, tenantCode string) ([]FeatureRecord, error) {
	query := fmt.Sprintf(`SELECT tenant_code, feature, enabled, source, updated_at
        FROM %s WHERE tenant_code = $1 ORDER BY feature`, FeaturesTable)

	rows, err := s.pool.Query(ctx, query, tenantCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FeatureRecord
	for rows.Next() {
		var rec FeatureRecord
		if err := rows.Scan(&rec.TenantCode, &rec.Feature, &rec.Enabled, &rec.Source, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeatureStoreUpsertIsIdempotent(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewFeatureStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	rec := FeatureRecord{
		TenantCode: code,
		Feature:    "advanced_reports",
		Enabled:    true,
		Source:     "billing",
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	created, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	require.True(t, created.Enabled)

	// Redelivery with a new value updates the same row.
	rec.Enabled = false
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	updated, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	require.False(t, updated.Enabled)

	records, err := store.ListByTenant(ctx, code)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, records[0].Enabled)
}

func TestFeatureStoreListOrderedByFeature(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewFeatureStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, feature := range []string{"zebra_mode", "api_access", "advanced_reports"} {
		_, err := store.Upsert(ctx, FeatureRecord{
			TenantCode: code,
			Feature:    feature,
			Enabled:    true,
			Source:     "billing",
			UpdatedAt:  now,
		})
		require.NoError(t, err)
	}

	records, err := store.ListByTenant(ctx, code)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "advanced_reports", records[0].Feature)
	require.Equal(t, "api_access", records[1].Feature)
	require.Equal(t, "zebra_mode", records[2].Feature)

	empty, err := store.ListByTenant(ctx, uniqueCode("ghost"))
	require.NoError(t, err)
	require.Empty(t, empty)
}

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTenantRecord(code string) TenantRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return TenantRecord{
		ID:           uuid.New(),
		Code:         code,
		DisplayName:  "Acme Corp",
		Subdomain:    code,
		Plan:         "standard",
		Status:       "provisioning",
		DatabaseName: "pending",
		DatabaseHost: "pending",
		AdminEmail:   "owner@" + code + ".test",
		AdminName:    "Alex Doe",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func uniqueCode(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestTenantStoreCreateAndGet(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewTenantStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	rec := newTenantRecord(uniqueCode("acme"))
	created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, rec.Code, created.Code)
	require.Equal(t, "pending", created.DatabaseName)

	got, err := store.GetByCode(ctx, rec.Code)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = store.GetByCode(ctx, uniqueCode("ghost"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTenantStoreDuplicateCodeConflicts(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewTenantStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	rec := newTenantRecord(uniqueCode("acme"))
	_, err = store.Create(ctx, rec)
	require.NoError(t, err)

	dup := newTenantRecord(rec.Code)
	_, err = store.Create(ctx, dup)
	require.ErrorIs(t, err, ErrConflict)

	// Same subdomain under a different code is also refused.
	other := newTenantRecord(uniqueCode("other"))
	other.Subdomain = rec.Subdomain
	_, err = store.Create(ctx, other)
	require.ErrorIs(t, err, ErrConflict)
}

func TestTenantStoreProvisioningWrites(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewTenantStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	rec := newTenantRecord(uniqueCode("acme"))
	_, err = store.Create(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, store.SetDatabase(ctx, rec.Code, "erp_acme", "db-7.internal"))

	partnerID := int64(4711)
	require.NoError(t, store.SetExternalRefs(ctx, rec.Code, &partnerID, nil))
	billingID := int64(93)
	require.NoError(t, store.SetExternalRefs(ctx, rec.Code, nil, &billingID))

	require.NoError(t, store.SetActive(ctx, rec.Code, true))
	require.NoError(t, store.SetProvisioningState(ctx, rec.Code, "ready", nil, nil))

	got, err := store.GetByCode(ctx, rec.Code)
	require.NoError(t, err)
	require.Equal(t, "erp_acme", got.DatabaseName)
	require.Equal(t, "db-7.internal", got.DatabaseHost)
	require.NotNil(t, got.PartnerID)
	require.EqualValues(t, 4711, *got.PartnerID)
	require.NotNil(t, got.BillingUserID)
	require.EqualValues(t, 93, *got.BillingUserID)
	require.True(t, got.Active)
	require.Equal(t, "ready", got.Status)
}

func TestTenantStoreFailureState(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewTenantStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	rec := newTenantRecord(uniqueCode("acme"))
	_, err = store.Create(ctx, rec)
	require.NoError(t, err)

	step := "PRIMARY_AUTH"
	reason := "authentication rejected"
	require.NoError(t, store.SetProvisioningState(ctx, rec.Code, "failed", &step, &reason))

	got, err := store.GetByCode(ctx, rec.Code)
	require.NoError(t, err)
	require.Equal(t, "failed", got.Status)
	require.Equal(t, &step, got.LastFailedStep)
	require.Equal(t, &reason, got.LastFailureReason)

	require.ErrorIs(t, store.SetActive(ctx, uniqueCode("ghost"), true), ErrNotFound)
}

func TestTenantStoreListFiltersByStatus(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewTenantStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	ready := newTenantRecord(uniqueCode("ready"))
	ready.Status = "ready"
	_, err = store.Create(ctx, ready)
	require.NoError(t, err)

	prov := newTenantRecord(uniqueCode("prov"))
	_, err = store.Create(ctx, prov)
	require.NoError(t, err)

	status := "ready"
	records, total, err := store.List(ctx, &status, 100, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, total, 1)
	for _, r := range records {
		require.Equal(t, "ready", r.Status)
	}
}

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newJobRecord(tenantCode string) JobRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return JobRecord{
		TenantCode:  tenantCode,
		Status:      "PENDING",
		CurrentStep: "INIT",
		MaxAttempts: 5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// seedTenantRow satisfies the jobs table's foreign key on tenants.code.
func seedTenantRow(t *testing.T, pool *pgxpool.Pool, code string) {
	t.Helper()
	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	_, err = tenants.Create(context.Background(), newTenantRecord(code))
	require.NoError(t, err)
}

func TestJobStoreCreateAndGet(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	rec := newJobRecord(code)
	created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, "PENDING", created.Status)
	require.Nil(t, created.StartedAt)

	got, err := store.Get(ctx, code)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = store.Get(ctx, uniqueCode("ghost"))
	require.ErrorIs(t, err, ErrNotFound)

	// One job per tenant.
	_, err = store.Create(ctx, rec)
	require.ErrorIs(t, err, ErrConflict)
}

func TestJobStoreUpdate(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	rec, err := store.Create(ctx, newJobRecord(code))
	require.NoError(t, err)

	failedStep := "PRIMARY_AUTH"
	lastError := "authentication rejected"
	rec.Status = "FAILED"
	rec.CurrentStep = failedStep
	rec.FailedStep = &failedStep
	rec.AttemptCount = 1
	rec.LastError = &lastError
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	updated, err := store.Update(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, "FAILED", updated.Status)
	require.Equal(t, &failedStep, updated.FailedStep)
	require.Equal(t, 1, updated.AttemptCount)
	require.Equal(t, &lastError, updated.LastError)
}

func TestJobStoreAcquireRunGuard(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	_, err = store.Create(ctx, newJobRecord(code))
	require.NoError(t, err)

	acquired, err := store.AcquireRun(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "RUNNING", acquired.Status)
	require.NotNil(t, acquired.StartedAt)

	// A second acquisition while the first run holds the row is refused.
	_, err = store.AcquireRun(ctx, code)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = store.AcquireRun(ctx, uniqueCode("ghost"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobStoreAcquireRunAfterFailure(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	_, err = store.Create(ctx, newJobRecord(code))
	require.NoError(t, err)

	first, err := store.AcquireRun(ctx, code)
	require.NoError(t, err)
	firstStart := *first.StartedAt

	first.Status = "FAILED"
	first.AttemptCount = 1
	first.UpdatedAt = time.Now().UTC()
	_, err = store.Update(ctx, first)
	require.NoError(t, err)

	// A retry re-acquires the row and keeps the original start time.
	second, err := store.AcquireRun(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "RUNNING", second.Status)
	require.Equal(t, 1, second.AttemptCount)
	require.WithinDuration(t, firstStart, *second.StartedAt, time.Millisecond)
}

func TestJobStoreAcquireRunRefusesExhausted(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	_, err = store.Create(ctx, newJobRecord(code))
	require.NoError(t, err)

	running, err := store.AcquireRun(ctx, code)
	require.NoError(t, err)

	running.Status = "FAILED"
	running.AttemptCount = running.MaxAttempts
	running.UpdatedAt = time.Now().UTC()
	_, err = store.Update(ctx, running)
	require.NoError(t, err)

	// The conditional update refuses the row, keeping attempt_count within
	// the table's check constraint no matter who calls.
	_, err = store.AcquireRun(ctx, code)
	require.ErrorIs(t, err, ErrExhausted)

	got, err := store.Get(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "FAILED", got.Status)
	require.Equal(t, got.MaxAttempts, got.AttemptCount)
}

func TestJobStoreAcquireRunRefusesCompleted(t *testing.T) {
	pool := mustTestPool(t)
	store, err := NewJobStore(pool)
	require.NoError(t, err)
	ctx := context.Background()

	code := uniqueCode("acme")
	seedTenantRow(t, pool, code)

	_, err = store.Create(ctx, newJobRecord(code))
	require.NoError(t, err)

	running, err := store.AcquireRun(ctx, code)
	require.NoError(t, err)

	now := time.Now().UTC()
	running.Status = "SUCCEEDED"
	running.CurrentStep = "FINALIZE"
	running.CompletedAt = &now
	running.UpdatedAt = now
	_, err = store.Update(ctx, running)
	require.NoError(t, err)

	_, err = store.AcquireRun(ctx, code)
	require.ErrorIs(t, err, ErrCompleted)
}

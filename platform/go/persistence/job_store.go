package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobsTable holds provisioning jobs, one row per tenant code.
const JobsTable = "provisioning_jobs"

// JobRecord mirrors one provisioning_jobs row. Steps and statuses are stored
// as text and parsed through the closed enums at the repository boundary.
type JobRecord struct {
	TenantCode   string     `db:"tenant_code"`
	Status       string     `db:"status"`
	CurrentStep  string     `db:"current_step"`
	FailedStep   *string    `db:"failed_step"`
	AttemptCount int        `db:"attempt_count"`
	MaxAttempts  int        `db:"max_attempts"`
	LastError    *string    `db:"last_error"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

const jobColumns = `tenant_code, status, current_step, failed_step, attempt_count,
    max_attempts, last_error, started_at, completed_at, created_at, updated_at`

// JobStore provides access to the provisioning jobs table.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a store; assumes migrations already created the table.
func NewJobStore(pool *pgxpool.Pool) (*JobStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Create inserts the initial job row. ErrConflict when the tenant already has one.
func (s *JobStore) Create(ctx context.Context, rec JobRecord) (JobRecord, error) {
	if rec.TenantCode == "" {
		return JobRecord{}, errors.New("tenant code is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (%s)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING %s
    `, JobsTable, jobColumns, jobColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.TenantCode, rec.Status, rec.CurrentStep, rec.FailedStep, rec.AttemptCount,
		rec.MaxAttempts, rec.LastError, rec.StartedAt, rec.CompletedAt, rec.CreatedAt, rec.UpdatedAt,
	)

	out, err := scanJobRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JobRecord{}, ErrConflict
		}
		return JobRecord{}, err
	}
	return out, nil
}

// Get fetches the job for a tenant code.
func (s *JobStore) Get(ctx context.Context, tenantCode string) (JobRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_code = $1", jobColumns, JobsTable)
	return scanJobRecord(s.pool.QueryRow(ctx, query, tenantCode))
}

// Update persists the mutable job fields.
func (s *JobStore) Update(ctx context.Context, rec JobRecord) (JobRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET
            status = $2, current_step = $3, failed_step = $4, attempt_count = $5,
            last_error = $6, started_at = $7, completed_at = $8, updated_at = $9
        WHERE tenant_code = $1
        RETURNING %s
    `, JobsTable, jobColumns)

	return scanJobRecord(s.pool.QueryRow(ctx, query,
		rec.TenantCode, rec.Status, rec.CurrentStep, rec.FailedStep, rec.AttemptCount,
		rec.LastError, rec.StartedAt, rec.CompletedAt, rec.UpdatedAt,
	))
}

// AcquireRun transitions PENDING|FAILED -> RUNNING in a single conditional
// update; the unique tenant_code row is the mutual-exclusion mechanism for
// concurrent runs. FAILED jobs at the attempt ceiling are refused here, not
// just in the retry layer, so a direct run can never push attempt_count past
// max_attempts. StartedAt is stamped on the first acquisition only.
func (s *JobStore) AcquireRun(ctx context.Context, tenantCode string) (JobRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET
            status = 'RUNNING',
            started_at = COALESCE(started_at, now()),
            updated_at = now()
        WHERE tenant_code = $1
          AND (status = 'PENDING' OR (status = 'FAILED' AND attempt_count < max_attempts))
        RETURNING %s
    `, JobsTable, jobColumns)

	rec, err := scanJobRecord(s.pool.QueryRow(ctx, query, tenantCode))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return JobRecord{}, err
	}

	// The guard refused; distinguish why for the caller.
	current, getErr := s.Get(ctx, tenantCode)
	if getErr != nil {
		return JobRecord{}, getErr
	}
	switch current.Status {
	case "RUNNING":
		return JobRecord{}, ErrAlreadyRunning
	case "SUCCEEDED":
		return JobRecord{}, ErrCompleted
	case "FAILED":
		return JobRecord{}, ErrExhausted
	default:
		return JobRecord{}, fmt.Errorf("job for %s in unexpected status %q", tenantCode, current.Status)
	}
}

func scanJobRecord(row pgx.Row) (JobRecord, error) {
	var rec JobRecord
	err := row.Scan(
		&rec.TenantCode, &rec.Status, &rec.CurrentStep, &rec.FailedStep, &rec.AttemptCount,
		&rec.MaxAttempts, &rec.LastError, &rec.StartedAt, &rec.CompletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JobRecord{}, ErrNotFound
		}
		return JobRecord{}, err
	}
	return rec, nil
}

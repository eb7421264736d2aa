package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantsTable is the control-plane tenant registry, keyed by the immutable
// tenant code.
const TenantsTable = "tenants"

// TenantRecord mirrors one tenants row.
type TenantRecord struct {
	ID                uuid.UUID `db:"id"`
	Code              string    `db:"code"`
	DisplayName       string    `db:"display_name"`
	Subdomain         string    `db:"subdomain"`
	Plan              string    `db:"plan"`
	Active            bool      `db:"active"`
	Status            string    `db:"status"`
	LastFailedStep    *string   `db:"last_failed_step"`
	LastFailureReason *string   `db:"last_failure_reason"`
	DatabaseName      string    `db:"database_name"`
	DatabaseHost      string    `db:"database_host"`
	AdminEmail        string    `db:"admin_email"`
	AdminName         string    `db:"admin_name"`
	PartnerID         *int64    `db:"partner_id"`
	BillingUserID     *int64    `db:"billing_user_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

const tenantColumns = `id, code, display_name, subdomain, plan, active, status,
    last_failed_step, last_failure_reason, database_name, database_host,
    admin_email, admin_name, partner_id, billing_user_id, created_at, updated_at`

// TenantStore provides access to the tenants table.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a store; assumes migrations already created the table.
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

// Create inserts a tenant. ErrConflict on duplicate code or subdomain.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.ID == uuid.Nil {
		return TenantRecord{}, errors.New("tenant id is required")
	}
	if rec.Code == "" {
		return TenantRecord{}, errors.New("tenant code is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (%s)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING %s
    `, TenantsTable, tenantColumns, tenantColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.ID, rec.Code, rec.DisplayName, rec.Subdomain, rec.Plan, rec.Active, rec.Status,
		rec.LastFailedStep, rec.LastFailureReason, rec.DatabaseName, rec.DatabaseHost,
		rec.AdminEmail, rec.AdminName, rec.PartnerID, rec.BillingUserID, rec.CreatedAt, rec.UpdatedAt,
	)

	out, err := scanTenantRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return TenantRecord{}, ErrConflict
		}
		return TenantRecord{}, err
	}
	return out, nil
}

// GetByCode fetches a tenant by its code.
func (s *TenantStore) GetByCode(ctx context.Context, code string) (TenantRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE code = $1", tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, code))
}

// List returns tenants ordered by creation time, optionally filtered by status.
func (s *TenantStore) List(ctx context.Context, status *string, limit, offset int) ([]TenantRecord, int, error) {
	where := ""
	args := []any{}
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, *status)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", TenantsTable, where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		tenantColumns, TenantsTable, where, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []TenantRecord
	for rows.Next() {
		rec, err := scanTenantRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SetDatabase replaces the sentinel database identifiers.
func (s *TenantStore) SetDatabase(ctx context.Context, code, databaseName, databaseHost string) error {
	query := fmt.Sprintf(`UPDATE %s SET database_name = $2, database_host = $3, updated_at = now() WHERE code = $1`, TenantsTable)
	return s.execOne(ctx, query, code, databaseName, databaseHost)
}

// SetExternalRefs stores remote record IDs; nil arguments keep current values.
func (s *TenantStore) SetExternalRefs(ctx context.Context, code string, partnerID, billingUserID *int64) error {
	query := fmt.Sprintf(`UPDATE %s SET
        partner_id = COALESCE($2, partner_id),
        billing_user_id = COALESCE($3, billing_user_id),
        updated_at = now()
        WHERE code = $1`, TenantsTable)
	return s.execOne(ctx, query, code, partnerID, billingUserID)
}

// SetProvisioningState updates the provisioning-result fields in one write.
func (s *TenantStore) SetProvisioningState(ctx context.Context, code, status string, failedStep, failureReason *string) error {
	query := fmt.Sprintf(`UPDATE %s SET
        status = $2, last_failed_step = $3, last_failure_reason = $4, updated_at = now()
        WHERE code = $1`, TenantsTable)
	return s.execOne(ctx, query, code, status, failedStep, failureReason)
}

// SetActive flips the activation flag.
func (s *TenantStore) SetActive(ctx context.Context, code string, active bool) error {
	query := fmt.Sprintf(`UPDATE %s SET active = $2, updated_at = now() WHERE code = $1`, TenantsTable)
	return s.execOne(ctx, query, code, active)
}

func (s *TenantStore) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	err := row.Scan(
		&rec.ID, &rec.Code, &rec.DisplayName, &rec.Subdomain, &rec.Plan, &rec.Active, &rec.Status,
		&rec.LastFailedStep, &rec.LastFailureReason, &rec.DatabaseName, &rec.DatabaseHost,
		&rec.AdminEmail, &rec.AdminName, &rec.PartnerID, &rec.BillingUserID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}

package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *usecase.OrderRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id,tenant_id,user_id,request_id,status,provider,provider_ref,amount_minor,currency,metadata_json,
                    lock_currency,lock_rate,lock_multiplier,lock_as_of,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())
`, o.ID, o.TenantID, o.UserID, nullStr(o.RequestID), o.Status, nullStr(o.Provider), nullStr(o.ProviderRef),
		o.AmountMinor, o.Currency, o.MetadataJSON,
		nullStr(o.LockCurrency), nullFloat(o.LockRate), nullFloat(o.LockMultiplier), o.LockAsOf)
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,tenant_id,user_id,request_id,status,provider,provider_ref,amount_minor,currency,metadata_json,
       lock_currency,lock_rate,lock_multiplier,lock_as_of
FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) GetByProviderRef(ctx context.Context, provider, ref string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,tenant_id,user_id,request_id,status,provider,provider_ref,amount_minor,currency,metadata_json,
       lock_currency,lock_rate,lock_multiplier,lock_as_of
FROM orders WHERE provider=? AND provider_ref=?`, provider, ref)
	return scanOrder(row)
}

// UpdateStatusIf is the single-statement guarded transition the state
// machine relies on: rows==0 means not found or already past fromStatus,
// and repeating the call converges instead of failing.
func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = NOW()
        WHERE id = ? AND status = ?`,
		toStatus, id, fromStatus,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetProviderRef stamps the checkout reference once the provider assigns
// one; noop when already stamped.
func (r *MySQLOrderRepo) SetProviderRef(ctx context.Context, id, provider, ref string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET provider = ?, provider_ref = ?, updated_at = NOW()
        WHERE id = ? AND provider_ref IS NULL`,
		provider, ref, id,
	)
	return err
}

func scanOrder(row *sql.Row) (*usecase.OrderRecord, error) {
	var rec usecase.OrderRecord
	var requestID, provider, providerRef, lockCurrency sql.NullString
	var lockRate, lockMult sql.NullFloat64
	var lockAsOf sql.NullTime
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.UserID, &requestID, &rec.Status, &provider, &providerRef,
		&rec.AmountMinor, &rec.Currency, &rec.MetadataJSON,
		&lockCurrency, &lockRate, &lockMult, &lockAsOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.RequestID = requestID.String
	rec.Provider = provider.String
	rec.ProviderRef = providerRef.String
	rec.LockCurrency = lockCurrency.String
	rec.LockRate = lockRate.Float64
	rec.LockMultiplier = lockMult.Float64
	if lockAsOf.Valid {
		t := lockAsOf.Time
		rec.LockAsOf = &t
	}
	return &rec, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)

var ErrNotFound = errors.New("not found")

package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// MySQLPaymentRepo is the append-only payment ledger. The table carries a
// unique index on (provider, provider_ref); INSERT IGNORE against it is
// the system's primary defense against duplicate webhook delivery. Rows
// are never updated.
type MySQLPaymentRepo struct{ db *sql.DB }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

func (r *MySQLPaymentRepo) InsertIfAbsent(ctx context.Context, p *usecase.PaymentRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO payments (id,order_id,provider,provider_ref,status,amount_minor,amount_derived,currency,raw_payload,created_at)
VALUES (?,?,?,?,?,?,?,?,?,NOW())
`, p.ID, nullStr(p.OrderID), p.Provider, p.ProviderRef, p.Status, p.AmountMinor, p.AmountDerived, nullStr(p.Currency), p.RawPayload)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLPaymentRepo) GetByProviderRef(ctx context.Context, provider, ref string) (*usecase.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,order_id,provider,provider_ref,status,amount_minor,amount_derived,currency,raw_payload
FROM payments WHERE provider=? AND provider_ref=?`, provider, ref)

	var rec usecase.PaymentRecord
	var orderID, currency sql.NullString
	err := row.Scan(&rec.ID, &orderID, &rec.Provider, &rec.ProviderRef, &rec.Status,
		&rec.AmountMinor, &rec.AmountDerived, &currency, &rec.RawPayload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.OrderID = orderID.String
	rec.Currency = currency.String
	return &rec, nil
}

var _ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)

package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// MySQLRequestRepo is the door to the consulting-request collaborator:
// read a priced request's locked amount, flip its approval flag. The
// request schema itself belongs to the marketplace monolith; only these
// two operations are ours.
type MySQLRequestRepo struct{ db *sql.DB }

func NewMySQLRequestRepo(db *sql.DB) *MySQLRequestRepo { return &MySQLRequestRepo{db: db} }

func (r *MySQLRequestRepo) LockedPrice(ctx context.Context, requestID string) (int64, string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT locked_amount_minor, locked_currency
FROM consulting_requests WHERE id=?`, requestID)

	var amount int64
	var currency string
	if err := row.Scan(&amount, &currency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrNotFound
		}
		return 0, "", err
	}
	return amount, currency, nil
}

func (r *MySQLRequestRepo) Approve(ctx context.Context, requestID string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE consulting_requests
        SET approved = 1, updated_at = NOW()
        WHERE id = ?`,
		requestID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// already approved counts as success; truly missing does not
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM consulting_requests WHERE id=?`, requestID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

var _ usecase.RequestService = (*MySQLRequestRepo)(nil)

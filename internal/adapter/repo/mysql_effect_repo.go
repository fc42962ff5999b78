package repo

import (
	"context"
	"database/sql"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// MySQLEffectRepo records side-effect applications. The unique index on
// (order_id, effect) makes INSERT IGNORE the once-guard: rows==0 means
// another invocation already claimed this effect.
type MySQLEffectRepo struct{ db *sql.DB }

func NewMySQLEffectRepo(db *sql.DB) *MySQLEffectRepo { return &MySQLEffectRepo{db: db} }

func (r *MySQLEffectRepo) MarkApplied(ctx context.Context, orderID, effect string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO effect_applications (order_id,effect,applied_at)
VALUES (?,?,NOW())
`, orderID, effect)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.EffectRepo = (*MySQLEffectRepo)(nil)

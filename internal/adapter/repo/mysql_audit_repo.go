package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// MySQLAuditRepo is the append-only reconciliation audit trail.
type MySQLAuditRepo struct{ db *sql.DB }

func NewMySQLAuditRepo(db *sql.DB) *MySQLAuditRepo { return &MySQLAuditRepo{db: db} }

func (r *MySQLAuditRepo) Record(ctx context.Context, e usecase.AuditEntry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		detail = []byte(`{}`)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_log (id,action,order_ref,payment_ref,detail,created_at)
VALUES (?,?,?,?,?,NOW())
`, uuid.NewString(), e.Action, nullStr(e.OrderRef), nullStr(e.PaymentRef), detail)
	return err
}

var _ usecase.AuditRepo = (*MySQLAuditRepo)(nil)

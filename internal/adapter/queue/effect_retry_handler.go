package queue

import (
	"context"
	"fmt"

	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// EffectRetryHandler re-runs side effects that failed during webhook
// dispatch. It calls the collaborators directly (the (order, effect)
// applied-record was already claimed by the original attempt) and relies
// on the collaborators' own idempotency keys, so a retry racing a late
// original attempt converges instead of double-applying.
type EffectRetryHandler struct {
	Balance  usecase.BalanceService
	Requests usecase.RequestService
	Notifier usecase.Notifier
	Audit    usecase.AuditRepo
}

func NewEffectRetryHandler(balance usecase.BalanceService, requests usecase.RequestService, notifier usecase.Notifier, audit usecase.AuditRepo) *EffectRetryHandler {
	return &EffectRetryHandler{Balance: balance, Requests: requests, Notifier: notifier, Audit: audit}
}

// HandleRetry is intended for queue.JSONHandler[usecase.EffectRetryMsg].
// A returned error NACKs the delivery so the broker redelivers.
func (h *EffectRetryHandler) HandleRetry(ctx context.Context, msg usecase.EffectRetryMsg) error {
	var err error
	switch domain.EffectKind(msg.Effect) {
	case domain.EffectCreditGrant:
		err = h.Balance.GrantCredits(ctx, msg.SubjectType, msg.SubjectID, msg.OrderID, msg.Quantity)
	case domain.EffectRequestApproval:
		err = h.Requests.Approve(ctx, msg.RequestID)
	case domain.EffectHandlerNotice:
		err = h.Notifier.PublishHandlerNotice(ctx, usecase.HandlerNoticeMsg{
			OrderID:   msg.OrderID,
			RequestID: msg.RequestID,
		})
	default:
		// poison message; audit and ack so it stops cycling
		_ = h.Audit.Record(ctx, usecase.AuditEntry{
			Action:   usecase.AuditEffectFailed,
			OrderRef: msg.OrderID,
			Detail:   map[string]any{"effect": msg.Effect, "error": "unknown effect kind"},
		})
		return nil
	}

	if err != nil {
		_ = h.Audit.Record(ctx, usecase.AuditEntry{
			Action:   usecase.AuditEffectFailed,
			OrderRef: msg.OrderID,
			Detail:   map[string]any{"effect": msg.Effect, "attempt": msg.Attempt + 1, "error": err.Error()},
		})
		return fmt.Errorf("retry %s for order %s: %w", msg.Effect, msg.OrderID, err)
	}
	return nil
}

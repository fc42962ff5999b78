package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
	"github.com/gokhangum/gumruk360-sub002/internal/logging"
)

// Dispatcher runs the post-paid side effects: credit grants, request
// approval, handler notification. Each effect is guarded by a
// (order, effect) applied-record so it takes effect at most once, and
// each is isolated: one failure never blocks the others and never rolls
// back the order's PAID status. Failed effects go to the retry queue.
type Dispatcher struct {
	effects  EffectRepo
	balance  BalanceService
	requests RequestService
	notifier Notifier
	audit    AuditRepo
	timeout  time.Duration
}

func NewDispatcher(effects EffectRepo, balance BalanceService, requests RequestService, notifier Notifier, audit AuditRepo, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{effects: effects, balance: balance, requests: requests, notifier: notifier, audit: audit, timeout: timeout}
}

// OnOrderPaid dispatches by order intent. Invoked after the pending→paid
// transition committed; safe to invoke again under failure-recovery replay.
func (d *Dispatcher) OnOrderPaid(ctx context.Context, ord *OrderRecord) {
	meta := ParseMetadata(ord.MetadataJSON)

	switch meta[domain.MetaIntent] {
	case domain.IntentCreditPurchase:
		subjectType, subjectID := subject(meta, ord)
		qty, _ := strconv.ParseInt(meta[domain.MetaCredits], 10, 64)
		d.run(ctx, ord, domain.EffectCreditGrant, EffectRetryMsg{
			OrderID: ord.ID, Effect: string(domain.EffectCreditGrant),
			SubjectType: subjectType, SubjectID: subjectID, Quantity: qty,
		}, func(ctx context.Context) error {
			if qty <= 0 {
				return fmt.Errorf("credit purchase order %s has no credit quantity", ord.ID)
			}
			return d.balance.GrantCredits(ctx, subjectType, subjectID, ord.ID, qty)
		})

	case domain.IntentServicePayment:
		d.run(ctx, ord, domain.EffectRequestApproval, EffectRetryMsg{
			OrderID: ord.ID, Effect: string(domain.EffectRequestApproval), RequestID: ord.RequestID,
		}, func(ctx context.Context) error {
			return d.requests.Approve(ctx, ord.RequestID)
		})
		d.run(ctx, ord, domain.EffectHandlerNotice, EffectRetryMsg{
			OrderID: ord.ID, Effect: string(domain.EffectHandlerNotice), RequestID: ord.RequestID,
		}, func(ctx context.Context) error {
			return d.notifier.PublishHandlerNotice(ctx, HandlerNoticeMsg{
				OrderID:     ord.ID,
				RequestID:   ord.RequestID,
				HandlerRef:  meta[domain.MetaHandlerRef],
				TenantID:    ord.TenantID,
				AmountMinor: ord.AmountMinor,
				Currency:    ord.Currency,
			})
		})

	default:
		_ = d.audit.Record(ctx, AuditEntry{
			Action:   AuditUnknownIntent,
			OrderRef: ord.ID,
			Detail:   map[string]any{"intent": meta[domain.MetaIntent]},
		})
	}
}

// run applies one effect under the once-guard. A marked-but-failed effect
// is handed to the retry queue rather than unmarked: the retry path calls
// the collaborator directly and relies on its idempotency key.
func (d *Dispatcher) run(ctx context.Context, ord *OrderRecord, kind domain.EffectKind, retry EffectRetryMsg, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromCtx(ctx).Error("effect panic", "order_id", ord.ID, "effect", string(kind), "panic", fmt.Sprint(r))
		}
	}()

	first, err := d.effects.MarkApplied(ctx, ord.ID, string(kind))
	if err != nil {
		d.fail(ctx, ord, kind, retry, err)
		return
	}
	if !first {
		return
	}

	ectx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := fn(ectx); err != nil {
		d.fail(ctx, ord, kind, retry, err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, ord *OrderRecord, kind domain.EffectKind, retry EffectRetryMsg, cause error) {
	_ = d.audit.Record(ctx, AuditEntry{
		Action:   AuditEffectFailed,
		OrderRef: ord.ID,
		Detail:   map[string]any{"effect": string(kind), "error": cause.Error()},
	})
	if err := d.notifier.PublishEffectRetry(ctx, retry); err != nil {
		logging.FromCtx(ctx).Error("effect retry publish failed",
			"order_id", ord.ID, "effect", string(kind), "error", err)
	}
}

// ParseMetadata decodes an order's metadata JSON; bad or empty JSON yields
// an empty map rather than an error; metadata is advisory.
func ParseMetadata(raw string) map[string]string {
	m := map[string]string{}
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func subject(meta map[string]string, ord *OrderRecord) (subjectType, subjectID string) {
	subjectType = meta[domain.MetaSubjectType]
	if subjectType == "" {
		subjectType = "user"
	}
	subjectID = meta[domain.MetaSubjectID]
	if subjectID == "" {
		subjectID = ord.UserID
	}
	return subjectType, subjectID
}

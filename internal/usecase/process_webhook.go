package usecase

import (
	"context"

	"github.com/google/uuid"

	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
)

// WebhookEvent is the canonical view of one verified, normalized provider
// delivery. Raw provider shapes never get past the adapter that built it.
type WebhookEvent struct {
	Provider    string
	ProviderRef string
	OrderRef    string // internal order id when the provider echoes one
	EventType   string
	Status      string
	Completed   bool // provider-specific allow-list decision
	Canceled    bool
	Failed      bool
	AmountMinor int64
	Currency    string
	AmountOK    bool
	Raw         []byte
}

// Outcome of processing one delivery. Every outcome except a store error
// acks 2xx to the provider.
type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeClosed    Outcome = "closed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRecorded  Outcome = "recorded"
	OutcomeUnmatched Outcome = "unmatched"
)

// ProcessWebhook is the reconciliation engine: ledger insert-if-absent,
// guarded order transition, then side-effect dispatch. Correctness under
// duplicate or out-of-order delivery rests entirely on the store's
// idempotency keys, so the whole flow is safe to re-run end to end.
type ProcessWebhook struct {
	orders     OrderRepo
	payments   PaymentRepo
	audit      AuditRepo
	cache      OrderCache
	sealer     PayloadSealer
	dispatcher *Dispatcher
}

func NewProcessWebhook(orders OrderRepo, payments PaymentRepo, audit AuditRepo, cache OrderCache, sealer PayloadSealer, d *Dispatcher) *ProcessWebhook {
	return &ProcessWebhook{orders: orders, payments: payments, audit: audit, cache: cache, sealer: sealer, dispatcher: d}
}

func (uc *ProcessWebhook) Execute(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	ord, err := uc.resolveOrder(ctx, ev)
	if err != nil {
		return "", err
	}
	if ord != nil && ord.ProviderRef == "" && ev.ProviderRef != "" {
		// First contact from the provider: stamp the reference so later
		// deliveries resolve even without an echoed order id.
		_ = uc.orders.SetProviderRef(ctx, ord.ID, ev.Provider, ev.ProviderRef)
	}

	// The ledger row is recorded even when no order matches: a payment may
	// arrive before its order is resolvable, and the raw event must survive
	// for manual reconciliation either way.
	var orderID string
	if ord != nil {
		orderID = ord.ID
	}
	sealed, err := uc.sealer.Seal(ev.Raw)
	if err != nil {
		return "", err
	}
	rec := &PaymentRecord{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		Provider:      ev.Provider,
		ProviderRef:   ev.ProviderRef,
		Status:        ev.Status,
		Currency:      ev.Currency,
		AmountMinor:   ev.AmountMinor,
		AmountDerived: ev.AmountOK,
		RawPayload:    sealed,
	}
	inserted, err := uc.payments.InsertIfAbsent(ctx, rec)
	if err != nil {
		// Fatal for this request; the provider retries and retry is safe.
		return "", err
	}

	if inserted && !ev.AmountOK {
		// Row excluded from aggregation but retained for audit.
		_ = uc.audit.Record(ctx, AuditEntry{
			Action:     AuditAmountNotDerivable,
			OrderRef:   orderID,
			PaymentRef: ev.ProviderRef,
			Detail:     map[string]any{"provider": ev.Provider},
		})
	}

	if ord == nil {
		// Operational anomaly, not a request failure: ack the provider and
		// leave the trail for out-of-band investigation.
		_ = uc.audit.Record(ctx, AuditEntry{
			Action:     AuditMissingOrderRef,
			PaymentRef: ev.ProviderRef,
			Detail:     map[string]any{"provider": ev.Provider, "event_type": ev.EventType, "status": ev.Status},
		})
		return OutcomeUnmatched, nil
	}

	switch {
	case ev.Completed:
		return uc.markPaid(ctx, ord, ev, inserted)
	case ev.Canceled, ev.Failed:
		to := domain.StatusCanceled
		if ev.Failed {
			to = domain.StatusFailed
		}
		return uc.close(ctx, ord, ev, to)
	default:
		// Informational event; ledger row (if new) is all we keep.
		return OutcomeRecorded, nil
	}
}

func (uc *ProcessWebhook) markPaid(ctx context.Context, ord *OrderRecord, ev WebhookEvent, inserted bool) (Outcome, error) {
	transitioned, err := uc.orders.UpdateStatusIf(ctx, ord.ID, string(domain.StatusPending), string(domain.StatusPaid))
	if err != nil {
		return "", err
	}
	if transitioned {
		_ = uc.cache.SetStatus(ctx, ord.ID, string(domain.StatusPaid))
		_ = uc.audit.Record(ctx, AuditEntry{
			Action:     AuditOrderPaid,
			OrderRef:   ord.ID,
			PaymentRef: ev.ProviderRef,
			Detail:     map[string]any{"provider": ev.Provider, "amount_minor": ev.AmountMinor, "currency": ev.Currency},
		})
		ord.Status = string(domain.StatusPaid)
		uc.dispatcher.OnOrderPaid(ctx, ord)
		return OutcomePaid, nil
	}
	if !inserted {
		_ = uc.audit.Record(ctx, AuditEntry{
			Action:     AuditDuplicateDelivery,
			OrderRef:   ord.ID,
			PaymentRef: ev.ProviderRef,
			Detail:     map[string]any{"provider": ev.Provider},
		})
		return OutcomeDuplicate, nil
	}
	// New ledger row but the order was already terminal (e.g. closed by
	// back-office reconciliation). Terminal states are monotonic.
	return OutcomeRecorded, nil
}

func (uc *ProcessWebhook) close(ctx context.Context, ord *OrderRecord, ev WebhookEvent, to domain.Status) (Outcome, error) {
	transitioned, err := uc.orders.UpdateStatusIf(ctx, ord.ID, string(domain.StatusPending), string(to))
	if err != nil {
		return "", err
	}
	if !transitioned {
		// Paid (or otherwise terminal) orders never move to canceled/failed.
		return OutcomeRecorded, nil
	}
	_ = uc.cache.SetStatus(ctx, ord.ID, string(to))
	_ = uc.audit.Record(ctx, AuditEntry{
		Action:     AuditOrderClosed,
		OrderRef:   ord.ID,
		PaymentRef: ev.ProviderRef,
		Detail:     map[string]any{"provider": ev.Provider, "to": string(to), "status": ev.Status},
	})
	return OutcomeClosed, nil
}

// resolveOrder tries the order reference echoed by the provider first, then
// falls back to the provider/reference pair stamped on the order at
// checkout time.
func (uc *ProcessWebhook) resolveOrder(ctx context.Context, ev WebhookEvent) (*OrderRecord, error) {
	if ev.OrderRef != "" {
		ord, err := uc.orders.GetByID(ctx, ev.OrderRef)
		if err != nil {
			return nil, err
		}
		if ord != nil {
			return ord, nil
		}
	}
	return uc.orders.GetByProviderRef(ctx, ev.Provider, ev.ProviderRef)
}

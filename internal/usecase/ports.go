package usecase

import (
	"context"
	"time"
)

// Persistence shapes (kept out of domain).

// OrderRecord amounts are integer minor units in a fixed 3-letter
// currency. The Lock* fields freeze the FX conversion applied at creation
// time; later rate movement never changes what the customer owes.
type OrderRecord struct {
	ID, TenantID, UserID, RequestID  string
	Status                           string
	Provider, ProviderRef            string
	Currency, MetadataJSON           string
	AmountMinor                      int64
	LockCurrency                     string
	LockRate, LockMultiplier         float64
	LockAsOf                         *time.Time
}

// PaymentRecord is one append-only ledger row. Corrections arrive as new
// rows, never as updates; AmountDerived=false rows are kept for audit but
// excluded from aggregation.
type PaymentRecord struct {
	ID, OrderID           string
	Provider, ProviderRef string
	Status, Currency      string
	AmountMinor           int64
	AmountDerived         bool
	RawPayload            []byte
}

// AuditEntry is one row of the reconciliation audit trail, the primary
// observability surface for payment problems.
type AuditEntry struct {
	Action     string
	OrderRef   string
	PaymentRef string
	Detail     map[string]any
}

// Audit actions.
const (
	AuditSignatureInvalid   = "signature_invalid"
	AuditMissingOrderRef    = "missing_order_reference"
	AuditDuplicateDelivery  = "duplicate_delivery"
	AuditAmountNotDerivable = "amount_not_derivable"
	AuditOrderPaid          = "order_paid"
	AuditOrderClosed        = "order_closed"
	AuditEffectFailed       = "effect_failed"
	AuditUnknownIntent      = "unknown_order_intent"
	AuditRateUnavailable    = "rate_unavailable"
)

// Repos return (nil, nil) when the row does not exist; errors are store
// failures only.
type OrderRepo interface {
	Create(ctx context.Context, o *OrderRecord) error
	GetByID(ctx context.Context, id string) (*OrderRecord, error)
	GetByProviderRef(ctx context.Context, provider, ref string) (*OrderRecord, error)
	// UpdateStatusIf applies a guarded single-statement transition and
	// reports whether a row actually changed.
	UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error)
	// SetProviderRef stamps the provider checkout reference once; the
	// stamp never moves after it is set.
	SetProviderRef(ctx context.Context, id, provider, ref string) error
}

type PaymentRepo interface {
	// InsertIfAbsent inserts unless a row with the same
	// (provider, provider_ref) already exists. inserted=false on duplicate
	// delivery; no existing row is ever mutated.
	InsertIfAbsent(ctx context.Context, p *PaymentRecord) (inserted bool, err error)
	GetByProviderRef(ctx context.Context, provider, ref string) (*PaymentRecord, error)
}

type EffectRepo interface {
	// MarkApplied records that an effect ran for an order. first=false when
	// the (order, effect) pair was already marked.
	MarkApplied(ctx context.Context, orderID, effect string) (first bool, err error)
}

type AuditRepo interface {
	Record(ctx context.Context, e AuditEntry) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

// RateQuote is one captured FX observation.
type RateQuote struct {
	Rate float64
	AsOf time.Time
}

// RateSource answers "tenant-currency units per one reference unit".
// ok=false is the explicit unavailable signal: callers skip the currency
// lock rather than inventing a rate.
type RateSource interface {
	Rate(ctx context.Context, currency string) (RateQuote, bool, error)
}

// BalanceService is the outbound credit-balance collaborator. The call is
// idempotent per (subject, orderID) on the provider side.
type BalanceService interface {
	GrantCredits(ctx context.Context, subjectType, subjectID, orderID string, quantity int64) error
}

// RequestService is the consulting-request collaborator: read a priced
// object's locked amount and flip its approval status.
type RequestService interface {
	LockedPrice(ctx context.Context, requestID string) (amountMinor int64, currency string, err error)
	Approve(ctx context.Context, requestID string) error
}

type Notifier interface {
	PublishHandlerNotice(ctx context.Context, msg HandlerNoticeMsg) error
	PublishEffectRetry(ctx context.Context, msg EffectRetryMsg) error
}

// PayloadSealer encrypts raw provider payloads before they reach the store.
type PayloadSealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/google/uuid"

	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
)

var (
	ErrDuplicate     = errors.New("duplicate idempotency key")
	ErrInvalidIntent = errors.New("invalid purchase intent")
)

// TenantInfo is the resolved tenant pricing context. Resolution (explicit
// user association first, inbound host second) happens at the transport
// layer, which owns the tenant registry.
type TenantInfo struct {
	ID         string
	Currency   string
	Multiplier float64
}

type CreateIntentInput struct {
	UserID         string
	IdempotencyKey string
	Intent         string // credit_purchase | service_payment
	Credits        int64
	SubjectType    string // "" defaults to user
	SubjectID      string
	RequestID      string // required for service_payment
	HandlerRef     string

	// Reference-currency price. Zero for service payments: the linked
	// request's locked price is authoritative then.
	BaseAmountMinor int64
	BaseCurrency    string

	Tenant         TenantInfo
	TenantResolved bool
}

type CreateIntentOutput struct {
	OrderID     string
	Status      string
	AmountMinor int64
	Currency    string
}

// CreatePurchaseIntent creates a pending order with its price frozen at
// creation time (tenant currency lock). Later FX movement never changes
// what this order's customer owes.
type CreatePurchaseIntent struct {
	orders   OrderRepo
	idem     IdempotencyStore
	rates    RateSource
	requests RequestService
	audit    AuditRepo
}

func NewCreatePurchaseIntent(orders OrderRepo, idem IdempotencyStore, rates RateSource, requests RequestService, audit AuditRepo) *CreatePurchaseIntent {
	return &CreatePurchaseIntent{orders: orders, idem: idem, rates: rates, requests: requests, audit: audit}
}

func (uc *CreatePurchaseIntent) Execute(ctx context.Context, in CreateIntentInput) (CreateIntentOutput, error) {
	// Fast path: idempotency recall
	if id, ok, _ := uc.idem.Recall(ctx, in.UserID, in.IdempotencyKey); ok {
		return CreateIntentOutput{OrderID: id, Status: string(domain.StatusPending)}, nil
	}
	ok, err := uc.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
	if err != nil {
		return CreateIntentOutput{}, err
	}
	if !ok {
		return CreateIntentOutput{}, ErrDuplicate
	}

	switch in.Intent {
	case domain.IntentCreditPurchase:
		if in.Credits <= 0 {
			return CreateIntentOutput{}, ErrInvalidIntent
		}
	case domain.IntentServicePayment:
		if in.RequestID == "" {
			return CreateIntentOutput{}, ErrInvalidIntent
		}
	default:
		return CreateIntentOutput{}, ErrInvalidIntent
	}

	base, currency, err := uc.basePrice(ctx, in)
	if err != nil {
		return CreateIntentOutput{}, err
	}
	if base <= 0 || currency == "" {
		return CreateIntentOutput{}, domain.ErrInvalidAmount
	}

	rec := &OrderRecord{
		ID:          uuid.NewString(),
		TenantID:    in.Tenant.ID,
		UserID:      in.UserID,
		RequestID:   in.RequestID,
		Status:      string(domain.StatusPending),
		AmountMinor: base,
		Currency:    currency,
	}
	uc.lockPrice(ctx, rec, in, base, currency)

	meta := map[string]string{domain.MetaIntent: in.Intent}
	if in.Intent == domain.IntentCreditPurchase {
		meta[domain.MetaCredits] = strconv.FormatInt(in.Credits, 10)
		if in.SubjectType != "" {
			meta[domain.MetaSubjectType] = in.SubjectType
			meta[domain.MetaSubjectID] = in.SubjectID
		}
	}
	if in.Intent == domain.IntentServicePayment && in.HandlerRef != "" {
		meta[domain.MetaHandlerRef] = in.HandlerRef
	}
	metaJSON, _ := json.Marshal(meta)
	rec.MetadataJSON = string(metaJSON)

	if err := uc.orders.Create(ctx, rec); err != nil {
		return CreateIntentOutput{}, err
	}
	_ = uc.idem.Remember(ctx, in.UserID, in.IdempotencyKey, rec.ID)

	return CreateIntentOutput{
		OrderID:     rec.ID,
		Status:      rec.Status,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
	}, nil
}

func (uc *CreatePurchaseIntent) basePrice(ctx context.Context, in CreateIntentInput) (int64, string, error) {
	if in.Intent == domain.IntentServicePayment && in.BaseAmountMinor == 0 {
		return uc.requests.LockedPrice(ctx, in.RequestID)
	}
	return in.BaseAmountMinor, in.BaseCurrency, nil
}

// lockPrice converts the reference price into the tenant's display currency
// and freezes the conversion on the order. A missing rate skips the lock:
// the order keeps its reference-currency price, no rate is invented.
func (uc *CreatePurchaseIntent) lockPrice(ctx context.Context, rec *OrderRecord, in CreateIntentInput, base int64, currency string) {
	if !in.TenantResolved {
		return
	}
	mult := in.Tenant.Multiplier
	if mult <= 0 {
		mult = 1
	}

	if in.Tenant.Currency == currency {
		rec.AmountMinor = roundMinor(float64(base) * mult)
		return
	}

	quote, ok, err := uc.rates.Rate(ctx, in.Tenant.Currency)
	if err != nil || !ok {
		detail := map[string]any{"currency": in.Tenant.Currency}
		if err != nil {
			detail["error"] = err.Error()
		}
		_ = uc.audit.Record(ctx, AuditEntry{Action: AuditRateUnavailable, OrderRef: rec.ID, Detail: detail})
		return
	}

	asOf := quote.AsOf
	rec.AmountMinor = roundMinor(float64(base) * mult * quote.Rate)
	rec.Currency = in.Tenant.Currency
	rec.LockCurrency = in.Tenant.Currency
	rec.LockRate = quote.Rate
	rec.LockMultiplier = mult
	rec.LockAsOf = &asOf
}

func roundMinor(v float64) int64 {
	return int64(math.Round(v))
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
)

func newIntentUC() (*CreatePurchaseIntent, *fakeOrderRepo, *fakeIdem, *fakeRates, *fakeRequests, *fakeAudit) {
	orders := newFakeOrderRepo()
	idem := newFakeIdem()
	rates := &fakeRates{}
	requests := newFakeRequests()
	audit := &fakeAudit{}
	uc := NewCreatePurchaseIntent(orders, idem, rates, requests, audit)
	return uc, orders, idem, rates, requests, audit
}

func creditInput(key string) CreateIntentInput {
	return CreateIntentInput{
		UserID:          "user-1",
		IdempotencyKey:  key,
		Intent:          domain.IntentCreditPurchase,
		Credits:         50,
		BaseAmountMinor: 10000, // $100.00 reference price
		BaseCurrency:    "USD",
		Tenant:          TenantInfo{ID: "gumruk360-tr", Currency: "TRY", Multiplier: 1.0},
		TenantResolved:  true,
	}
}

func TestCurrencyLockAppliesRate(t *testing.T) {
	uc, orders, _, rates, _, _ := newIntentUC()
	asOf := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rates.set(RateQuote{Rate: 40.5, AsOf: asOf}, true)

	out, err := uc.Execute(context.Background(), creditInput("k1"))
	require.NoError(t, err)
	assert.Equal(t, int64(405000), out.AmountMinor)
	assert.Equal(t, "TRY", out.Currency)

	rec, err := orders.GetByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 40.5, rec.LockRate)
	assert.Equal(t, "TRY", rec.LockCurrency)
	require.NotNil(t, rec.LockAsOf)
	assert.Equal(t, asOf, *rec.LockAsOf)
}

func TestLockedPriceImmuneToLaterRate(t *testing.T) {
	uc, orders, _, rates, _, _ := newIntentUC()
	rates.set(RateQuote{Rate: 40.5, AsOf: time.Now()}, true)

	out, err := uc.Execute(context.Background(), creditInput("k1"))
	require.NoError(t, err)

	// the rate moves after the lock
	rates.set(RateQuote{Rate: 99.9, AsOf: time.Now()}, true)

	rec, err := orders.GetByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(405000), rec.AmountMinor)
	assert.Equal(t, 40.5, rec.LockRate)
}

func TestRateUnavailableKeepsReferencePrice(t *testing.T) {
	uc, orders, _, rates, _, audit := newIntentUC()
	rates.set(RateQuote{}, false)

	out, err := uc.Execute(context.Background(), creditInput("k1"))
	require.NoError(t, err)
	assert.Equal(t, int64(10000), out.AmountMinor)
	assert.Equal(t, "USD", out.Currency)

	rec, _ := orders.GetByID(context.Background(), out.OrderID)
	assert.Empty(t, rec.LockCurrency)
	assert.Nil(t, rec.LockAsOf)
	assert.Len(t, audit.byAction(AuditRateUnavailable), 1)
}

func TestSameCurrencyAppliesMultiplierOnly(t *testing.T) {
	uc, _, _, _, _, _ := newIntentUC()
	in := creditInput("k1")
	in.Tenant = TenantInfo{ID: "gumruk360-us", Currency: "USD", Multiplier: 1.2}

	out, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), out.AmountMinor)
	assert.Equal(t, "USD", out.Currency)
}

func TestIdempotencyRecallReturnsExisting(t *testing.T) {
	uc, _, _, rates, _, _ := newIntentUC()
	rates.set(RateQuote{Rate: 40.5, AsOf: time.Now()}, true)

	first, err := uc.Execute(context.Background(), creditInput("k1"))
	require.NoError(t, err)

	again, err := uc.Execute(context.Background(), creditInput("k1"))
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, again.OrderID)
}

func TestServicePaymentUsesRequestLockedPrice(t *testing.T) {
	uc, orders, _, rates, requests, _ := newIntentUC()
	rates.set(RateQuote{}, false)
	requests.prices["req-9"] = struct {
		amount   int64
		currency string
	}{amount: 50000, currency: "TRY"}

	in := CreateIntentInput{
		UserID:         "user-1",
		IdempotencyKey: "k2",
		Intent:         domain.IntentServicePayment,
		RequestID:      "req-9",
		Tenant:         TenantInfo{ID: "gumruk360-tr", Currency: "TRY", Multiplier: 1.0},
		TenantResolved: true,
	}
	out, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), out.AmountMinor)
	assert.Equal(t, "TRY", out.Currency)

	rec, _ := orders.GetByID(context.Background(), out.OrderID)
	assert.Equal(t, "req-9", rec.RequestID)
	meta := ParseMetadata(rec.MetadataJSON)
	assert.Equal(t, domain.IntentServicePayment, meta[domain.MetaIntent])
}

func TestInvalidIntentRejected(t *testing.T) {
	uc, _, _, _, _, _ := newIntentUC()

	in := creditInput("k1")
	in.Intent = "gift_card"
	_, err := uc.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	in = creditInput("k2")
	in.Credits = 0
	_, err = uc.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	in = CreateIntentInput{
		UserID:         "user-1",
		IdempotencyKey: "k3",
		Intent:         domain.IntentServicePayment,
	}
	_, err = uc.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidIntent)
}

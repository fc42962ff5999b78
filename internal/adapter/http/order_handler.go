package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gokhangum/gumruk360-sub002/configs"
	domain "github.com/gokhangum/gumruk360-sub002/internal/entity"
	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

type OrderHandler struct {
	cfg    configs.Config
	create *usecase.CreatePurchaseIntent
	query  usecase.OrderRepo
	cache  usecase.OrderCache
}

func NewOrderHandler(cfg configs.Config, create *usecase.CreatePurchaseIntent, query usecase.OrderRepo, cache usecase.OrderCache) *OrderHandler {
	return &OrderHandler{cfg: cfg, create: create, query: query, cache: cache}
}

type createIntentReq struct {
	UserID string `json:"userId" binding:"required"`
	Intent string `json:"intent" binding:"required"`

	Credits     int64  `json:"credits"`
	SubjectType string `json:"subjectType"`
	SubjectID   string `json:"subjectId"`
	RequestID   string `json:"requestId"`
	HandlerRef  string `json:"handlerRef"`

	// Reference-currency price. Omitted for service payments priced by the
	// linked request.
	Amount struct {
		Minor    int64  `json:"minor"`
		Currency string `json:"currency"`
	} `json:"amount"`

	TenantID string `json:"tenantId"`
}

type createIntentResp struct {
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
}

// CreateOrder handler: resolve the tenant, translate to use case input.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated requests

	currency := req.Amount.Currency
	if currency == "" && req.Amount.Minor > 0 {
		currency = h.cfg.Pricing.BaseCurrency
	}

	in := usecase.CreateIntentInput{
		UserID:          req.UserID,
		IdempotencyKey:  idemKey,
		Intent:          req.Intent,
		Credits:         req.Credits,
		SubjectType:     req.SubjectType,
		SubjectID:       req.SubjectID,
		RequestID:       req.RequestID,
		HandlerRef:      req.HandlerRef,
		BaseAmountMinor: req.Amount.Minor,
		BaseCurrency:    currency,
	}
	if t, ok := h.resolveTenant(c, req.TenantID); ok {
		in.Tenant = usecase.TenantInfo{ID: t.ID, Currency: t.Currency, Multiplier: t.Multiplier}
		in.TenantResolved = true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	out, err := h.create.Execute(ctx, in)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrDuplicate) {
			status = http.StatusConflict
		}
		if errors.Is(err, usecase.ErrInvalidIntent) || errors.Is(err, domain.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, createIntentResp{
		OrderID:     out.OrderID,
		Status:      out.Status,
		AmountMinor: out.AmountMinor,
		Currency:    out.Currency,
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	rec, err := h.query.GetByID(ctx, id)
	if err != nil || rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	resp := gin.H{
		"id":           rec.ID,
		"tenant_id":    rec.TenantID,
		"user_id":      rec.UserID,
		"status":       rec.Status,
		"amount_minor": rec.AmountMinor,
		"currency":     rec.Currency,
		"metadata":     rec.MetadataJSON,
	}
	if rec.Provider != "" {
		resp["provider"] = rec.Provider
		resp["provider_ref"] = rec.ProviderRef
	}
	if rec.LockCurrency != "" {
		resp["lock"] = gin.H{
			"currency":   rec.LockCurrency,
			"rate":       rec.LockRate,
			"multiplier": rec.LockMultiplier,
			"as_of":      rec.LockAsOf,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrderStatus is the polling endpoint checkout pages hit while waiting
// for the provider callback. Cache-aside: Redis first, store on miss.
func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if status, ok, _ := h.cache.GetStatus(ctx, id); ok {
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
		return
	}

	rec, err := h.query.GetByID(ctx, id)
	if err != nil || rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	_ = h.cache.SetStatus(ctx, id, rec.Status)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": rec.Status})
}

// resolveTenant: an explicit tenant id wins, the inbound host is the
// fallback. No match means no currency lock, never a guessed tenant.
func (h *OrderHandler) resolveTenant(c *gin.Context, tenantID string) (configs.Tenant, bool) {
	if tenantID != "" {
		if t, ok := h.cfg.TenantByID(tenantID); ok {
			return t, true
		}
	}
	return h.cfg.TenantByHost(c.Request.Host)
}

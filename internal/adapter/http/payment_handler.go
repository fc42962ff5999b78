package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// PaymentHandler is the back-office view of the payment ledger.
type PaymentHandler struct {
	query usecase.PaymentRepo
}

func NewPaymentHandler(query usecase.PaymentRepo) *PaymentHandler {
	return &PaymentHandler{query: query}
}

// GetByProviderRef looks a ledger row up by its natural key. The sealed
// raw payload stays out of the response.
func (h *PaymentHandler) GetByProviderRef(c *gin.Context) {
	provider := c.Param("provider")
	ref := c.Param("ref")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	rec, err := h.query.GetByProviderRef(ctx, provider, ref)
	if err != nil || rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             rec.ID,
		"order_id":       rec.OrderID,
		"provider":       rec.Provider,
		"provider_ref":   rec.ProviderRef,
		"status":         rec.Status,
		"amount_minor":   rec.AmountMinor,
		"currency":       rec.Currency,
		"amount_derived": rec.AmountDerived,
	})
}

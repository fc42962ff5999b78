package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gokhangum/gumruk360-sub002/configs"
	"github.com/gokhangum/gumruk360-sub002/internal/amount"
	"github.com/gokhangum/gumruk360-sub002/internal/logging"
	"github.com/gokhangum/gumruk360-sub002/internal/provider/paddle"
	"github.com/gokhangum/gumruk360-sub002/internal/provider/paytr"
	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

const webhookBodyLimit = 64 * 1024

var (
	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Provider webhook deliveries by processing outcome",
		},
		[]string{"provider", "outcome"},
	)

	webhookSignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries that failed signature verification",
		},
		[]string{"provider"},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Order state transitions triggered by provider deliveries",
		},
		[]string{"to"},
	)
)

func observeOutcome(provider string, out usecase.Outcome, failed bool) {
	webhookDeliveries.WithLabelValues(provider, string(out)).Inc()
	switch out {
	case usecase.OutcomePaid:
		paymentTransitions.WithLabelValues("PAID").Inc()
	case usecase.OutcomeClosed:
		to := "CANCELED"
		if failed {
			to = "FAILED"
		}
		paymentTransitions.WithLabelValues(to).Inc()
	}
}

// WebhookHandler owns the two inbound provider surfaces. Verification and
// payload parsing are provider-specific; everything after the normalized
// WebhookEvent is shared.
type WebhookHandler struct {
	cfg    configs.Config
	engine *usecase.ProcessWebhook
	audit  usecase.AuditRepo
}

func NewWebhookHandler(cfg configs.Config, engine *usecase.ProcessWebhook, audit usecase.AuditRepo) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, engine: engine, audit: audit}
}

// Paddle handles the overlay-checkout provider's JSON webhooks.
// Signature failures in strict mode are rejected with 401; in lenient mode
// the delivery is processed but flagged in the audit trail.
func (h *WebhookHandler) Paddle(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	if err := paddle.VerifySignature(raw, c.GetHeader("Paddle-Signature"), h.cfg.Providers.Paddle.WebhookSecret); err != nil {
		webhookSignatureFailures.WithLabelValues(paddle.Name).Inc()
		_ = h.audit.Record(c.Request.Context(), usecase.AuditEntry{
			Action: usecase.AuditSignatureInvalid,
			Detail: map[string]any{"provider": paddle.Name, "error": err.Error()},
		})
		if h.cfg.Providers.Paddle.Strict {
			logging.From(c).Warn("paddle webhook rejected", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}
		logging.From(c).Warn("paddle webhook unverified, processing leniently", "error", err)
	}

	ev, err := paddle.ParseEvent(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	major, _, amountOK := amount.Normalize(ev.Totals, amount.Hints{})

	out, err := h.engine.Execute(c.Request.Context(), usecase.WebhookEvent{
		Provider:    paddle.Name,
		ProviderRef: ev.TransactionID,
		OrderRef:    ev.OrderRef,
		EventType:   ev.EventType,
		Status:      ev.Status,
		Completed:   ev.Completed(),
		Canceled:    ev.Canceled(),
		Failed:      ev.Failed(),
		AmountMinor: amount.MajorToMinor(major),
		Currency:    ev.Currency,
		AmountOK:    amountOK,
		Raw:         raw,
	})
	if err != nil {
		// Store failure: non-2xx so the provider redelivers. Redelivery is
		// safe end to end.
		logging.From(c).Error("paddle webhook store failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_error"})
		return
	}

	observeOutcome(paddle.Name, out, ev.Failed())
	c.JSON(http.StatusOK, gin.H{"outcome": string(out)})
}

// PayTR handles the hosted-iframe provider's form-POST callbacks. The
// provider retries until it receives the literal "OK" body, so every
// handled delivery answers with exactly that.
func (h *WebhookHandler) PayTR(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}
	cb, err := paytr.ParseCallback(c.Request.PostForm)
	if err != nil {
		c.String(http.StatusBadRequest, "missing fields")
		return
	}

	verified := true
	var tenant configs.Tenant
	tenant, err = paytr.SelectCredentials(h.cfg, c.Query("tenant"), cb)
	if err == nil {
		err = paytr.Verify(cb, tenant)
	}
	if err != nil {
		verified = false
		webhookSignatureFailures.WithLabelValues(paytr.Name).Inc()
		_ = h.audit.Record(c.Request.Context(), usecase.AuditEntry{
			Action:     usecase.AuditSignatureInvalid,
			PaymentRef: cb.MerchantOID,
			Detail:     map[string]any{"provider": paytr.Name, "merchant_id": cb.MerchantID, "error": err.Error()},
		})
		if h.cfg.Providers.PayTR.Strict {
			logging.From(c).Warn("paytr callback rejected", "merchant_oid", cb.MerchantOID, "error", err)
			c.String(http.StatusUnauthorized, "bad hash")
			return
		}
		logging.From(c).Warn("paytr callback unverified, processing leniently", "merchant_oid", cb.MerchantOID, "error", err)
	}

	var (
		amountMinor int64
		amountOK    bool
	)
	if raw, perr := strconv.ParseFloat(cb.TotalAmount, 64); perr == nil {
		var major float64
		major, _, amountOK = amount.NormalizeValue("total_amount", raw, amount.Hints{})
		amountMinor = amount.MajorToMinor(major)
	}
	currency := ""
	if verified {
		currency = tenant.Currency
	}

	out, err := h.engine.Execute(c.Request.Context(), usecase.WebhookEvent{
		Provider:    paytr.Name,
		ProviderRef: cb.MerchantOID,
		OrderRef:    cb.MerchantOID,
		EventType:   "payment.callback",
		Status:      cb.Status,
		Completed:   cb.Completed(),
		Failed:      !cb.Completed(),
		AmountMinor: amountMinor,
		Currency:    currency,
		AmountOK:    amountOK,
		Raw:         cb.Raw,
	})
	if err != nil {
		logging.From(c).Error("paytr callback store failure", "merchant_oid", cb.MerchantOID, "error", err)
		c.String(http.StatusInternalServerError, "store error")
		return
	}

	observeOutcome(paytr.Name, out, !cb.Completed())
	c.String(http.StatusOK, paytr.AckBody)
}

package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gokhangum/gumruk360-sub002/internal/adapter/http/middleware"
	"github.com/gokhangum/gumruk360-sub002/internal/logging"
)

func NewRouter(oh *OrderHandler, ph *PaymentHandler, wh *WebhookHandler, th *TokenHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Info("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	// Provider callbacks authenticate by signature, not by bearer token.
	r.POST("/v1/webhooks/paddle", wh.Paddle)
	r.POST("/v1/webhooks/paytr", wh.PayTR)

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", authz.Require("payments.write"), oh.CreateOrder)
		v1.GET("/orders/:id", authz.Require("payments.read"), oh.GetOrderByID)
		v1.GET("/orders/:id/status", authz.Require("payments.read"), oh.GetOrderStatus)
		v1.GET("/payments/:provider/:ref", authz.Require("payments.read"), ph.GetByProviderRef)
	}

	return r
}

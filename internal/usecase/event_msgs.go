package usecase

import "time"

// RateTickMsg arrives on the fx.rates Kafka topic.
type RateTickMsg struct {
	Currency string    `json:"currency"`
	Rate     float64   `json:"rate"`
	AsOf     time.Time `json:"asOf"`
}

// HandlerNoticeMsg is enqueued for the handler assigned to a consulting
// request once its payment lands.
type HandlerNoticeMsg struct {
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	HandlerRef  string `json:"handlerRef,omitempty"`
	TenantID    string `json:"tenantId"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
}

// EffectRetryMsg carries a failed side effect to the out-of-band retry
// queue. It holds everything needed to re-run the effect directly; the
// outbound calls' own idempotency keys make re-running safe.
type EffectRetryMsg struct {
	OrderID     string `json:"orderId"`
	Effect      string `json:"effect"`
	SubjectType string `json:"subjectType,omitempty"`
	SubjectID   string `json:"subjectId,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
	Quantity    int64  `json:"quantity,omitempty"`
	Attempt     int    `json:"attempt"`
}

package domain

// EffectKind names one post-paid side effect. The pair (order, effect kind)
// applies at most once.
type EffectKind string

const (
	EffectCreditGrant     EffectKind = "credit_grant"
	EffectRequestApproval EffectKind = "request_approval"
	EffectHandlerNotice   EffectKind = "handler_notice"
)

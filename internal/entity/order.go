package domain

import "errors"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
	StatusFailed   Status = "FAILED"
)

// Terminal reports whether no further transition is defined out of s.
// PAID, CANCELED and FAILED are all terminal; administrative overrides
// bypass the state machine entirely.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCanceled || s == StatusFailed
}

var ErrInvalidAmount = errors.New("invalid amount")

// Order intent values carried in the metadata map.
const (
	IntentCreditPurchase = "credit_purchase"
	IntentServicePayment = "service_payment"
)

// Metadata keys.
const (
	MetaIntent      = "intent"
	MetaCredits     = "credits"
	MetaSubjectType = "subject_type" // "user" or "org"
	MetaSubjectID   = "subject_id"
	MetaHandlerRef  = "handler_ref"
)

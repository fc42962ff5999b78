// Package paddle adapts the overlay-checkout provider's webhooks. Raw
// payload shapes stop here: handlers only ever see the parsed Event.
package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const Name = "paddle"

var (
	ErrMissingSecret     = errors.New("paddle: webhook secret not configured")
	ErrMalformedHeader   = errors.New("paddle: malformed signature header")
	ErrSignatureMismatch = errors.New("paddle: signature mismatch")
)

// Event types and transaction statuses that count as "completed" for this
// provider. Providers use inconsistent vocabularies, so the allow-list is
// provider-local, never shared.
var completedEvents = map[string]bool{
	"transaction.completed": true,
	"transaction.paid":      true,
	"checkout.completed":    true,
}

var completedStatuses = map[string]bool{
	"completed": true,
	"paid":      true,
	"captured":  true,
}

var canceledEvents = map[string]bool{
	"transaction.canceled": true,
}

var failedEvents = map[string]bool{
	"transaction.payment_failed": true,
}

// VerifySignature checks the Paddle-Signature header ("ts=...;h1=...")
// against an HMAC-SHA256 of "<ts>:<rawBody>" in constant time.
func VerifySignature(rawBody []byte, header, secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "h1":
			h1 = v
		}
	}
	if ts == "" || h1 == "" {
		return ErrMalformedHeader
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(rawBody)
	want := mac.Sum(nil)

	got, err := hex.DecodeString(h1)
	if err != nil {
		return ErrMalformedHeader
	}
	if !hmac.Equal(want, got) {
		return ErrSignatureMismatch
	}
	return nil
}

// Event is the normalized view of one webhook delivery.
type Event struct {
	EventID       string
	EventType     string
	TransactionID string
	Status        string
	OrderRef      string // from custom_data.order_id; may be empty
	Currency      string
	Totals        map[string]any // details.totals, minor-unit strings
	Raw           []byte
}

func (e Event) Completed() bool {
	return completedEvents[e.EventType] || completedStatuses[e.Status]
}

func (e Event) Canceled() bool { return canceledEvents[e.EventType] }
func (e Event) Failed() bool   { return failedEvents[e.EventType] }

type envelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID         string         `json:"id"`
		Status     string         `json:"status"`
		Currency   string         `json:"currency_code"`
		CustomData map[string]any `json:"custom_data"`
		Details    struct {
			Totals map[string]any `json:"totals"`
		} `json:"details"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. The raw bytes are retained on the
// Event for the audit trail.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("paddle: decode webhook: %w", err)
	}
	if env.EventType == "" || env.Data.ID == "" {
		return Event{}, errors.New("paddle: webhook missing event_type or transaction id")
	}

	ev := Event{
		EventID:       env.EventID,
		EventType:     env.EventType,
		TransactionID: env.Data.ID,
		Status:        env.Data.Status,
		Currency:      env.Data.Currency,
		Totals:        env.Data.Details.Totals,
		Raw:           raw,
	}
	if v, ok := env.Data.CustomData["order_id"]; ok {
		if s, ok := v.(string); ok {
			ev.OrderRef = s
		}
	}
	return ev, nil
}

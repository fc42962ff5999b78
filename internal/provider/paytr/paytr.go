// Package paytr adapts the hosted-iframe provider's form-POST callbacks.
// Credentials are per tenant: each tenant has its own merchant id, key and
// salt, so verification must first pick the right credential set.
package paytr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"

	"github.com/gokhangum/gumruk360-sub002/configs"
)

const Name = "paytr"

// AckBody is the literal response body the provider requires; anything
// else is treated as a failed delivery and retried.
const AckBody = "OK"

var (
	ErrMissingFields     = errors.New("paytr: callback missing required fields")
	ErrUnknownMerchant   = errors.New("paytr: no tenant matches merchant id")
	ErrSignatureMismatch = errors.New("paytr: hash mismatch")
)

// Statuses that count as completed for this provider.
var completedStatuses = map[string]bool{
	"success": true,
}

// Callback is the parsed form payload of one notification.
type Callback struct {
	MerchantOID string // our order id, echoed back
	MerchantID  string
	Status      string // "success" or "failed"
	TotalAmount string // minor units as a string
	Hash        string
	FailedCode  string
	FailedMsg   string
	Raw         []byte // re-encoded form for the audit trail
}

func (c Callback) Completed() bool { return completedStatuses[c.Status] }

// ParseCallback pulls the known fields out of a form post.
func ParseCallback(form url.Values) (Callback, error) {
	cb := Callback{
		MerchantOID: form.Get("merchant_oid"),
		MerchantID:  form.Get("merchant_id"),
		Status:      form.Get("status"),
		TotalAmount: form.Get("total_amount"),
		Hash:        form.Get("hash"),
		FailedCode:  form.Get("failed_reason_code"),
		FailedMsg:   form.Get("failed_reason_msg"),
		Raw:         []byte(form.Encode()),
	}
	if cb.MerchantOID == "" || cb.Status == "" || cb.Hash == "" {
		return cb, ErrMissingFields
	}
	return cb, nil
}

// SelectCredentials picks the tenant credential set: an explicit tenant
// hint wins; otherwise the inbound merchant id is matched against the
// registry.
func SelectCredentials(cfg configs.Config, tenantHint string, cb Callback) (configs.Tenant, error) {
	if tenantHint != "" {
		if t, ok := cfg.TenantByID(tenantHint); ok {
			return t, nil
		}
	}
	if t, ok := cfg.TenantByMerchantID(cb.MerchantID); ok {
		return t, nil
	}
	return configs.Tenant{}, ErrUnknownMerchant
}

// ComputeHash is the provider's scheme: base64 of an HMAC-SHA256 over
// merchant_oid + merchant_salt + status + total_amount, keyed by the
// merchant key.
func ComputeHash(merchantOID, salt, status, totalAmount, merchantKey string) string {
	mac := hmac.New(sha256.New, []byte(merchantKey))
	mac.Write([]byte(merchantOID))
	mac.Write([]byte(salt))
	mac.Write([]byte(status))
	mac.Write([]byte(totalAmount))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the callback hash with the tenant's credentials and
// compares in constant time.
func Verify(cb Callback, t configs.Tenant) error {
	want := ComputeHash(cb.MerchantOID, t.MerchantSalt, cb.Status, cb.TotalAmount, t.MerchantKey)
	if !hmac.Equal([]byte(want), []byte(cb.Hash)) {
		return ErrSignatureMismatch
	}
	return nil
}

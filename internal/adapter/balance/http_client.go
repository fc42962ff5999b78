// Package balance is the outbound client for the credit-balance
// collaborator (the marketplace monolith's internal API).
package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type grantRequest struct {
	OrderID  string `json:"order_id"`
	Quantity int64  `json:"quantity"`
}

// GrantCredits adds credits to a user or organization balance. The
// Idempotency-Key is derived from the order, so replays (dispatcher
// re-invocation, retry-queue redelivery) collapse server-side; a 409 from
// the collaborator means "already granted" and counts as success.
func (c *Client) GrantCredits(ctx context.Context, subjectType, subjectID, orderID string, quantity int64) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(grantRequest{OrderID: orderID, Quantity: quantity})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/balances/%s/%s/credits", c.baseURL, subjectType, subjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "credit:"+orderID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusConflict {
		// already granted for this order
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("grant credits: status %d: %s", resp.StatusCode, snippet)
}

var _ usecase.BalanceService = (*Client)(nil)

// Package payments talks to the hosted payment processor. This service only
// supplies amounts and references; payment state itself lives in the
// processor.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrPaymentDeclined means the processor rejected the request.
var ErrPaymentDeclined = errors.New("payment declined")

// Processor is the capability set the job lifecycle needs: capture on
// accept, release on approval, refund on cancellation.
type Processor interface {
	Capture(ctx context.Context, jobID string, amountCents int64) error
	Release(ctx context.Context, jobID string, amountCents int64) error
	Refund(ctx context.Context, jobID string, amountCents int64) error
}

// Client handles communication with the payment processor service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new payment processor client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Capture(ctx context.Context, jobID string, amountCents int64) error {
	return c.post(ctx, jobID, "capture", amountCents)
}

func (c *Client) Release(ctx context.Context, jobID string, amountCents int64) error {
	return c.post(ctx, jobID, "release", amountCents)
}

func (c *Client) Refund(ctx context.Context, jobID string, amountCents int64) error {
	return c.post(ctx, jobID, "refund", amountCents)
}

func (c *Client) post(ctx context.Context, jobID, action string, amountCents int64) error {
	request := struct {
		AmountCents int64 `json:"amount_cents"`
	}{
		AmountCents: amountCents,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/payments/%s/%s", c.baseURL, jobID, action)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity {
		return ErrPaymentDeclined
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment processor returned status %d for %s", resp.StatusCode, action)
	}

	return nil
}

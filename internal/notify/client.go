package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client handles communication with the email/SMS gateway service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new notification gateway client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyProvider posts one offer notification to the gateway, which fans it
// out over email and, when a phone number is present, SMS.
func (c *Client) NotifyProvider(ctx context.Context, notification *OfferNotification) error {
	jsonData, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/notifications/offers", c.baseURL)
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

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}

	return nil
}

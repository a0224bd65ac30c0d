package notify

import (
	"context"
	"time"
)

// OfferNotification is the payload the messaging gateway turns into the
// provider-facing email and SMS for one broadcast offer.
type OfferNotification struct {
	ProviderID    string `json:"provider_id"`
	ProviderName  string `json:"provider_name"`
	ProviderEmail string `json:"provider_email"`
	ProviderPhone string `json:"provider_phone,omitempty"`

	JobID            string `json:"job_id"`
	JobTitle         string `json:"job_title"`
	Category         string `json:"category"`
	City             string `json:"city"`
	PostalCode       string `json:"postal_code"`
	ProviderNetCents int64  `json:"provider_net_cents"`

	AcceptURL  string `json:"accept_url"`
	CounterURL string `json:"counter_url"`
	DeclineURL string `json:"decline_url"`

	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier dispatches provider notifications. Delivery is fire-and-forget
// from the dispatcher's point of view: a failed send never blocks the offer
// it announces.
type Notifier interface {
	NotifyProvider(ctx context.Context, notification *OfferNotification) error
}

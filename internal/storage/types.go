package storage

import (
	"fmt"
	"time"
)

// Status tracks a job through its lifecycle.
//
// Valid status graph:
//
//	draft ──► awaiting_accept ──► accepted ──► scheduled ──► ready_for_review ──► completed
//	  │              │                │             │                │
//	  └──────────────┴────────────────┴─────────────┴────────────────┴──► cancelled
//
// completed and cancelled are terminal states.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusAwaitingAccept Status = "awaiting_accept"
	StatusAccepted       Status = "accepted"
	StatusScheduled      Status = "scheduled"
	StatusReadyForReview Status = "ready_for_review"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusDraft:          {StatusAwaitingAccept, StatusCancelled},
	StatusAwaitingAccept: {StatusAccepted, StatusCancelled},
	StatusAccepted:       {StatusScheduled, StatusCancelled},
	StatusScheduled:      {StatusReadyForReview, StatusCancelled},
	StatusReadyForReview: {StatusCompleted, StatusCancelled},
	// completed and cancelled are terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusAwaitingAccept, StatusAccepted, StatusScheduled,
		StatusReadyForReview, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states with no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// OfferKind is a provider's current negotiation position on a job.
type OfferKind string

const (
	OfferBroadcast OfferKind = "broadcast"
	OfferAccept    OfferKind = "accept"
	OfferCounter   OfferKind = "counter"
	OfferDecline   OfferKind = "decline"
	OfferExpired   OfferKind = "expired"
)

// Categories is the fixed set of repair categories the platform prices.
var Categories = []string{"plumbing", "electrical", "paint", "handyman", "roof", "hvac", "flooring"}

// ValidCategory reports whether category is one of the supported repair
// categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Job is one repair request. All currency fields are integer cents.
type Job struct {
	ID          string `json:"id" dynamodbav:"id"`
	ClientID    string `json:"client_id" dynamodbav:"client_id"`
	Title       string `json:"title" dynamodbav:"title"`
	Description string `json:"description" dynamodbav:"description"`
	Category    string `json:"category" dynamodbav:"category"`
	Status      Status `json:"status" dynamodbav:"status"`

	City       string `json:"city" dynamodbav:"city"`
	PostalCode string `json:"postal_code" dynamodbav:"postal_code"`

	PhotoRefs []string `json:"photo_refs,omitempty" dynamodbav:"photo_refs,omitempty"`
	Tags      []string `json:"tags,omitempty" dynamodbav:"tags,omitempty"`
	ScopeText string   `json:"scope_text,omitempty" dynamodbav:"scope_text,omitempty"`

	CostMinCents     int64   `json:"cost_min_cents" dynamodbav:"cost_min_cents"`
	CostMaxCents     int64   `json:"cost_max_cents" dynamodbav:"cost_max_cents"`
	ClientPriceCents int64   `json:"client_price_cents" dynamodbav:"client_price_cents"`
	ProviderNetCents int64   `json:"provider_net_cents" dynamodbav:"provider_net_cents"`
	MarginFraction   float64 `json:"margin_fraction" dynamodbav:"margin_fraction"`

	RushFlag       bool    `json:"rush_flag" dynamodbav:"rush_flag"`
	AfterHoursFlag bool    `json:"after_hours_flag" dynamodbav:"after_hours_flag"`
	RenterFlag     bool    `json:"renter_flag" dynamodbav:"renter_flag"`
	LandlordID     *string `json:"landlord_id,omitempty" dynamodbav:"landlord_id,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" dynamodbav:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" dynamodbav:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" dynamodbav:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

// Offer is one provider's time-boxed position on one job. There is at most
// one offer per (job, provider) pair; offers are mutated, never deleted.
type Offer struct {
	JobID           string     `json:"job_id" dynamodbav:"job_id"`
	ProviderID      string     `json:"provider_id" dynamodbav:"provider_id"`
	Kind            OfferKind  `json:"kind" dynamodbav:"kind"`
	CounterNetCents *int64     `json:"counter_net_cents,omitempty" dynamodbav:"counter_net_cents,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty" dynamodbav:"accepted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// CostFactors is the externally supplied reference pricing data for one
// category in one location. Read-only from this service's perspective.
type CostFactors struct {
	LocationKey           string  `json:"location_key" dynamodbav:"location_key"`
	Category              string  `json:"category" dynamodbav:"category"`
	LaborRateCentsPerHour int64   `json:"labor_rate_cents_per_hour" dynamodbav:"labor_rate_cents_per_hour"`
	MaterialMultiplier    float64 `json:"material_multiplier" dynamodbav:"material_multiplier"`
	MinimumJobCents       int64   `json:"minimum_job_cents" dynamodbav:"minimum_job_cents"`
}

// Provider is a vetted repair contractor eligible to receive offers.
type Provider struct {
	ID            string `json:"id" dynamodbav:"id"`
	Name          string `json:"name" dynamodbav:"name"`
	Email         string `json:"email" dynamodbav:"email"`
	Phone         string `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Verified      bool   `json:"verified" dynamodbav:"verified"`
	LicensePrefix string `json:"license_prefix" dynamodbav:"license_prefix"`
}

// JobUpdate carries the fields a status transition may set atomically with
// the status change (counter-offer approvals rewrite prices, accepts set the
// schedule).
type JobUpdate struct {
	ProviderNetCents *int64
	ClientPriceCents *int64
	ScheduledAt      *time.Time
	AcceptedAt       *time.Time
	CompletedAt      *time.Time
}

package service

import (
	"math"
	"time"

	"prereno-backend/internal/storage"
)

// PricingConfig holds the platform's pricing policy. The counter-offer bands
// are product policy constants; treat them as configuration, not law.
type PricingConfig struct {
	MarginFraction       float64 // platform take as a fraction of client price
	RushMultiplier       float64 // surcharge for same-day work
	AfterHoursMultiplier float64 // surcharge for evening/weekend work

	CounterBand     float64 // acceptable counter range around provider net
	AutoApproveBand float64 // counters at most this far above net auto-approve

	OfferTTL           time.Duration // how long a broadcast offer stays acceptable
	FreeCancelWindow   time.Duration // cancellations earlier than this refund in full
	LateCancelFeeCents int64
}

// DefaultPricingConfig returns the standard platform policy.
func DefaultPricingConfig() *PricingConfig {
	return &PricingConfig{
		MarginFraction:       0.20,
		RushMultiplier:       1.5,
		AfterHoursMultiplier: 1.25,
		CounterBand:          0.20,
		AutoApproveBand:      0.10,
		OfferTTL:             15 * time.Minute,
		FreeCancelWindow:     24 * time.Hour,
		LateCancelFeeCents:   2500,
	}
}

// PriceBreakdown is the result of pricing one job. All currency fields are
// integer cents.
type PriceBreakdown struct {
	LaborHours        float64 `json:"labor_hours"`
	LaborCostCents    int64   `json:"labor_cost_cents"`
	MaterialCostCents int64   `json:"material_cost_cents"`
	BaseCostCents     int64   `json:"base_cost_cents"`
	AdjustedCostCents int64   `json:"adjusted_cost_cents"`
	ProviderNetCents  int64   `json:"provider_net_cents"`
	ClientPriceCents  int64   `json:"client_price_cents"`
	MarginFraction    float64 `json:"margin_fraction"`
}

// ComputePrice maps detected condition tags plus the rush/after-hours flags
// to a full price breakdown using the supplied cost factors. It is pure: it
// never fetches factors, caches nothing, and has no side effects.
//
// The rush and after-hours multipliers compound as a single product and are
// rounded once at the end, so the result for both flags is
// round(base * 1.5 * 1.25) rather than two stacked roundings.
func (p *PricingConfig) ComputePrice(tags []string, rush, afterHours bool, factors *storage.CostFactors) *PriceBreakdown {
	complexity := 0.5 * float64(len(tags))
	for _, tag := range tags {
		if tag == "water_damage" {
			complexity++
			break
		}
	}

	laborHours := math.Min(8, math.Max(1, 1+complexity))

	laborCost := int64(math.Round(laborHours * float64(factors.LaborRateCentsPerHour)))
	materialCost := int64(math.Round(float64(laborCost) * 0.4 * factors.MaterialMultiplier))

	baseCost := laborCost + materialCost
	if baseCost < factors.MinimumJobCents {
		baseCost = factors.MinimumJobCents
	}

	multiplier := 1.0
	if rush {
		multiplier *= p.RushMultiplier
	}
	if afterHours {
		multiplier *= p.AfterHoursMultiplier
	}
	adjustedCost := int64(math.Round(float64(baseCost) * multiplier))

	providerNet := adjustedCost
	clientPrice := int64(math.Round(float64(providerNet) / (1 - p.MarginFraction)))

	return &PriceBreakdown{
		LaborHours:        laborHours,
		LaborCostCents:    laborCost,
		MaterialCostCents: materialCost,
		BaseCostCents:     baseCost,
		AdjustedCostCents: adjustedCost,
		ProviderNetCents:  providerNet,
		ClientPriceCents:  clientPrice,
		MarginFraction:    p.MarginFraction,
	}
}

// ClientPriceFor recomputes the client-facing price from a provider net
// amount at the given margin fraction. Used when an approved counter-offer
// rewrites the job's prices.
func ClientPriceFor(providerNetCents int64, marginFraction float64) int64 {
	return int64(math.Round(float64(providerNetCents) / (1 - marginFraction)))
}

// CounterBounds returns the acceptable [min, max] counter range for a job's
// original provider net. The edges round inward (ceil on min, floor on max)
// so a counter a fraction of a cent outside the band is never admitted.
func (p *PricingConfig) CounterBounds(originalNetCents int64) (minCents, maxCents int64) {
	minCents = int64(math.Ceil(float64(originalNetCents) * (1 - p.CounterBand)))
	maxCents = int64(math.Floor(float64(originalNetCents) * (1 + p.CounterBand)))
	return minCents, maxCents
}

// AutoApproveCeiling returns the highest counter that is accepted without
// manual review. Floored for the same reason CounterBounds rounds inward.
func (p *PricingConfig) AutoApproveCeiling(originalNetCents int64) int64 {
	return int64(math.Floor(float64(originalNetCents) * (1 + p.AutoApproveBand)))
}

package service

import "time"

// Refund is the outcome of a cancellation: how much goes back to the client
// and what fee the platform kept.
type Refund struct {
	RefundAmountCents int64 `json:"refund_amount_cents"`
	ServiceFeeCents   int64 `json:"service_fee_cents"`
}

// ComputeRefund applies the cancellation policy: cancelling more than the
// free-cancel window before the scheduled time refunds in full; inside the
// window a flat late fee is deducted, floored at a zero refund. The caller
// supplies now so the function stays deterministic.
func (p *PricingConfig) ComputeRefund(scheduledAt time.Time, paidAmountCents int64, now time.Time) Refund {
	if scheduledAt.Sub(now) > p.FreeCancelWindow {
		return Refund{RefundAmountCents: paidAmountCents, ServiceFeeCents: 0}
	}

	fee := p.LateCancelFeeCents
	if fee > paidAmountCents {
		fee = paidAmountCents
	}
	return Refund{
		RefundAmountCents: paidAmountCents - fee,
		ServiceFeeCents:   fee,
	}
}

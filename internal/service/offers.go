package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prereno-backend/internal/notify"
	"prereno-backend/internal/storage"
)

// BookJob turns a priced draft into a live negotiation: the job moves to
// awaiting_accept and every eligible provider gets one time-boxed broadcast
// offer. Notification failures are logged and never undo the offer.
func (s *JobService) BookJob(ctx context.Context, jobID, clientID string) (int, error) {
	job, err := s.ownedJob(ctx, jobID, clientID)
	if err != nil {
		return 0, err
	}

	if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusDraft, storage.StatusAwaitingAccept, storage.JobUpdate{}); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return 0, fmt.Errorf("%w: job is %s, not %s", ErrInvalidTransition, job.Status, storage.StatusDraft)
		}
		return 0, err
	}
	job.Status = storage.StatusAwaitingAccept

	roster, err := s.providers.ListVerifiedProviders(ctx)
	if err != nil {
		return 0, err
	}
	eligible := EligibleProviders(job, roster)

	now := time.Now()
	sent := 0
	for _, provider := range eligible {
		offer := &storage.Offer{
			JobID:      job.ID,
			ProviderID: provider.ID,
			Kind:       storage.OfferBroadcast,
			ExpiresAt:  now.Add(s.pricing.OfferTTL),
			CreatedAt:  now,
		}
		if err := s.offers.CreateOffer(ctx, offer); err != nil {
			slog.Error("Failed to create offer", "job_id", job.ID, "provider_id", provider.ID, "error", err)
			continue
		}
		sent++

		s.sendOfferNotification(ctx, job, provider, offer)
	}

	s.streamer.StreamJobEvent("booked", job)
	slog.Info("Job booked", "job_id", job.ID, "offers_sent", sent)
	return sent, nil
}

// sendOfferNotification mints the provider's action token and dispatches the
// email/SMS. Failures are logged and swallowed.
func (s *JobService) sendOfferNotification(ctx context.Context, job *storage.Job, provider *storage.Provider, offer *storage.Offer) {
	token, err := s.tokens.Sign(job.ID, provider.ID)
	if err != nil {
		slog.Error("Failed to sign offer token", "job_id", job.ID, "provider_id", provider.ID, "error", err)
		return
	}

	notification := &notify.OfferNotification{
		ProviderID:    provider.ID,
		ProviderName:  provider.Name,
		ProviderEmail: provider.Email,
		ProviderPhone: provider.Phone,

		JobID:            job.ID,
		JobTitle:         job.Title,
		Category:         job.Category,
		City:             job.City,
		PostalCode:       job.PostalCode,
		ProviderNetCents: job.ProviderNetCents,

		AcceptURL:  fmt.Sprintf("%s/offers/%s/accept", s.publicURL, token),
		CounterURL: fmt.Sprintf("%s/offers/%s/counter", s.publicURL, token),
		DeclineURL: fmt.Sprintf("%s/offers/%s/decline", s.publicURL, token),

		ExpiresAt: offer.ExpiresAt,
	}

	if err := s.notifier.NotifyProvider(ctx, notification); err != nil {
		slog.Error("Failed to notify provider", "job_id", job.ID, "provider_id", provider.ID, "error", err)
	}
}

// EligibleProviders filters the roster down to verified providers whose
// license prefix matches the job's postal-code prefix.
func EligibleProviders(job *storage.Job, roster []*storage.Provider) []*storage.Provider {
	prefix := postalPrefix(job.PostalCode)

	var eligible []*storage.Provider
	for _, p := range roster {
		if p.Verified && strings.HasPrefix(p.LicensePrefix, prefix) {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

func postalPrefix(postalCode string) string {
	if len(postalCode) < 2 {
		return postalCode
	}
	return postalCode[:2]
}

// AcceptOffer resolves the accept race. The job's awaiting_accept →
// accepted transition is a conditional write; exactly one provider can win
// it, and everyone else gets ErrAlreadyClaimed. On success the winning offer
// is marked accepted and all other offers are forced to expired.
//
// Do not blindly retry a failed accept: a conflict means the job was claimed
// and the precondition must be re-checked, not the write resubmitted.
func (s *JobService) AcceptOffer(ctx context.Context, jobID, providerID string) (*storage.Job, error) {
	offer, err := s.offers.GetOffer(ctx, jobID, providerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := actionableOffer(offer, now); err != nil {
		return nil, err
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	scheduledAt := now.Add(24 * time.Hour)
	update := storage.JobUpdate{
		ScheduledAt: &scheduledAt,
		AcceptedAt:  &now,
	}
	if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusAwaitingAccept, storage.StatusAccepted, update); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}

	job.Status = storage.StatusAccepted
	job.ScheduledAt = &scheduledAt
	job.AcceptedAt = &now

	offer.Kind = storage.OfferAccept
	offer.AcceptedAt = &now
	if err := s.offers.UpdateOffer(ctx, offer); err != nil {
		return nil, err
	}

	if err := s.expireOtherOffers(ctx, jobID, providerID); err != nil {
		return nil, err
	}

	if err := s.processor.Capture(ctx, jobID, job.ClientPriceCents); err != nil {
		// The accept stands; the client confirms (and the processor retries)
		// out of band.
		slog.Error("Payment capture failed", "job_id", jobID, "amount_cents", job.ClientPriceCents, "error", err)
	}

	s.streamer.StreamJobEvent("offer_accepted", job)
	slog.Info("Offer accepted", "job_id", jobID, "provider_id", providerID)
	return job, nil
}

// CounterResult reports how a counter-offer was resolved.
type CounterResult struct {
	AutoApproved        bool  `json:"auto_approved"`
	RequiresApproval    bool  `json:"requires_approval"`
	NewProviderNetCents int64 `json:"new_provider_net_cents,omitempty"`
	NewClientPriceCents int64 `json:"new_client_price_cents,omitempty"`
}

// CounterOffer range-checks a provider's counter against the job's original
// net. Counters within the auto-approve band accept the job immediately at
// the new prices; higher (but in-range) counters park the offer in counter
// state for manual approval. All guards run before any mutation.
func (s *JobService) CounterOffer(ctx context.Context, jobID, providerID string, counterNetCents int64) (*CounterResult, error) {
	offer, err := s.offers.GetOffer(ctx, jobID, providerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := actionableOffer(offer, now); err != nil {
		return nil, err
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != storage.StatusAwaitingAccept {
		return nil, ErrAlreadyClaimed
	}

	minNet, maxNet := s.pricing.CounterBounds(job.ProviderNetCents)
	if counterNetCents < minNet || counterNetCents > maxNet {
		return nil, &CounterRangeError{MinNetCents: minNet, MaxNetCents: maxNet}
	}

	if counterNetCents <= s.pricing.AutoApproveCeiling(job.ProviderNetCents) {
		newClientPrice := ClientPriceFor(counterNetCents, job.MarginFraction)
		scheduledAt := now.Add(24 * time.Hour)
		update := storage.JobUpdate{
			ProviderNetCents: &counterNetCents,
			ClientPriceCents: &newClientPrice,
			ScheduledAt:      &scheduledAt,
			AcceptedAt:       &now,
		}
		if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusAwaitingAccept, storage.StatusAccepted, update); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				return nil, ErrAlreadyClaimed
			}
			return nil, err
		}

		job.Status = storage.StatusAccepted
		job.ProviderNetCents = counterNetCents
		job.ClientPriceCents = newClientPrice

		offer.Kind = storage.OfferAccept
		offer.CounterNetCents = &counterNetCents
		offer.AcceptedAt = &now
		if err := s.offers.UpdateOffer(ctx, offer); err != nil {
			return nil, err
		}

		if err := s.expireOtherOffers(ctx, jobID, providerID); err != nil {
			return nil, err
		}

		if err := s.processor.Capture(ctx, jobID, newClientPrice); err != nil {
			slog.Error("Payment capture failed", "job_id", jobID, "amount_cents", newClientPrice, "error", err)
		}

		s.streamer.StreamJobEvent("offer_accepted", job)
		slog.Info("Counter offer auto-approved", "job_id", jobID, "provider_id", providerID, "counter_net_cents", counterNetCents)
		return &CounterResult{
			AutoApproved:        true,
			NewProviderNetCents: counterNetCents,
			NewClientPriceCents: newClientPrice,
		}, nil
	}

	offer.Kind = storage.OfferCounter
	offer.CounterNetCents = &counterNetCents
	if err := s.offers.UpdateOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.streamer.StreamJobEvent("offer_countered", job)
	slog.Info("Counter offer queued for review", "job_id", jobID, "provider_id", providerID, "counter_net_cents", counterNetCents)
	return &CounterResult{RequiresApproval: true, NewProviderNetCents: counterNetCents}, nil
}

// DeclineOffer records a provider's decline. The job stays as it was.
func (s *JobService) DeclineOffer(ctx context.Context, jobID, providerID string) error {
	offer, err := s.offers.GetOffer(ctx, jobID, providerID)
	if err != nil {
		return err
	}

	if err := actionableOffer(offer, time.Now()); err != nil {
		return err
	}

	offer.Kind = storage.OfferDecline
	if err := s.offers.UpdateOffer(ctx, offer); err != nil {
		return err
	}

	slog.Info("Offer declined", "job_id", jobID, "provider_id", providerID)
	return nil
}

// actionableOffer enforces lazy expiry: nothing sweeps expired offers, the
// timestamp is simply checked at the moment of the action. An offer whose
// kind was forced to expired before its TTL lapsed was invalidated by a
// winning accept, so the caller gets ErrAlreadyClaimed rather than
// ErrOfferExpired.
func actionableOffer(offer *storage.Offer, now time.Time) error {
	if now.After(offer.ExpiresAt) {
		return ErrOfferExpired
	}
	switch offer.Kind {
	case storage.OfferExpired:
		return ErrAlreadyClaimed
	case storage.OfferAccept, storage.OfferDecline:
		return fmt.Errorf("%w: offer already resolved as %s", ErrInvalidTransition, offer.Kind)
	}
	return nil
}

// expireOtherOffers forces every offer except the winner's to expired,
// preserving the at-most-one-accept invariant. Offers are an audit trail and
// are never deleted.
func (s *JobService) expireOtherOffers(ctx context.Context, jobID, winnerProviderID string) error {
	offers, err := s.offers.GetOffersByJob(ctx, jobID)
	if err != nil {
		return err
	}

	for _, other := range offers {
		if other.ProviderID == winnerProviderID {
			continue
		}
		other.Kind = storage.OfferExpired
		if err := s.offers.UpdateOffer(ctx, other); err != nil {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"prereno-backend/internal/events"
	"prereno-backend/internal/notify"
	"prereno-backend/internal/payments"
	"prereno-backend/internal/storage"
	"prereno-backend/internal/vision"

	"github.com/google/uuid"
)

// JobService orchestrates the repair-job lifecycle: creation and pricing,
// offer dispatch, payment hand-offs, completion, and cancellation. All
// collaborators are injected interfaces; the service holds no state of its
// own beyond configuration.
type JobService struct {
	jobs      storage.JobStorage
	offers    storage.OfferStorage
	costs     storage.CostFactorStorage
	providers storage.ProviderStorage

	detector  vision.Detector
	notifier  notify.Notifier
	processor payments.Processor

	pricing   *PricingConfig
	tokens    *OfferTokenSigner
	publicURL string
	streamer  *events.Streamer
}

// NewJobService creates a new job service instance with the default pricing
// policy.
func NewJobService(
	jobs storage.JobStorage,
	offers storage.OfferStorage,
	costs storage.CostFactorStorage,
	providers storage.ProviderStorage,
	detector vision.Detector,
	notifier notify.Notifier,
	processor payments.Processor,
	tokens *OfferTokenSigner,
	publicURL string,
) *JobService {
	return &JobService{
		jobs:      jobs,
		offers:    offers,
		costs:     costs,
		providers: providers,
		detector:  detector,
		notifier:  notifier,
		processor: processor,
		pricing:   DefaultPricingConfig(),
		tokens:    tokens,
		publicURL: publicURL,
	}
}

// SetEventStreamer enables Kinesis job event streaming.
func (s *JobService) SetEventStreamer(streamer *events.Streamer) {
	s.streamer = streamer
}

// SetPricingConfig replaces the default pricing policy.
func (s *JobService) SetPricingConfig(pricing *PricingConfig) {
	s.pricing = pricing
}

// Pricing exposes the active pricing policy (the offer TTL and cancellation
// windows live there).
func (s *JobService) Pricing() *PricingConfig {
	return s.pricing
}

// CreateJobInput is everything a client submits for a new repair request.
type CreateJobInput struct {
	ClientID    string
	Title       string
	Description string
	Category    string
	City        string
	PostalCode  string
	PhotoRefs   []string

	RushFlag       bool
	AfterHoursFlag bool
	RenterFlag     bool
	LandlordID     *string
}

// CreateJob analyzes the submitted photos, prices the work, and persists the
// job in draft status. Missing cost factors for the location/category are a
// hard error; pricing never substitutes defaults.
func (s *JobService) CreateJob(ctx context.Context, input CreateJobInput) (*storage.Job, *PriceBreakdown, error) {
	if !storage.ValidCategory(input.Category) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCategory, input.Category)
	}
	if len(input.PhotoRefs) == 0 {
		return nil, nil, errors.New("at least one photo is required")
	}
	if input.RenterFlag && input.LandlordID == nil {
		return nil, nil, errors.New("renter-occupied jobs require a landlord reference")
	}

	analysis, err := s.detector.Analyze(ctx, input.PhotoRefs)
	if err != nil {
		return nil, nil, fmt.Errorf("photo analysis failed: %w", err)
	}

	factors, err := s.costs.GetCostFactors(ctx, input.PostalCode, input.Category)
	if err != nil {
		return nil, nil, err
	}

	breakdown := s.pricing.ComputePrice(analysis.Tags, input.RushFlag, input.AfterHoursFlag, factors)

	job := &storage.Job{
		ID:          uuid.NewString(),
		ClientID:    input.ClientID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Status:      storage.StatusDraft,
		City:        input.City,
		PostalCode:  input.PostalCode,
		PhotoRefs:   input.PhotoRefs,
		Tags:        analysis.Tags,
		ScopeText:   GenerateScope(input.Category),

		CostMinCents:     int64(math.Round(float64(breakdown.ClientPriceCents) * 0.9)),
		CostMaxCents:     int64(math.Round(float64(breakdown.ClientPriceCents) * 1.1)),
		ClientPriceCents: breakdown.ClientPriceCents,
		ProviderNetCents: breakdown.ProviderNetCents,
		MarginFraction:   breakdown.MarginFraction,

		RushFlag:       input.RushFlag,
		AfterHoursFlag: input.AfterHoursFlag,
		RenterFlag:     input.RenterFlag,
		LandlordID:     input.LandlordID,
		CreatedAt:      time.Now(),
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	s.streamer.StreamJobEvent("created", job)
	slog.Info("Job created", "job_id", job.ID, "category", job.Category, "client_price_cents", job.ClientPriceCents, "confidence", analysis.Confidence)

	return job, breakdown, nil
}

// ConfirmPayment moves an accepted job to scheduled once the client's
// payment capture has gone through on the processor side.
func (s *JobService) ConfirmPayment(ctx context.Context, jobID, clientID string) (*storage.Job, error) {
	job, err := s.ownedJob(ctx, jobID, clientID)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusAccepted, storage.StatusScheduled, storage.JobUpdate{}); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: job is %s, not %s", ErrInvalidTransition, job.Status, storage.StatusAccepted)
		}
		return nil, err
	}

	job.Status = storage.StatusScheduled
	s.streamer.StreamJobEvent("payment_confirmed", job)
	return job, nil
}

// CompleteJob lets the accepted provider mark scheduled work as done,
// putting the job in front of the client for review.
func (s *JobService) CompleteJob(ctx context.Context, jobID, providerID string) (*storage.Job, error) {
	offer, err := s.offers.GetOffer(ctx, jobID, providerID)
	if err != nil {
		return nil, err
	}
	if offer.Kind != storage.OfferAccept {
		return nil, storage.ErrOfferNotFound
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusScheduled, storage.StatusReadyForReview, storage.JobUpdate{}); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: job is %s, not %s", ErrInvalidTransition, job.Status, storage.StatusScheduled)
		}
		return nil, err
	}

	job.Status = storage.StatusReadyForReview
	s.streamer.StreamJobEvent("ready_for_review", job)
	return job, nil
}

// ApproveJob lets the client sign off on completed work; the provider's net
// payout is released.
func (s *JobService) ApproveJob(ctx context.Context, jobID, clientID string) (*storage.Job, error) {
	job, err := s.ownedJob(ctx, jobID, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.jobs.TransitionJob(ctx, jobID, storage.StatusReadyForReview, storage.StatusCompleted, storage.JobUpdate{CompletedAt: &now}); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: job is %s, not %s", ErrInvalidTransition, job.Status, storage.StatusReadyForReview)
		}
		return nil, err
	}

	job.Status = storage.StatusCompleted
	job.CompletedAt = &now

	if err := s.processor.Release(ctx, jobID, job.ProviderNetCents); err != nil {
		// The job is complete either way; payout release is retried on the
		// processor side.
		slog.Error("Payment release failed", "job_id", jobID, "amount_cents", job.ProviderNetCents, "error", err)
	}

	s.streamer.StreamJobEvent("completed", job)
	return job, nil
}

// CancelJob cancels a non-terminal job and computes the refund per the
// cancellation policy. Nothing is refunded for jobs that never reached
// payment capture.
func (s *JobService) CancelJob(ctx context.Context, jobID, clientID string) (*storage.Job, *Refund, error) {
	job, err := s.ownedJob(ctx, jobID, clientID)
	if err != nil {
		return nil, nil, err
	}

	if storage.IsTerminal(job.Status) {
		return nil, nil, fmt.Errorf("%w: job is already %s", ErrInvalidTransition, job.Status)
	}

	refund := Refund{}
	if paidSoFar(job) > 0 && job.ScheduledAt != nil {
		refund = s.pricing.ComputeRefund(*job.ScheduledAt, paidSoFar(job), time.Now())
	}

	if err := s.jobs.TransitionJob(ctx, jobID, job.Status, storage.StatusCancelled, storage.JobUpdate{}); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, nil, fmt.Errorf("%w: job status changed, re-read and retry", ErrInvalidTransition)
		}
		return nil, nil, err
	}

	job.Status = storage.StatusCancelled

	if refund.RefundAmountCents > 0 {
		if err := s.processor.Refund(ctx, jobID, refund.RefundAmountCents); err != nil {
			slog.Error("Refund request failed", "job_id", jobID, "amount_cents", refund.RefundAmountCents, "error", err)
		}
	}

	s.streamer.StreamJobEvent("cancelled", job)
	slog.Info("Job cancelled", "job_id", jobID, "refund_cents", refund.RefundAmountCents, "fee_cents", refund.ServiceFeeCents)
	return job, &refund, nil
}

// paidSoFar returns how much the client has been charged for a job: the full
// client price once the accept-time capture has happened, zero before.
func paidSoFar(job *storage.Job) int64 {
	switch job.Status {
	case storage.StatusAccepted, storage.StatusScheduled, storage.StatusReadyForReview:
		return job.ClientPriceCents
	}
	return 0
}

// CostEstimate is the public cost guide for one location/category.
type CostEstimate struct {
	LocationKey           string `json:"location_key"`
	Category              string `json:"category"`
	LaborRateCentsPerHour int64  `json:"labor_rate_cents_per_hour"`
	TypicalMinCents       int64  `json:"typical_min_cents"`
	TypicalMaxCents       int64  `json:"typical_max_cents"`
}

// EstimateCost returns the published cost guide for a location/category.
func (s *JobService) EstimateCost(ctx context.Context, locationKey, category string) (*CostEstimate, error) {
	if !storage.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	factors, err := s.costs.GetCostFactors(ctx, locationKey, category)
	if err != nil {
		return nil, err
	}

	return &CostEstimate{
		LocationKey:           locationKey,
		Category:              category,
		LaborRateCentsPerHour: factors.LaborRateCentsPerHour,
		TypicalMinCents:       factors.MinimumJobCents,
		TypicalMaxCents:       factors.MinimumJobCents * 5,
	}, nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, jobID string) (*storage.Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// GetJobsByStatus returns jobs with a specific status
func (s *JobService) GetJobsByStatus(ctx context.Context, status storage.Status) ([]*storage.Job, error) {
	return s.jobs.GetJobsByStatus(ctx, status)
}

// GetAllJobs returns all jobs
func (s *JobService) GetAllJobs(ctx context.Context) ([]*storage.Job, error) {
	return s.jobs.GetAllJobs(ctx)
}

// GetOffersByJob returns every offer recorded for a job.
func (s *JobService) GetOffersByJob(ctx context.Context, jobID string) ([]*storage.Offer, error) {
	return s.offers.GetOffersByJob(ctx, jobID)
}

// ownedJob loads a job and verifies the caller owns it.
func (s *JobService) ownedJob(ctx context.Context, jobID, clientID string) (*storage.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, ErrNotJobOwner
	}
	return job, nil
}

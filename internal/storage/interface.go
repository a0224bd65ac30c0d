package storage

import (
	"context"
	"errors"
)

// Common storage errors
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrOfferNotFound = errors.New("offer not found")
	ErrNotConfigured = errors.New("cost factors not configured for location/category")

	// ErrStatusConflict means a conditional status transition found the job
	// in a different status than expected. The caller lost a race; retrying
	// without re-reading the job would be unsafe.
	ErrStatusConflict = errors.New("job status changed concurrently")

	// ErrTransitionNotAllowed means the requested from/to pair is not in the
	// lifecycle transition table. Unlike ErrStatusConflict this is not a
	// race; the request itself is illegal.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
)

// JobStorage defines the interface for job data operations.
type JobStorage interface {
	// CreateJob adds a new job
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// UpdateJob replaces an existing job
	UpdateJob(ctx context.Context, job *Job) error

	// GetJobsByStatus finds jobs by status
	GetJobsByStatus(ctx context.Context, status Status) ([]*Job, error)

	// GetAllJobs returns all jobs
	GetAllJobs(ctx context.Context) ([]*Job, error)

	// TransitionJob moves a job from → to, applying update in the same
	// write. The pair must be in the lifecycle transition table
	// (ErrTransitionNotAllowed otherwise), and the write succeeds only if
	// the job is still in the from status at write time; otherwise it
	// returns ErrStatusConflict and mutates nothing. This is the
	// single-writer-wins guard for the accept race.
	TransitionJob(ctx context.Context, jobID string, from, to Status, update JobUpdate) error
}

// OfferStorage defines the interface for offer data operations. Offers are
// keyed by (job, provider) and are never deleted.
type OfferStorage interface {
	// CreateOffer adds a new offer
	CreateOffer(ctx context.Context, offer *Offer) error

	// GetOffer retrieves the offer for one (job, provider) pair
	GetOffer(ctx context.Context, jobID, providerID string) (*Offer, error)

	// UpdateOffer replaces an existing offer
	UpdateOffer(ctx context.Context, offer *Offer) error

	// GetOffersByJob returns every offer for a job
	GetOffersByJob(ctx context.Context, jobID string) ([]*Offer, error)
}

// CostFactorStorage looks up reference pricing data. A missing row is
// ErrNotConfigured; pricing never invents a fallback.
type CostFactorStorage interface {
	GetCostFactors(ctx context.Context, locationKey, category string) (*CostFactors, error)
}

// ProviderStorage reads the provider roster used for offer broadcasts.
type ProviderStorage interface {
	GetProvider(ctx context.Context, providerID string) (*Provider, error)
	ListVerifiedProviders(ctx context.Context) ([]*Provider, error)
}

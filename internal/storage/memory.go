package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryJobStorage implements JobStorage using in-memory maps. The mutex
// gives TransitionJob the same check-and-set atomicity the DynamoDB
// ConditionExpression provides.
type MemoryJobStorage struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewMemoryJobStorage creates a new in-memory job storage instance
func NewMemoryJobStorage() *MemoryJobStorage {
	return &MemoryJobStorage{
		jobs: make(map[string]*Job),
	}
}

func (m *MemoryJobStorage) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MemoryJobStorage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}

	copied := *job
	return &copied, nil
}

func (m *MemoryJobStorage) UpdateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return ErrJobNotFound
	}

	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MemoryJobStorage) TransitionJob(ctx context.Context, jobID string, from, to Status, update JobUpdate) error {
	if !IsTransitionAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}

	if job.Status != from {
		return ErrStatusConflict
	}

	job.Status = to
	if update.ProviderNetCents != nil {
		job.ProviderNetCents = *update.ProviderNetCents
	}
	if update.ClientPriceCents != nil {
		job.ClientPriceCents = *update.ClientPriceCents
	}
	if update.ScheduledAt != nil {
		job.ScheduledAt = update.ScheduledAt
	}
	if update.AcceptedAt != nil {
		job.AcceptedAt = update.AcceptedAt
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}

	return nil
}

func (m *MemoryJobStorage) GetJobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Job
	for _, job := range m.jobs {
		if job.Status == status {
			copied := *job
			result = append(result, &copied)
		}
	}

	return result, nil
}

func (m *MemoryJobStorage) GetAllJobs(ctx context.Context) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Job
	for _, job := range m.jobs {
		copied := *job
		result = append(result, &copied)
	}

	return result, nil
}

// MemoryOfferStorage implements OfferStorage using an in-memory map keyed by
// (job, provider).
type MemoryOfferStorage struct {
	offers map[string]*Offer
	mu     sync.RWMutex
}

// NewMemoryOfferStorage creates a new in-memory offer storage instance
func NewMemoryOfferStorage() *MemoryOfferStorage {
	return &MemoryOfferStorage{
		offers: make(map[string]*Offer),
	}
}

func offerKey(jobID, providerID string) string {
	return jobID + "/" + providerID
}

func (m *MemoryOfferStorage) CreateOffer(ctx context.Context, offer *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := offerKey(offer.JobID, offer.ProviderID)
	if _, exists := m.offers[key]; exists {
		return fmt.Errorf("offer for job %s provider %s already exists", offer.JobID, offer.ProviderID)
	}

	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now()
	}
	copied := *offer
	m.offers[key] = &copied
	return nil
}

func (m *MemoryOfferStorage) GetOffer(ctx context.Context, jobID, providerID string) (*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offer, exists := m.offers[offerKey(jobID, providerID)]
	if !exists {
		return nil, ErrOfferNotFound
	}

	copied := *offer
	return &copied, nil
}

func (m *MemoryOfferStorage) UpdateOffer(ctx context.Context, offer *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := offerKey(offer.JobID, offer.ProviderID)
	if _, exists := m.offers[key]; !exists {
		return ErrOfferNotFound
	}

	copied := *offer
	m.offers[key] = &copied
	return nil
}

func (m *MemoryOfferStorage) GetOffersByJob(ctx context.Context, jobID string) ([]*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Offer
	for _, offer := range m.offers {
		if offer.JobID == jobID {
			copied := *offer
			result = append(result, &copied)
		}
	}

	return result, nil
}

// MemoryCostFactorStorage implements CostFactorStorage from a static map,
// used for dev mode and tests.
type MemoryCostFactorStorage struct {
	factors map[string]*CostFactors
	mu      sync.RWMutex
}

// NewMemoryCostFactorStorage creates a cost factor store seeded with the
// given rows.
func NewMemoryCostFactorStorage(rows []*CostFactors) *MemoryCostFactorStorage {
	m := &MemoryCostFactorStorage{
		factors: make(map[string]*CostFactors),
	}
	for _, row := range rows {
		copied := *row
		m.factors[row.LocationKey+"/"+row.Category] = &copied
	}
	return m
}

// PutCostFactors adds or replaces one reference row.
func (m *MemoryCostFactorStorage) PutCostFactors(factors *CostFactors) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *factors
	m.factors[factors.LocationKey+"/"+factors.Category] = &copied
}

func (m *MemoryCostFactorStorage) GetCostFactors(ctx context.Context, locationKey, category string) (*CostFactors, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	factors, exists := m.factors[locationKey+"/"+category]
	if !exists {
		return nil, ErrNotConfigured
	}

	copied := *factors
	return &copied, nil
}

// MemoryProviderStorage implements ProviderStorage from an in-memory roster.
type MemoryProviderStorage struct {
	providers map[string]*Provider
	mu        sync.RWMutex
}

// NewMemoryProviderStorage creates an empty in-memory provider roster
func NewMemoryProviderStorage() *MemoryProviderStorage {
	return &MemoryProviderStorage{
		providers: make(map[string]*Provider),
	}
}

// PutProvider adds or replaces a provider.
func (m *MemoryProviderStorage) PutProvider(provider *Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *provider
	m.providers[provider.ID] = &copied
}

func (m *MemoryProviderStorage) GetProvider(ctx context.Context, providerID string) (*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provider, exists := m.providers[providerID]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerID)
	}

	copied := *provider
	return &copied, nil
}

func (m *MemoryProviderStorage) ListVerifiedProviders(ctx context.Context) ([]*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Provider
	for _, provider := range m.providers {
		if provider.Verified {
			copied := *provider
			result = append(result, &copied)
		}
	}

	return result, nil
}

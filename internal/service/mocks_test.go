package service

import (
	"context"
	"sync"
	"time"

	"prereno-backend/internal/notify"
	"prereno-backend/internal/storage"
	"prereno-backend/internal/vision"
)

// mockDetector returns a canned analysis.
type mockDetector struct {
	tags []string
	err  error
}

func (m *mockDetector) Analyze(ctx context.Context, photoRefs []string) (*vision.Analysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &vision.Analysis{Tags: m.tags, Confidence: 0.9}, nil
}

// mockNotifier records every notification it is asked to send.
type mockNotifier struct {
	mu   sync.Mutex
	sent []*notify.OfferNotification
	err  error
}

func (m *mockNotifier) NotifyProvider(ctx context.Context, notification *notify.OfferNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, notification)
	return nil
}

func (m *mockNotifier) notifications() []*notify.OfferNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*notify.OfferNotification(nil), m.sent...)
}

// paymentCall records one processor invocation.
type paymentCall struct {
	action      string
	jobID       string
	amountCents int64
}

// mockProcessor records capture/release/refund calls.
type mockProcessor struct {
	mu    sync.Mutex
	calls []paymentCall
	err   error
}

func (m *mockProcessor) Capture(ctx context.Context, jobID string, amountCents int64) error {
	return m.record("capture", jobID, amountCents)
}

func (m *mockProcessor) Release(ctx context.Context, jobID string, amountCents int64) error {
	return m.record("release", jobID, amountCents)
}

func (m *mockProcessor) Refund(ctx context.Context, jobID string, amountCents int64) error {
	return m.record("refund", jobID, amountCents)
}

func (m *mockProcessor) record(action, jobID string, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, paymentCall{action: action, jobID: jobID, amountCents: amountCents})
	return nil
}

func (m *mockProcessor) callsFor(action string) []paymentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []paymentCall
	for _, c := range m.calls {
		if c.action == action {
			out = append(out, c)
		}
	}
	return out
}

// testEnv wires a JobService against in-memory storage and mock
// collaborators, seeded with Portland plumbing cost factors and two eligible
// providers.
type testEnv struct {
	svc       *JobService
	jobs      *storage.MemoryJobStorage
	offers    *storage.MemoryOfferStorage
	costs     *storage.MemoryCostFactorStorage
	providers *storage.MemoryProviderStorage
	detector  *mockDetector
	notifier  *mockNotifier
	processor *mockProcessor
}

func newTestEnv() *testEnv {
	env := &testEnv{
		jobs:   storage.NewMemoryJobStorage(),
		offers: storage.NewMemoryOfferStorage(),
		costs: storage.NewMemoryCostFactorStorage([]*storage.CostFactors{
			{
				LocationKey:           "97201",
				Category:              "plumbing",
				LaborRateCentsPerHour: 8000,
				MaterialMultiplier:    1.3,
				MinimumJobCents:       15000,
			},
		}),
		providers: storage.NewMemoryProviderStorage(),
		detector:  &mockDetector{tags: []string{"faucet_leak"}},
		notifier:  &mockNotifier{},
		processor: &mockProcessor{},
	}

	env.providers.PutProvider(&storage.Provider{
		ID: "prov-1", Name: "Pat's Plumbing", Email: "pat@example.com",
		Verified: true, LicensePrefix: "97",
	})
	env.providers.PutProvider(&storage.Provider{
		ID: "prov-2", Name: "Rose City Repairs", Email: "rose@example.com",
		Verified: true, LicensePrefix: "97",
	})
	env.providers.PutProvider(&storage.Provider{
		ID: "prov-3", Name: "Unverified Joe", Email: "joe@example.com",
		Verified: false, LicensePrefix: "97",
	})
	env.providers.PutProvider(&storage.Provider{
		ID: "prov-4", Name: "Manhattan Maintenance", Email: "mm@example.com",
		Verified: true, LicensePrefix: "10",
	})

	signer := NewOfferTokenSigner([]byte("test-secret"), 15*time.Minute)
	env.svc = NewJobService(
		env.jobs, env.offers, env.costs, env.providers,
		env.detector, env.notifier, env.processor,
		signer, "https://app.test",
	)
	return env
}

// createDraft runs CreateJob with standard inputs and returns the job.
func (e *testEnv) createDraft(ctx context.Context) *storage.Job {
	job, _, err := e.svc.CreateJob(ctx, CreateJobInput{
		ClientID:    "client-1",
		Title:       "Leaky kitchen faucet",
		Description: "Dripping since Tuesday",
		Category:    "plumbing",
		City:        "Portland",
		PostalCode:  "97201",
		PhotoRefs:   []string{"photos/faucet.jpg"},
	})
	if err != nil {
		panic(err)
	}
	return job
}

// bookedJob creates a draft and books it, returning the awaiting_accept job.
func (e *testEnv) bookedJob(ctx context.Context) *storage.Job {
	job := e.createDraft(ctx)
	if _, err := e.svc.BookJob(ctx, job.ID, "client-1"); err != nil {
		panic(err)
	}
	booked, err := e.jobs.GetJob(ctx, job.ID)
	if err != nil {
		panic(err)
	}
	return booked
}

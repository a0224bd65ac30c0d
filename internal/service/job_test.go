package service

import (
	"context"
	"errors"
	"testing"

	"prereno-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJob_PricesAndPersistsDraft(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job, breakdown, err := env.svc.CreateJob(ctx, CreateJobInput{
		ClientID:    "client-1",
		Title:       "Leaky kitchen faucet",
		Description: "Dripping since Tuesday",
		Category:    "plumbing",
		City:        "Portland",
		PostalCode:  "97201",
		PhotoRefs:   []string{"photos/faucet.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, storage.StatusDraft, job.Status)
	assert.Equal(t, []string{"faucet_leak"}, job.Tags)
	assert.NotEmpty(t, job.ScopeText)
	assert.NotEmpty(t, job.ID)

	assert.Equal(t, int64(18240), breakdown.ProviderNetCents)
	assert.Equal(t, int64(22800), breakdown.ClientPriceCents)
	assert.Equal(t, int64(22800), job.ClientPriceCents)
	assert.Equal(t, int64(20520), job.CostMinCents)
	assert.Equal(t, int64(25080), job.CostMaxCents)

	stored, err := env.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDraft, stored.Status)
}

func TestCreateJob_InputValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	base := CreateJobInput{
		ClientID:   "client-1",
		Title:      "Leaky faucet",
		Category:   "plumbing",
		City:       "Portland",
		PostalCode: "97201",
		PhotoRefs:  []string{"photos/faucet.jpg"},
	}

	bogus := base
	bogus.Category = "timetravel"
	_, _, err := env.svc.CreateJob(ctx, bogus)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	noPhotos := base
	noPhotos.PhotoRefs = nil
	_, _, err = env.svc.CreateJob(ctx, noPhotos)
	assert.Error(t, err)

	renter := base
	renter.RenterFlag = true
	_, _, err = env.svc.CreateJob(ctx, renter)
	assert.Error(t, err)

	landlord := "landlord-1"
	renter.LandlordID = &landlord
	_, _, err = env.svc.CreateJob(ctx, renter)
	assert.NoError(t, err)
}

func TestCreateJob_MissingCostFactors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, _, err := env.svc.CreateJob(ctx, CreateJobInput{
		ClientID:   "client-1",
		Title:      "Leaky faucet",
		Category:   "plumbing",
		City:       "New York",
		PostalCode: "10001",
		PhotoRefs:  []string{"photos/faucet.jpg"},
	})

	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestCreateJob_DetectorFailure(t *testing.T) {
	env := newTestEnv()
	env.detector.err = errors.New("vision service down")

	_, _, err := env.svc.CreateJob(context.Background(), CreateJobInput{
		ClientID:   "client-1",
		Title:      "Leaky faucet",
		Category:   "plumbing",
		City:       "Portland",
		PostalCode: "97201",
		PhotoRefs:  []string{"photos/faucet.jpg"},
	})

	assert.Error(t, err)
}

func TestJobLifecycle_AcceptThroughApproval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.bookedJob(ctx)

	accepted, err := env.svc.AcceptOffer(ctx, job.ID, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAccepted, accepted.Status)

	scheduled, err := env.svc.ConfirmPayment(ctx, job.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusScheduled, scheduled.Status)

	reviewed, err := env.svc.CompleteJob(ctx, job.ID, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusReadyForReview, reviewed.Status)

	done, err := env.svc.ApproveJob(ctx, job.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	releases := env.processor.callsFor("release")
	require.Len(t, releases, 1)
	assert.Equal(t, done.ProviderNetCents, releases[0].amountCents)
}

func TestConfirmPayment_Guards(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.createDraft(ctx)

	_, err := env.svc.ConfirmPayment(ctx, job.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotJobOwner)

	// Draft jobs have no capture to confirm.
	_, err = env.svc.ConfirmPayment(ctx, job.ID, "client-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteJob_OnlyAcceptedProvider(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.bookedJob(ctx)
	_, err := env.svc.AcceptOffer(ctx, job.ID, "prov-1")
	require.NoError(t, err)
	_, err = env.svc.ConfirmPayment(ctx, job.ID, "client-1")
	require.NoError(t, err)

	// prov-2 holds an expired offer, not the accept.
	_, err = env.svc.CompleteJob(ctx, job.ID, "prov-2")
	assert.Error(t, err)

	_, err = env.svc.CompleteJob(ctx, job.ID, "prov-1")
	assert.NoError(t, err)
}

func TestCancelJob_DraftNoRefund(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.createDraft(ctx)

	cancelled, refund, err := env.svc.CancelJob(ctx, job.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(0), refund.RefundAmountCents)
	assert.Empty(t, env.processor.callsFor("refund"))
}

func TestCancelJob_AfterAcceptRefundsLessLateFee(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.bookedJob(ctx)
	accepted, err := env.svc.AcceptOffer(ctx, job.ID, "prov-1")
	require.NoError(t, err)

	// Accept schedules the visit 24h out, which is inside the free-cancel
	// window, so the flat late fee applies.
	cancelled, refund, err := env.svc.CancelJob(ctx, job.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCancelled, cancelled.Status)
	assert.Equal(t, accepted.ClientPriceCents-2500, refund.RefundAmountCents)
	assert.Equal(t, int64(2500), refund.ServiceFeeCents)

	refunds := env.processor.callsFor("refund")
	require.Len(t, refunds, 1)
	assert.Equal(t, refund.RefundAmountCents, refunds[0].amountCents)
}

func TestCancelJob_TerminalJobRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := env.createDraft(ctx)
	_, _, err := env.svc.CancelJob(ctx, job.ID, "client-1")
	require.NoError(t, err)

	_, _, err = env.svc.CancelJob(ctx, job.ID, "client-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEstimateCost(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	estimate, err := env.svc.EstimateCost(ctx, "97201", "plumbing")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), estimate.LaborRateCentsPerHour)
	assert.Equal(t, int64(15000), estimate.TypicalMinCents)
	assert.Equal(t, int64(75000), estimate.TypicalMaxCents)

	_, err = env.svc.EstimateCost(ctx, "10001", "plumbing")
	assert.ErrorIs(t, err, storage.ErrNotConfigured)

	_, err = env.svc.EstimateCost(ctx, "97201", "timetravel")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

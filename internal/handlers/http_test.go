package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prereno-backend/internal/notify"
	"prereno-backend/internal/service"
	"prereno-backend/internal/storage"
	"prereno-backend/internal/vision"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct{}

func (stubDetector) Analyze(ctx context.Context, photoRefs []string) (*vision.Analysis, error) {
	return &vision.Analysis{Tags: []string{"faucet_leak"}, Confidence: 0.9}, nil
}

type stubNotifier struct{}

func (stubNotifier) NotifyProvider(ctx context.Context, n *notify.OfferNotification) error {
	return nil
}

type stubProcessor struct{}

func (stubProcessor) Capture(ctx context.Context, jobID string, amountCents int64) error { return nil }
func (stubProcessor) Release(ctx context.Context, jobID string, amountCents int64) error { return nil }
func (stubProcessor) Refund(ctx context.Context, jobID string, amountCents int64) error  { return nil }

func newTestRouter(t *testing.T) (*mux.Router, *service.OfferTokenSigner) {
	t.Helper()

	costs := storage.NewMemoryCostFactorStorage([]*storage.CostFactors{
		{
			LocationKey:           "97201",
			Category:              "plumbing",
			LaborRateCentsPerHour: 8000,
			MaterialMultiplier:    1.3,
			MinimumJobCents:       15000,
		},
	})
	providers := storage.NewMemoryProviderStorage()
	providers.PutProvider(&storage.Provider{
		ID: "prov-1", Name: "Pat's Plumbing", Email: "pat@example.com",
		Verified: true, LicensePrefix: "97",
	})
	providers.PutProvider(&storage.Provider{
		ID: "prov-2", Name: "Rose City Repairs", Email: "rose@example.com",
		Verified: true, LicensePrefix: "97",
	})

	signer := service.NewOfferTokenSigner([]byte("test-secret"), 15*time.Minute)
	jobService := service.NewJobService(
		storage.NewMemoryJobStorage(),
		storage.NewMemoryOfferStorage(),
		costs,
		providers,
		stubDetector{},
		stubNotifier{},
		stubProcessor{},
		signer,
		"https://app.test",
	)

	router := mux.NewRouter()
	NewHTTPHandler(jobService, signer).RegisterRoutes(router)
	return router, signer
}

func doJSON(t *testing.T, router *mux.Router, method, path, clientID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createTestJob(t *testing.T, router *mux.Router) map[string]interface{} {
	t.Helper()

	rr := doJSON(t, router, "POST", "/jobs", "client-1", map[string]interface{}{
		"title":       "Leaky kitchen faucet",
		"description": "Dripping since Tuesday",
		"category":    "plumbing",
		"city":        "Portland",
		"postal_code": "97201",
		"photo_refs":  []string{"photos/faucet.jpg"},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp["job"].(map[string]interface{})
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestCreateJobEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/jobs", "client-1", map[string]interface{}{
		"title":       "Leaky kitchen faucet",
		"category":    "plumbing",
		"city":        "Portland",
		"postal_code": "97201",
		"photo_refs":  []string{"photos/faucet.jpg"},
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Job     storage.Job            `json:"job"`
		Pricing service.PriceBreakdown `json:"pricing"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, storage.StatusDraft, resp.Job.Status)
	assert.Equal(t, int64(22800), resp.Pricing.ClientPriceCents)
}

func TestCreateJobEndpoint_RequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/jobs", "", map[string]interface{}{
		"title":       "Leaky faucet",
		"category":    "plumbing",
		"postal_code": "97201",
		"photo_refs":  []string{"photos/faucet.jpg"},
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateJobEndpoint_UnpricedArea(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/jobs", "client-1", map[string]interface{}{
		"title":       "Leaky faucet",
		"category":    "plumbing",
		"postal_code": "10001",
		"photo_refs":  []string{"photos/faucet.jpg"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestGetJobEndpoint_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "GET", "/jobs/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBookJobEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	job := createTestJob(t, router)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", job["id"]), "client-1", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		OffersSent int `json:"offers_sent"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.OffersSent)
}

func TestBookJobEndpoint_WrongOwner(t *testing.T) {
	router, _ := newTestRouter(t)
	job := createTestJob(t, router)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", job["id"]), "client-2", nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAcceptOfferEndpoint(t *testing.T) {
	router, signer := newTestRouter(t)
	job := createTestJob(t, router)
	jobID := job["id"].(string)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := signer.Sign(jobID, "prov-1")
	require.NoError(t, err)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/accept", token), "", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Job storage.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, storage.StatusAccepted, resp.Job.Status)
}

func TestAcceptOfferEndpoint_SecondProviderConflicts(t *testing.T) {
	router, signer := newTestRouter(t)
	job := createTestJob(t, router)
	jobID := job["id"].(string)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	first, err := signer.Sign(jobID, "prov-1")
	require.NoError(t, err)
	second, err := signer.Sign(jobID, "prov-2")
	require.NoError(t, err)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/accept", first), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/accept", second), "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAcceptOfferEndpoint_BadToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/offers/not-a-token/accept", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCounterOfferEndpoint_OutOfRange(t *testing.T) {
	router, signer := newTestRouter(t)
	job := createTestJob(t, router)
	jobID := job["id"].(string)
	providerNet := int64(job["provider_net_cents"].(float64))

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := signer.Sign(jobID, "prov-1")
	require.NoError(t, err)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/counter", token), "", map[string]interface{}{
		"counter_net_cents": providerNet * 2,
	})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp struct {
		Range struct {
			MinNetCents int64 `json:"min_net_cents"`
			MaxNetCents int64 `json:"max_net_cents"`
		} `json:"range"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Greater(t, resp.Range.MaxNetCents, resp.Range.MinNetCents)
}

func TestCounterOfferEndpoint_AutoApproved(t *testing.T) {
	router, signer := newTestRouter(t)
	job := createTestJob(t, router)
	jobID := job["id"].(string)
	providerNet := int64(job["provider_net_cents"].(float64))

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := signer.Sign(jobID, "prov-1")
	require.NoError(t, err)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/counter", token), "", map[string]interface{}{
		"counter_net_cents": providerNet + providerNet/20,
	})

	require.Equal(t, http.StatusOK, rr.Code)

	var result service.CounterResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.AutoApproved)
}

func TestCompleteJobEndpoint_ProviderHeader(t *testing.T) {
	router, signer := newTestRouter(t)
	job := createTestJob(t, router)
	jobID := job["id"].(string)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/book", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := signer.Sign(jobID, "prov-1")
	require.NoError(t, err)
	rr = doJSON(t, router, "POST", fmt.Sprintf("/offers/%s/accept", token), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/payment/confirm", jobID), "client-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// No identity header at all.
	req := httptest.NewRequest("POST", fmt.Sprintf("/jobs/%s/complete", jobID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The accepted provider completes via the header the auth proxy sets.
	req = httptest.NewRequest("POST", fmt.Sprintf("/jobs/%s/complete", jobID), nil)
	req.Header.Set("X-Provider-ID", "prov-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var completed storage.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, storage.StatusReadyForReview, completed.Status)
}

func TestCancelJobEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	job := createTestJob(t, router)

	rr := doJSON(t, router, "POST", fmt.Sprintf("/jobs/%s/cancel", job["id"]), "client-1", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Job    storage.Job    `json:"job"`
		Refund service.Refund `json:"refund"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, storage.StatusCancelled, resp.Job.Status)
	assert.Equal(t, int64(0), resp.Refund.RefundAmountCents)
}

func TestEstimateCostEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "GET", "/cost/97201/plumbing", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var estimate service.CostEstimate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &estimate))
	assert.Equal(t, int64(15000), estimate.TypicalMinCents)
	assert.Equal(t, int64(75000), estimate.TypicalMaxCents)

	rr = doJSON(t, router, "GET", "/cost/10001/plumbing", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, router, "GET", "/cost/97201/timetravel", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

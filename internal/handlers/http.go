package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"prereno-backend/internal/service"
	"prereno-backend/internal/storage"

	"github.com/gorilla/mux"
)

// HTTPHandler handles HTTP requests for the marketplace backend. Identity
// arrives in headers set by the auth proxy in front of this service
// (X-Client-ID for clients, X-Provider-ID for providers); offer actions
// authenticate with the signed offer token in the URL instead.
type HTTPHandler struct {
	jobService *service.JobService
	tokens     *service.OfferTokenSigner
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(jobService *service.JobService, tokens *service.OfferTokenSigner) *HTTPHandler {
	return &HTTPHandler{
		jobService: jobService,
		tokens:     tokens,
	}
}

// RegisterRoutes sets up HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")

	router.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	router.HandleFunc("/jobs", h.GetJobs).Methods("GET")
	router.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	router.HandleFunc("/jobs/{id}/offers", h.GetJobOffers).Methods("GET")
	router.HandleFunc("/jobs/{id}/book", h.BookJob).Methods("POST")
	router.HandleFunc("/jobs/{id}/payment/confirm", h.ConfirmPayment).Methods("POST")
	router.HandleFunc("/jobs/{id}/complete", h.CompleteJob).Methods("POST")
	router.HandleFunc("/jobs/{id}/approve", h.ApproveJob).Methods("POST")
	router.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")

	router.HandleFunc("/offers/{token}/accept", h.AcceptOffer).Methods("POST")
	router.HandleFunc("/offers/{token}/counter", h.CounterOffer).Methods("POST")
	router.HandleFunc("/offers/{token}/decline", h.DeclineOffer).Methods("POST")

	router.HandleFunc("/cost/{location}/{category}", h.EstimateCost).Methods("GET")
}

// Health returns service health status
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateJobRequest represents a job creation request
type CreateJobRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	City           string   `json:"city"`
	PostalCode     string   `json:"postal_code"`
	PhotoRefs      []string `json:"photo_refs"`
	RushFlag       bool     `json:"rush_flag"`
	AfterHoursFlag bool     `json:"after_hours_flag"`
	RenterFlag     bool     `json:"renter_flag"`
	LandlordID     *string  `json:"landlord_id,omitempty"`
}

// CreateJob prices a new repair request and stores it as a draft.
func (h *HTTPHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing client identity")
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" || req.Category == "" || req.PostalCode == "" {
		writeError(w, http.StatusBadRequest, "title, category and postal_code are required")
		return
	}

	job, breakdown, err := h.jobService.CreateJob(r.Context(), service.CreateJobInput{
		ClientID:       clientID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		City:           req.City,
		PostalCode:     req.PostalCode,
		PhotoRefs:      req.PhotoRefs,
		RushFlag:       req.RushFlag,
		AfterHoursFlag: req.AfterHoursFlag,
		RenterFlag:     req.RenterFlag,
		LandlordID:     req.LandlordID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"job":     job,
		"pricing": breakdown,
	})
}

// GetJobs lists jobs, optionally filtered with ?status=.
func (h *HTTPHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := storage.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		jobs, err := h.jobService.GetJobsByStatus(r.Context(), status)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
		return
	}

	jobs, err := h.jobService.GetAllJobs(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob retrieves a specific job
func (h *HTTPHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobOffers lists the offer audit trail for a job.
func (h *HTTPHandler) GetJobOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.jobService.GetOffersByJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

// BookJob broadcasts a draft job to eligible providers.
func (h *HTTPHandler) BookJob(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing client identity")
		return
	}

	sent, err := h.jobService.BookJob(r.Context(), mux.Vars(r)["id"], clientID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "job booked",
		"offers_sent": sent,
	})
}

// AcceptOffer handles a provider's accept via the signed offer token.
func (h *HTTPHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.offerClaims(w, r)
	if !ok {
		return
	}

	job, err := h.jobService.AcceptOffer(r.Context(), claims.JobID, claims.ProviderID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "offer accepted",
		"job":     job,
	})
}

// CounterOfferRequest carries the provider's proposed net payout.
type CounterOfferRequest struct {
	CounterNetCents int64 `json:"counter_net_cents"`
}

// CounterOffer handles a provider's counter via the signed offer token.
func (h *HTTPHandler) CounterOffer(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.offerClaims(w, r)
	if !ok {
		return
	}

	var req CounterOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CounterNetCents <= 0 {
		writeError(w, http.StatusBadRequest, "counter_net_cents is required and must be positive")
		return
	}

	result, err := h.jobService.CounterOffer(r.Context(), claims.JobID, claims.ProviderID, req.CounterNetCents)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DeclineOffer handles a provider's decline via the signed offer token.
func (h *HTTPHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.offerClaims(w, r)
	if !ok {
		return
	}

	if err := h.jobService.DeclineOffer(r.Context(), claims.JobID, claims.ProviderID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "offer declined"})
}

// ConfirmPayment moves an accepted job to scheduled.
func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing client identity")
		return
	}

	job, err := h.jobService.ConfirmPayment(r.Context(), mux.Vars(r)["id"], clientID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CompleteJob marks scheduled work ready for the client's review. Provider
// identity arrives in the X-Provider-ID header set by the auth proxy, same
// as X-Client-ID on the client routes.
func (h *HTTPHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	providerID := r.Header.Get("X-Provider-ID")
	if providerID == "" {
		writeError(w, http.StatusUnauthorized, "missing provider identity")
		return
	}

	job, err := h.jobService.CompleteJob(r.Context(), mux.Vars(r)["id"], providerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ApproveJob records the client's sign-off and releases the payout.
func (h *HTTPHandler) ApproveJob(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing client identity")
		return
	}

	job, err := h.jobService.ApproveJob(r.Context(), mux.Vars(r)["id"], clientID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob cancels a job and reports the refund.
func (h *HTTPHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing client identity")
		return
	}

	job, refund, err := h.jobService.CancelJob(r.Context(), mux.Vars(r)["id"], clientID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":    job,
		"refund": refund,
	})
}

// EstimateCost serves the public cost guide.
func (h *HTTPHandler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	estimate, err := h.jobService.EstimateCost(r.Context(), vars["location"], vars["category"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// offerClaims verifies the offer action token from the URL.
func (h *HTTPHandler) offerClaims(w http.ResponseWriter, r *http.Request) (*service.OfferTokenClaims, bool) {
	claims, err := h.tokens.Verify(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired offer token")
		return nil, false
	}
	return claims, true
}

// writeServiceError maps domain errors onto HTTP status codes.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	var rangeErr *service.CounterRangeError
	switch {
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "counter offer outside acceptable range",
			"range": map[string]int64{
				"min_net_cents": rangeErr.MinNetCents,
				"max_net_cents": rangeErr.MaxNetCents,
			},
		})
	case errors.Is(err, service.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "job no longer available")
	case errors.Is(err, service.ErrOfferExpired):
		writeError(w, http.StatusGone, "offer expired")
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, storage.ErrTransitionNotAllowed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotJobOwner):
		writeError(w, http.StatusForbidden, "job does not belong to caller")
	case errors.Is(err, service.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, "cost data not available for this area")
	case errors.Is(err, storage.ErrJobNotFound), errors.Is(err, storage.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/validation"
)

// FundFlowHandler handles HTTP requests for fund-flow endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the fundFlowService.
type FundFlowHandler struct {
	fundFlowService *service.FundFlowService
}

// NewFundFlowHandler creates a new FundFlowHandler with the provided service dependency.
func NewFundFlowHandler(fundFlowService *service.FundFlowService) *FundFlowHandler {
	return &FundFlowHandler{fundFlowService: fundFlowService}
}

// Submit handles POST requests to create a new pending request.
//
// Endpoint: POST /api/fund-flow
// Response: 201 Created with the new request
// Error: 400 Bad Request if the payload fails validation
// Error: 404 Not Found if the investor does not exist
func (h *FundFlowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitFundFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateSubmitFundFlow(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	effectiveDate, err := parseDateOrToday(req.EffectiveDate)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid effective date", err.Error())
		return
	}

	flow, err := h.fundFlowService.Submit(r.Context(), req.InvestorID, req.FlowType, amount, effectiveDate)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, flow)
}

// Get handles GET requests for a single request.
//
// Endpoint: GET /api/fund-flow/{uuid}
func (h *FundFlowHandler) Get(w http.ResponseWriter, r *http.Request) {
	flow, err := h.fundFlowService.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, flow)
}

// ListByStatus handles GET requests for requests in a given state.
//
// Endpoint: GET /api/fund-flow?status=pending
func (h *FundFlowHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		response.RespondError(w, http.StatusBadRequest, "status query parameter is required", nil)
		return
	}

	flows, err := h.fundFlowService.ListByStatus(r.Context(), status)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, flows)
}

// Approve handles POST requests for the pending -> approved transition.
//
// Endpoint: POST /api/fund-flow/{uuid}/approve
// Error: 409 Conflict if the request is not pending
func (h *FundFlowHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fundFlowService.Approve)
}

// Reject handles POST requests for the pending -> rejected transition.
//
// Endpoint: POST /api/fund-flow/{uuid}/reject
func (h *FundFlowHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fundFlowService.Reject)
}

// AwaitFunds handles POST requests for the approved -> awaiting_funds transition.
//
// Endpoint: POST /api/fund-flow/{uuid}/await-funds
func (h *FundFlowHandler) AwaitFunds(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fundFlowService.MarkAwaitingFunds)
}

// Match handles POST requests to bind a request to a raw brokerage transaction.
//
// Endpoint: POST /api/fund-flow/{uuid}/match
// Response: 200 OK with the matched request (idempotent for the same raw transaction)
// Error: 409 Conflict if already matched to a different transaction, or the
// transaction already evidences another request
func (h *FundFlowHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req request.MatchFundFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateMatchFundFlow(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	flow, err := h.fundFlowService.Match(r.Context(), chi.URLParam(r, "uuid"), req.RawTransactionID)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, flow)
}

// Process handles POST requests to settle a matched request.
//
// Endpoint: POST /api/fund-flow/{uuid}/process
// Response: 200 OK with the processed request; repeated calls return the
// stored result without posting again
// Error: 409 Conflict if the request is not matched
// Error: 422 Unprocessable Entity if a withdrawal exceeds the position value
func (h *FundFlowHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fundFlowService.Process)
}

// Cancel handles POST requests to abandon an unprocessed request.
//
// Endpoint: POST /api/fund-flow/{uuid}/cancel
// Error: 409 Conflict if the request is already processed or terminal
func (h *FundFlowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fundFlowService.Cancel)
}

// transition runs one status transition and writes the updated request.
func (h *FundFlowHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, requestID string) (*model.FundFlowRequest, error),
) {
	flow, err := fn(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, flow)
}

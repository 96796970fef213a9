package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

// InvestorHandler handles HTTP requests for investor endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the investorService.
type InvestorHandler struct {
	investorService *service.InvestorService
	ledgerService   *service.LedgerService
	taxService      *service.TaxService
}

// NewInvestorHandler creates a new InvestorHandler with the provided service dependencies.
func NewInvestorHandler(
	investorService *service.InvestorService,
	ledgerService *service.LedgerService,
	taxService *service.TaxService,
) *InvestorHandler {
	return &InvestorHandler{
		investorService: investorService,
		ledgerService:   ledgerService,
		taxService:      taxService,
	}
}

// Investors handles GET requests to retrieve all investors.
//
// Endpoint: GET /api/investor
// Response: 200 OK with array of investors
func (h *InvestorHandler) Investors(w http.ResponseWriter, r *http.Request) {
	investors, err := h.investorService.List(r.Context())
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, investors)
}

// CreateInvestor handles POST requests to register a new investor.
//
// Endpoint: POST /api/investor
// Response: 201 Created with the new investor
// Error: 400 Bad Request if the payload is invalid
func (h *InvestorHandler) CreateInvestor(w http.ResponseWriter, r *http.Request) {
	var req request.CreateInvestorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.RespondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	investor, err := h.investorService.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, investor)
}

// Investor handles GET requests for a single investor.
//
// Endpoint: GET /api/investor/{uuid}
// Error: 404 Not Found if the investor does not exist
func (h *InvestorHandler) Investor(w http.ResponseWriter, r *http.Request) {
	investor, err := h.investorService.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, investor)
}

// EligibleWithdrawal handles GET requests for the after-tax withdrawal preview.
//
// Endpoint: GET /api/investor/{uuid}/eligible-withdrawal?date=YYYY-MM-DD
// Response: 200 OK with the projection at the NAV in force on the date
func (h *InvestorHandler) EligibleWithdrawal(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateOrToday(r.URL.Query().Get("date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	preview, err := h.investorService.EligibleWithdrawal(r.Context(), chi.URLParam(r, "uuid"), asOf)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, preview)
}

// InvestorLedger handles GET requests for an investor's posting history.
//
// Endpoint: GET /api/investor/{uuid}/ledger
func (h *InvestorHandler) InvestorLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledgerService.EntriesForInvestor(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, entries)
}

// InvestorTaxEvents handles GET requests for an investor's tax events.
//
// Endpoint: GET /api/investor/{uuid}/tax-events
func (h *InvestorHandler) InvestorTaxEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.taxService.EventsForInvestor(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, events)
}

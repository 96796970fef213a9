package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/validation"
)

// LedgerHandler handles HTTP requests for ledger endpoints.
type LedgerHandler struct {
	ledgerService *service.LedgerService
	navService    *service.NavService
}

// NewLedgerHandler creates a new LedgerHandler with the provided service dependencies.
func NewLedgerHandler(ledgerService *service.LedgerService, navService *service.NavService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, navService: navService}
}

// Post handles POST requests for direct administrative postings outside the
// fund-flow pipeline. When navPerShare is omitted it defaults to the NAV in
// force on the entry date.
//
// Endpoint: POST /api/ledger
// Response: 201 Created with the posted entry
// Error: 422 Unprocessable Entity if a withdrawal exceeds the position value
func (h *LedgerHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req request.PostLedgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidatePostLedgerEntry(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	var navPerShare decimal.Decimal
	if req.NavPerShare != "" {
		navPerShare, _ = decimal.NewFromString(req.NavPerShare)
	} else {
		nav, err := h.navService.NavAsOf(r.Context(), date)
		if errors.Is(err, apperrors.ErrNavRecordNotFound) {
			response.RespondError(w, http.StatusUnprocessableEntity, "no nav published on or before the entry date", nil)
			return
		}
		if err != nil {
			response.RespondServiceError(w, err)
			return
		}
		navPerShare = nav.NavPerShare
	}

	entry, err := h.ledgerService.Post(r.Context(), req.InvestorID, req.Kind, amount, navPerShare, date)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, entry)
}

// Get handles GET requests for a single entry.
//
// Endpoint: GET /api/ledger/{uuid}
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerService.GetEntry(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, entry)
}

// Reverse handles POST requests to post the negating counterpart of an entry.
//
// Endpoint: POST /api/ledger/{uuid}/reverse
// Response: 201 Created with the reversal entry
// Error: 409 Conflict if the entry is itself a reversal or already reversed
func (h *LedgerHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req request.ReverseLedgerEntryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	date, err := parseDateOrToday(req.Date)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	reversal, err := h.ledgerService.Reverse(r.Context(), chi.URLParam(r, "uuid"), date)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, reversal)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/validation"
)

// NavHandler handles HTTP requests for NAV endpoints.
type NavHandler struct {
	navService *service.NavService
	taxService *service.TaxService
}

// NewNavHandler creates a new NavHandler with the provided service dependencies.
func NewNavHandler(navService *service.NavService, taxService *service.TaxService) *NavHandler {
	return &NavHandler{navService: navService, taxService: taxService}
}

// Compute handles POST requests to value the fund for one trading date.
//
// Endpoint: POST /api/nav/compute
// Response: 201 Created with the new record
// Error: 409 Conflict if a record already exists for the date
// Error: 422 Unprocessable Entity if the computed NAV is invalid
// Error: 502 Bad Gateway if the valuation source is unavailable
func (h *NavHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req request.ComputeNavRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if err := validation.ValidateComputeNav(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	date, err := parseDateOrToday(req.Date)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	record, err := h.navService.ComputeAndStore(r.Context(), date)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, record)
}

// AsOf handles GET requests for the NAV in force on a date.
//
// Endpoint: GET /api/nav?date=YYYY-MM-DD
// Response: 200 OK with the latest record on or before the date
// Error: 404 Not Found if no record exists on or before the date
func (h *NavHandler) AsOf(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateOrToday(r.URL.Query().Get("date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	record, err := h.navService.NavAsOf(r.Context(), date)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, record)
}

// History handles GET requests for records within a date range.
//
// Endpoint: GET /api/nav/history?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *NavHandler) History(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid start date", err.Error())
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid end date", err.Error())
		return
	}

	records, err := h.navService.History(r.Context(), start, end)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, records)
}

// AdminUpdate handles PUT requests to correct an existing record's valuation.
//
// Endpoint: PUT /api/nav/{date}
// Response: 200 OK with the corrected record
// Error: 404 Not Found if no record exists for the date
func (h *NavHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", dateParam(r))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	var req request.AdminNavUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateAdminNavUpdate(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	portfolioValue, _ := decimal.NewFromString(req.PortfolioValue)

	record, err := h.navService.AdminUpdate(r.Context(), date, portfolioValue)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, record)
}

// QuarterlyTaxSummary handles GET requests for a settlement quarter's totals.
//
// Endpoint: GET /api/tax/quarterly?year=2026&quarter=3
func (h *NavHandler) QuarterlyTaxSummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}
	quarter, err := strconv.Atoi(r.URL.Query().Get("quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		response.RespondError(w, http.StatusBadRequest, "quarter must be 1-4", nil)
		return
	}

	summary, err := h.taxService.QuarterlySummary(r.Context(), year, quarter)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, summary)
}

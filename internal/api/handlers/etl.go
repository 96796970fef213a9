package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/validation"
)

// EtlHandler handles HTTP requests for reconciliation endpoints.
type EtlHandler struct {
	etlService *service.EtlService
}

// NewEtlHandler creates a new EtlHandler with the provided service dependency.
func NewEtlHandler(etlService *service.EtlService) *EtlHandler {
	return &EtlHandler{etlService: etlService}
}

// Run handles POST requests to execute the extract/transform/load pipeline
// over a date window.
//
// Endpoint: POST /api/etl/run
// Response: 200 OK with the run summary, including per-row transform errors
// Error: 404 Not Found if the named source is not registered
// Error: 502 Bad Gateway if extraction from the brokerage fails
func (h *EtlHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req request.RunEtlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateRunEtl(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)

	var result *model.EtlResult
	var err error
	if req.Source == "" {
		result, err = h.etlService.RunAll(r.Context(), start, end)
	} else {
		result, err = h.etlService.Run(r.Context(), req.Source, start, end)
	}
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

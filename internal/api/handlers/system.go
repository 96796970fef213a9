package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/api/response"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

// SystemHandler handles HTTP requests for system endpoints.
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler with the provided service dependency.
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{systemService: systemService}
}

// Health handles GET requests for liveness checks.
//
// Endpoint: GET /api/system/health
// Response: 200 OK with {"status":"ok"}
// Error: 503 Service Unavailable if the database is unreachable
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	if err := h.systemService.Health(); err != nil {
		response.RespondError(w, http.StatusServiceUnavailable, "database unreachable", err.Error())
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version handles GET requests for build information.
//
// Endpoint: GET /api/system/version
func (h *SystemHandler) Version(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.systemService.Version())
}

// UpsertProviderConfig handles PUT requests to store brokerage credentials.
//
// Endpoint: PUT /api/system/provider/{source}
// Response: 200 OK with the stored configuration (token omitted)
func (h *SystemHandler) UpsertProviderConfig(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	var req request.UpsertProviderConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg := &model.ProviderConfig{
		Source:  source,
		Token:   req.Token,
		QueryID: req.QueryID,
		Enabled: req.Enabled,
	}
	if req.TokenExpiresAt != "" {
		expires, err := time.Parse("2006-01-02", req.TokenExpiresAt)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid tokenExpiresAt", err.Error())
			return
		}
		cfg.TokenExpiresAt = &expires
	}

	if err := h.systemService.UpsertProviderConfig(r.Context(), cfg); err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, cfg)
}

// GetProviderConfig handles GET requests for stored provider settings.
//
// Endpoint: GET /api/system/provider/{source}
func (h *SystemHandler) GetProviderConfig(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	cfg, err := h.systemService.GetProviderConfig(r.Context(), source)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, cfg)
}

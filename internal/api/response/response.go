package response

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// RespondError sends an error response with the given status code
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	RespondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// RespondServiceError maps domain errors onto HTTP statuses: missing entities
// to 404, state and uniqueness conflicts to 409, rejected business operations
// to 422, upstream provider failures to 502, everything else to 500.
func RespondServiceError(w http.ResponseWriter, err error) {
	var (
		insufficientShares *apperrors.InsufficientSharesError
		invalidNav         *apperrors.InvalidNavError
		invalidTransition  *apperrors.InvalidStateTransitionError
		matchConflict      *apperrors.MatchConflictError
	)

	switch {
	case errors.Is(err, apperrors.ErrInvestorNotFound),
		errors.Is(err, apperrors.ErrNavRecordNotFound),
		errors.Is(err, apperrors.ErrLedgerEntryNotFound),
		errors.Is(err, apperrors.ErrFundFlowNotFound),
		errors.Is(err, apperrors.ErrRawTransactionNotFound),
		errors.Is(err, apperrors.ErrTaxEventNotFound),
		errors.Is(err, apperrors.ErrProviderConfigNotFound),
		errors.Is(err, apperrors.ErrUnknownSource):
		RespondError(w, http.StatusNotFound, err.Error(), nil)

	case errors.As(err, &invalidTransition),
		errors.As(err, &matchConflict),
		errors.Is(err, apperrors.ErrRawTransactionMatched),
		errors.Is(err, apperrors.ErrDuplicateNavDate),
		errors.Is(err, apperrors.ErrDuplicateEntry),
		errors.Is(err, apperrors.ErrCancelProcessed),
		errors.Is(err, apperrors.ErrReversalOfReversal):
		RespondError(w, http.StatusConflict, err.Error(), nil)

	case errors.As(err, &insufficientShares),
		errors.As(err, &invalidNav),
		errors.Is(err, apperrors.ErrNegativeAmount),
		errors.Is(err, apperrors.ErrInvalidFlowType),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrEmptyID):
		RespondError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, apperrors.ErrValuationSourceUnavailable):
		RespondError(w, http.StatusBadGateway, err.Error(), nil)

	default:
		RespondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

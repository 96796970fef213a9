package validation

import (
	"strings"
	"time"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
)

// ValidateRunEtl checks a reconciliation run payload.
func ValidateRunEtl(req request.RunEtlRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.StartDate) == "" {
		errs["startDate"] = "start date is required"
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		errs["startDate"] = err.Error()
	}

	if strings.TrimSpace(req.EndDate) == "" {
		errs["endDate"] = "end date is required"
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		errs["endDate"] = err.Error()
	}

	if len(errs) == 0 && end.Before(start) {
		errs["endDate"] = "end date precedes start date"
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

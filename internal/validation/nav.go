package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
)

// ValidateComputeNav checks a nav computation payload.
func ValidateComputeNav(req request.ComputeNavRequest) error {
	errs := make(map[string]string)

	if req.Date != "" {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			errs["date"] = err.Error()
		}
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

// ValidateAdminNavUpdate checks a nav correction payload.
func ValidateAdminNavUpdate(req request.AdminNavUpdateRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.PortfolioValue) == "" {
		errs["portfolioValue"] = "portfolio value is required"
	} else if _, err := decimal.NewFromString(req.PortfolioValue); err != nil {
		errs["portfolioValue"] = "portfolio value is not a valid number"
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

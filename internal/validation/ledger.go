package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// ValidatePostLedgerEntry checks a direct ledger posting payload.
func ValidatePostLedgerEntry(req request.PostLedgerEntryRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.InvestorID) == "" {
		errs["investorId"] = "investor id is required"
	} else if err := ValidateUUID(req.InvestorID); err != nil {
		errs["investorId"] = err.Error()
	}

	switch req.Kind {
	case model.EntryInitial, model.EntryContribution, model.EntryWithdrawal:
	default:
		errs["kind"] = "must be initial, contribution or withdrawal"
	}

	if strings.TrimSpace(req.Amount) == "" {
		errs["amount"] = "amount is required"
	} else if amount, err := decimal.NewFromString(req.Amount); err != nil {
		errs["amount"] = "amount is not a valid number"
	} else if !amount.IsPositive() {
		errs["amount"] = "amount must be positive"
	}

	if req.NavPerShare != "" {
		if nav, err := decimal.NewFromString(req.NavPerShare); err != nil {
			errs["navPerShare"] = "nav per share is not a valid number"
		} else if !nav.IsPositive() {
			errs["navPerShare"] = "nav per share must be positive"
		}
	}

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

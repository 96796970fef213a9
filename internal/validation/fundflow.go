package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// ValidateSubmitFundFlow checks a fund-flow submission payload.
func ValidateSubmitFundFlow(req request.SubmitFundFlowRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.InvestorID) == "" {
		errs["investorId"] = "investor id is required"
	} else if err := ValidateUUID(req.InvestorID); err != nil {
		errs["investorId"] = err.Error()
	}

	if req.FlowType != model.FlowContribution && req.FlowType != model.FlowWithdrawal {
		errs["flowType"] = "must be contribution or withdrawal"
	}

	if strings.TrimSpace(req.Amount) == "" {
		errs["amount"] = "amount is required"
	} else if amount, err := decimal.NewFromString(req.Amount); err != nil {
		errs["amount"] = "amount is not a valid number"
	} else if !amount.IsPositive() {
		errs["amount"] = "amount must be positive"
	}

	if req.EffectiveDate != "" {
		if _, err := time.Parse("2006-01-02", req.EffectiveDate); err != nil {
			errs["effectiveDate"] = err.Error()
		}
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

// ValidateMatchFundFlow checks a fund-flow match payload.
func ValidateMatchFundFlow(req request.MatchFundFlowRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.RawTransactionID) == "" {
		errs["rawTransactionId"] = "raw transaction id is required"
	} else if err := ValidateUUID(req.RawTransactionID); err != nil {
		errs["rawTransactionId"] = err.Error()
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Investor is an identity plus two running aggregates maintained exclusively by
// the share ledger: current share balance and cumulative cost basis.
type Investor struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	CurrentShares decimal.Decimal `json:"currentShares"` // 4 dp, never negative
	NetInvestment decimal.Decimal `json:"netInvestment"` // money; contributions minus withdrawn basis
	CreatedAt     time.Time       `json:"createdAt"`
}

// EligibleWithdrawal is a read-only preview of how much an investor can withdraw
// after estimated tax, shown before an actual withdrawal is requested. It is a
// projection, distinct from the booked TaxEvent figures.
type EligibleWithdrawal struct {
	InvestorID     string          `json:"investorId"`
	CurrentValue   decimal.Decimal `json:"currentValue"`
	NetInvestment  decimal.Decimal `json:"netInvestment"`
	UnrealizedGain decimal.Decimal `json:"unrealizedGain"`
	EstimatedTax   decimal.Decimal `json:"estimatedTax"`
	Eligible       decimal.Decimal `json:"eligible"`
	NavPerShare    decimal.Decimal `json:"navPerShare"`
	NavDate        time.Time       `json:"navDate"`
}

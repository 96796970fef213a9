package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxEvent records the realized gain booked by one redemption. Created once per
// withdrawal with positive unrealized gain; never mutated afterwards except by a
// compensating event when the originating withdrawal is reversed.
type TaxEvent struct {
	ID               string          `json:"id"`
	InvestorID       string          `json:"investorId"`
	Date             time.Time       `json:"date"`
	WithdrawalAmount decimal.Decimal `json:"withdrawalAmount"`
	RealizedGain     decimal.Decimal `json:"realizedGain"`
	TaxDue           decimal.Decimal `json:"taxDue"` // 0 under the quarterly policy
	Policy           string          `json:"policy"` // policy active when created
	LedgerEntryID    string          `json:"ledgerEntryId"`
	CompensationOf   string          `json:"compensationOf,omitempty"` // original event for reversals
	CreatedAt        time.Time       `json:"createdAt"`
}

// QuarterlyTaxSummary aggregates realized gains for one settlement quarter.
type QuarterlyTaxSummary struct {
	Year              int             `json:"year"`
	Quarter           int             `json:"quarter"`
	TotalRealizedGain decimal.Decimal `json:"totalRealizedGain"`
	TaxDue            decimal.Decimal `json:"taxDue"`
	EventCount        int             `json:"eventCount"`
}

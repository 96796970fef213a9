package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fund flow types.
const (
	FlowContribution = "contribution"
	FlowWithdrawal   = "withdrawal"
)

// Fund flow request states. The happy path runs
// pending -> approved -> awaiting_funds -> matched -> processed.
// Rejected and cancelled are absorbing alternates; processed, rejected and
// cancelled are terminal.
const (
	FlowStatusPending       = "pending"
	FlowStatusApproved      = "approved"
	FlowStatusAwaitingFunds = "awaiting_funds"
	FlowStatusMatched       = "matched"
	FlowStatusProcessed     = "processed"
	FlowStatusRejected      = "rejected"
	FlowStatusCancelled     = "cancelled"
)

// FundFlowRequest tracks one contribution or withdrawal from submission through
// brokerage matching to final share accounting. Requests are never deleted;
// cancelled and rejected requests remain for audit.
type FundFlowRequest struct {
	ID              string          `json:"id"`
	InvestorID      string          `json:"investorId"`
	FlowType        string          `json:"flowType"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	Status          string          `json:"status"`
	// EffectiveDate is the date whose NAV prices the request. Set at submission,
	// overwritten at match time with the matched cash movement's date.
	EffectiveDate time.Time `json:"effectiveDate"`
	// MatchedRawID references the raw brokerage transaction that evidences the
	// cash movement. Cleared again if a matched request is cancelled.
	MatchedRawID string `json:"matchedRawId,omitempty"`
	// LedgerEntryID references the entry the request produced once processed.
	LedgerEntryID string `json:"ledgerEntryId,omitempty"`

	// Derived fields, populated only once processed.
	SharesTransacted decimal.Decimal `json:"sharesTransacted"`
	NavPerShare      decimal.Decimal `json:"navPerShare"`
	RealizedGain     decimal.Decimal `json:"realizedGain"`
	TaxWithheld      decimal.Decimal `json:"taxWithheld"`
	NetProceeds      decimal.Decimal `json:"netProceeds"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Terminal reports whether no further transitions are allowed from the status.
func (r *FundFlowRequest) Terminal() bool {
	switch r.Status {
	case FlowStatusProcessed, FlowStatusRejected, FlowStatusCancelled:
		return true
	}
	return false
}

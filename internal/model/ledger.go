package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry kinds. Entries are append-only: corrections are posted as new
// Reversal entries with inverted signs, never edits or deletes.
const (
	EntryInitial      = "initial"
	EntryContribution = "contribution"
	EntryWithdrawal   = "withdrawal"
	EntryReversal     = "reversal"
)

// LedgerEntry is one immutable ownership-affecting event. SharesTransacted is
// signed: positive for issuance, negative for redemption. BasisDelta is the
// signed change the entry applied to the investor's net investment, which makes
// both investor aggregates re-derivable as sums over entries.
type LedgerEntry struct {
	ID               string          `json:"id"`
	InvestorID       string          `json:"investorId"`
	Date             time.Time       `json:"date"`
	Kind             string          `json:"kind"`
	Amount           decimal.Decimal `json:"amount"` // signed dollar amount
	NavPerShare      decimal.Decimal `json:"navPerShare"`
	SharesTransacted decimal.Decimal `json:"sharesTransacted"` // signed, 4 dp
	BasisDelta       decimal.Decimal `json:"basisDelta"`       // signed net_investment change
	FlowRequestID    string          `json:"flowRequestId,omitempty"`
	ReversalOf       string          `json:"reversalOf,omitempty"` // original entry for reversals
	CreatedAt        time.Time       `json:"createdAt"`
}
